// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/portal/internal/model"
)

// ProjectRepository はプロジェクトの永続化インターフェース。
type ProjectRepository interface {
	// FindByID は指定IDのプロジェクトを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Project, error)

	// ListByUserID はユーザーが所有するプロジェクトを作成日時の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Project, error)

	// CountOwned はidsのうちuserIDが所有するプロジェクト数を返す。
	CountOwned(ctx context.Context, userID string, ids []string) (int, error)

	// Create はプロジェクトを作成する。
	Create(ctx context.Context, project *model.Project) error

	// Update はプロジェクトの名前・説明・デプロイ状態を更新する。
	Update(ctx context.Context, project *model.Project) error

	// Delete は指定IDのプロジェクトを削除する。
	// 関連するproject_access、domainsはCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// ProjectAccessRepository はプロジェクト単位のアクセス権の永続化インターフェース。
type ProjectAccessRepository interface {
	// ListByProject はプロジェクトに付与されたアクセス権を返す。
	ListByProject(ctx context.Context, projectID string) ([]*model.ProjectAccess, error)

	// ListByMember はチームメンバーに付与されたアクセス権を返す。
	ListByMember(ctx context.Context, memberID string) ([]*model.ProjectAccess, error)

	// FindByProjectAndMemberUser はプロジェクトとメンバーのユーザーIDでアクセス権を検索する。
	// 見つからない場合はnilを返す。
	FindByProjectAndMemberUser(ctx context.Context, projectID, memberUserID string) (*model.ProjectAccess, error)

	// ReplaceForProject はプロジェクトのアクセス権を同一トランザクションで置き換える。
	ReplaceForProject(ctx context.Context, projectID string, grants []*model.ProjectAccess) error

	// ReplaceForMember はメンバーのアクセス権を同一トランザクションで置き換える。
	ReplaceForMember(ctx context.Context, memberID string, grants []*model.ProjectAccess) error
}

// TeamMemberRepository はチームメンバーの永続化インターフェース。
type TeamMemberRepository interface {
	// FindByID は指定IDのメンバーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.TeamMember, error)

	// FindByTeamAndEmail はチームIDとメールアドレスでメンバーを検索する。見つからない場合はnilを返す。
	FindByTeamAndEmail(ctx context.Context, teamID, email string) (*model.TeamMember, error)

	// ListByTeam はチームのメンバー一覧を招待日時順に返す。
	ListByTeam(ctx context.Context, teamID string) ([]*model.TeamMember, error)

	// Create はメンバーを作成する。
	Create(ctx context.Context, member *model.TeamMember) error

	// UpdateRole はメンバーのロールを更新する。
	UpdateRole(ctx context.Context, id string, role model.TeamRole) error

	// Delete は指定IDのメンバーを削除する。関連するproject_accessはCASCADE削除される。
	Delete(ctx context.Context, id string) error

	// ExpirePending はbefore以前に招待された未受諾の招待を期限切れにし、件数を返す。
	ExpirePending(ctx context.Context, before time.Time) (int64, error)
}

// DomainRepository はカスタムドメインの永続化インターフェース。
type DomainRepository interface {
	// FindByID は指定IDのドメインを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Domain, error)

	// FindByName はドメイン名で検索する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Domain, error)

	// ListByUserID はユーザーのドメイン一覧を返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Domain, error)

	// Create はドメインを作成する。
	Create(ctx context.Context, domain *model.Domain) error

	// UpdateStatus は検証状態と検証日時を更新する。
	UpdateStatus(ctx context.Context, domain *model.Domain) error

	// Delete は指定IDのドメインを削除する。
	Delete(ctx context.Context, id string) error
}

// SubscriptionRepository はサブスクリプションの永続化インターフェース。
type SubscriptionRepository interface {
	// FindByUserID はユーザーのサブスクリプションを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Subscription, error)

	// Upsert はuser_idをキーにサブスクリプションを作成または更新する。
	Upsert(ctx context.Context, subscription *model.Subscription) error
}

// TopUpRepository はトークン追加購入（支払い履歴）の永続化インターフェース。
type TopUpRepository interface {
	// Create は支払い履歴を記録する。
	Create(ctx context.Context, topUp *model.TopUp) error

	// ListByUserID はユーザーの支払い履歴を新しい順に最大limit件返す。
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.TopUp, error)
}

// BillingRepository は請求先情報の永続化インターフェース。
type BillingRepository interface {
	// FindByUserID はユーザーの請求先情報を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.BillingInfo, error)

	// Upsert はuser_idをキーに請求先情報を作成または更新する。
	Upsert(ctx context.Context, info *model.BillingInfo) error
}

// SettingsRepository はユーザー設定の永続化インターフェース。
type SettingsRepository interface {
	// FindByUserID はユーザー設定を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Settings, error)

	// Upsert はユーザー設定を作成または更新する。
	Upsert(ctx context.Context, settings *model.Settings) error
}

// OrganizationRepository は組織と所属の永続化インターフェース。
type OrganizationRepository interface {
	// ListMembershipsByUserID はユーザーの組織所属を所属日時順に返す。
	ListMembershipsByUserID(ctx context.Context, userID string) ([]*model.Membership, error)

	// CreateWithOwner は組織と所有者の所属を同一トランザクションで作成する。
	CreateWithOwner(ctx context.Context, org *model.Organization) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
