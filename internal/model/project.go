// Package model はドメインモデルを定義する。
package model

import "time"

// ProjectStatus はプロジェクトのデプロイ状態を表す。
type ProjectStatus string

const (
	// ProjectStatusDraft は初回保存直後の状態。
	ProjectStatusDraft ProjectStatus = "draft"
	// ProjectStatusDeployed はデプロイ済みの状態。
	ProjectStatusDeployed ProjectStatus = "deployed"
)

// Project はユーザーが所有するデプロイ対象のプロジェクト。
type Project struct {
	ID            string
	UserID        string
	Name          string
	Description   string
	Status        ProjectStatus
	DeploymentURL string
	DeployedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// AccessLevel はプロジェクトへのアクセス権限レベル。
type AccessLevel string

const (
	AccessView AccessLevel = "view"
	AccessEdit AccessLevel = "edit"
)

// ParseAccessLevel は文字列をAccessLevelに変換する。空文字列はAccessViewとして扱う。
func ParseAccessLevel(s string) (AccessLevel, bool) {
	switch AccessLevel(s) {
	case "", AccessView:
		return AccessView, true
	case AccessEdit:
		return AccessEdit, true
	}
	return "", false
}

// ProjectAccess はチームメンバーに付与されたプロジェクト単位の権限。
// UserIDは付与したプロジェクト所有者（= チームID）。
type ProjectAccess struct {
	ID           string
	ProjectID    string
	MemberID     string
	MemberUserID string // 招待受諾前は空
	UserID       string
	Level        AccessLevel
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
