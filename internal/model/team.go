// Package model はドメインモデルを定義する。
package model

import "time"

// TeamRole はチームメンバーのロール。
type TeamRole string

const (
	RoleAdmin     TeamRole = "admin"
	RoleDeveloper TeamRole = "developer"
	RoleViewer    TeamRole = "viewer"
)

// ParseTeamRole は文字列をTeamRoleに変換する。空文字列はRoleViewerとして扱う。
func ParseTeamRole(s string) (TeamRole, bool) {
	switch TeamRole(s) {
	case "", RoleViewer:
		return RoleViewer, true
	case RoleDeveloper:
		return RoleDeveloper, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// MemberStatus は招待の状態。
type MemberStatus string

const (
	MemberInvited MemberStatus = "invited"
	MemberActive  MemberStatus = "active"
	MemberExpired MemberStatus = "expired"
)

// TeamMember はチーム（= 所有ユーザー）に招待されたメンバー。
type TeamMember struct {
	ID           string
	TeamID       string // チーム所有者のユーザーID
	Email        string
	MemberUserID string // 招待受諾後に設定される
	Role         TeamRole
	Status       MemberStatus
	Note         string
	InvitedAt    time.Time
	UpdatedAt    time.Time
}
