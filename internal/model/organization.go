package model

import "time"

// Organization はユーザーが所属する組織。
type Organization struct {
	ID        string
	Slug      string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

// Membership はユーザーの組織所属。
type Membership struct {
	OrganizationID   string
	OrganizationSlug string
	OrganizationName string
	UserID           string
	Role             TeamRole
	CreatedAt        time.Time
}
