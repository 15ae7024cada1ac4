// Package model はドメインモデルを定義する。
package model

import "time"

// DomainStatus はカスタムドメインの検証状態。
type DomainStatus string

const (
	DomainPending  DomainStatus = "pending"
	DomainVerified DomainStatus = "verified"
	DomainFailed   DomainStatus = "failed"
)

// Domain はデプロイ済みプロジェクトに紐付けるカスタムドメイン。
type Domain struct {
	ID                string
	UserID            string
	ProjectID         string
	Name              string // IDNA正規化済み（ASCII）
	Status            DomainStatus
	VerificationToken string
	VerifiedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
