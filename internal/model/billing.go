// Package model はドメインモデルを定義する。
package model

import "time"

// SubscriptionStatus はサブスクリプションの状態。
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
)

// Subscription はユーザーの契約プランとトークン利用状況。
type Subscription struct {
	ID                string
	UserID            string
	PlanID            string
	Status            SubscriptionStatus
	TokensUsed        int64
	TokensLimit       int64
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Plan はプランカタログの1エントリ。
type Plan struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	PriceCents  int64    `yaml:"price_cents"`
	TokensLimit int64    `yaml:"tokens_limit"`
	Features    []string `yaml:"features"`
}

// TopUpStatus はトークン追加購入の決済状態。
type TopUpStatus string

const (
	TopUpSucceeded TopUpStatus = "succeeded"
	TopUpFailed    TopUpStatus = "failed"
)

// TopUp はトークン追加購入（支払い履歴）の1件。IDはULID。
type TopUp struct {
	ID          string
	UserID      string
	Tokens      int64
	AmountCents int64
	Status      TopUpStatus
	PaymentRef  string
	CreatedAt   time.Time
}

// BillingInfo はユーザーの請求先情報。
type BillingInfo struct {
	ID           string
	UserID       string
	CompanyName  string
	TaxID        string
	AddressLine1 string
	AddressLine2 string
	City         string
	PostalCode   string
	Country      string
	InvoiceEmail string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Company は請求書に記載する販売者情報。
type Company struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	TaxID   string `yaml:"tax_id"`
	Email   string `yaml:"email"`
}
