// Package model はドメインモデルを定義する。
package model

// SubscriptionSummary はアクセストークンに同梱されるサブスクリプション・利用量の要約。
type SubscriptionSummary struct {
	Plan           string `json:"plan,omitempty"`
	Status         string `json:"status,omitempty"`
	TokensUsed     int64  `json:"tokensUsed"`
	TokensLimit    int64  `json:"tokensLimit"`
	ReceiveUpdates bool   `json:"receiveUpdates"`
}

// Identity はリクエスト単位で解決された呼び出し元を表す。
// 認証ミドルウェアがトークンから組み立て、永続化はしない。
type Identity struct {
	UserID       string
	Email        string
	Name         string
	Subscription SubscriptionSummary
}

// Owns は呼び出し元がownerIDの所有者かどうかを返す。
// 外部IdPが発行したIDの単純な文字列比較。
func (i *Identity) Owns(ownerID string) bool {
	return i != nil && i.UserID != "" && i.UserID == ownerID
}
