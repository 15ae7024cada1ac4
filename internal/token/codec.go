// Package token はアクセストークン（3セグメントのJWT）のデコードと有効性判定を提供する。
//
// トークンの発行は外部IdPが行い、本パッケージは発行しない。
// Codecは署名を検証せずペイロードのみを読む。署名検証が必要な場合はVerifierを使う。
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/portal/internal/model"
)

// TypeAccess はリソースAPIの認可に使えるトークン種別。
const TypeAccess = "access"

// TypeRefresh はリフレッシュ用トークン種別。リソースAPIの認可には使えない。
const TypeRefresh = "refresh"

// ErrMalformedToken はトークンが3セグメントでない、またはペイロードが解釈できないことを示す。
var ErrMalformedToken = errors.New("malformed token")

// Claims はアクセストークンのペイロード。
type Claims struct {
	UserID             string `json:"userId"`
	Email              string `json:"email"`
	FullName           string `json:"fullName"`
	Type               string `json:"type"`
	SubscriptionPlan   string `json:"subscriptionPlan,omitempty"`
	SubscriptionStatus string `json:"subscriptionStatus,omitempty"`
	TokensUsed         int64  `json:"tokensUsed,omitempty"`
	TokensLimit        int64  `json:"tokensLimit,omitempty"`
	ReceiveUpdates     bool   `json:"receiveUpdates,omitempty"`
	jwt.RegisteredClaims
}

// Expiry はexpクレームを返す。未設定の場合はゼロ値。
func (c *Claims) Expiry() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Identity はクレームからリクエストスコープのIdentityを組み立てる。
func (c *Claims) Identity() *model.Identity {
	return &model.Identity{
		UserID: c.UserID,
		Email:  c.Email,
		Name:   c.FullName,
		Subscription: model.SubscriptionSummary{
			Plan:           c.SubscriptionPlan,
			Status:         c.SubscriptionStatus,
			TokensUsed:     c.TokensUsed,
			TokensLimit:    c.TokensLimit,
			ReceiveUpdates: c.ReceiveUpdates,
		},
	}
}

// Decoder はトークン文字列をClaimsに変換する。
// CodecとVerifierの両方が満たす。
type Decoder interface {
	Decode(raw string) (*Claims, error)
}

// Codec は署名検証なしでペイロードを読むDecoder。
// 発行元は私設ネットワーク内の信頼済みサービスである前提。
type Codec struct {
	parser *jwt.Parser
}

// NewCodec はCodecを生成する。パディング付き・なしのURL-safe base64の両方を受け付ける。
func NewCodec() *Codec {
	return &Codec{parser: jwt.NewParser(jwt.WithPaddingAllowed())}
}

// Decode はトークンを3セグメントに分割し、ペイロードをClaimsとして読む。
// ヘッダーが解釈できなくてもペイロードが正しければ成功する。
func (c *Codec) Decode(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if strings.Count(raw, ".") != 2 {
		return nil, ErrMalformedToken
	}

	// ヘッダーと署名は読まない。ペイロードのみをデコードする。
	payload, err := c.parser.DecodeSegment(strings.Split(raw, ".")[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	claims := &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return claims, nil
}

// Decode はデフォルトのCodecでトークンをデコードする。
func Decode(raw string) (*Claims, error) {
	return NewCodec().Decode(raw)
}

// IsValid はクレームがリソースAPIの認可に使えるかを返す。
// type が "access" かつ exp が現在時刻より後の場合のみtrue。
func IsValid(c *Claims, now time.Time) bool {
	if c == nil || c.Type != TypeAccess || c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Unix() > now.Unix()
}

// DecodeValid はデコードとIsValidの判定をまとめて行う。
// どちらかに失敗した場合はnilを返す。
func DecodeValid(d Decoder, raw string, now time.Time) *Claims {
	claims, err := d.Decode(raw)
	if err != nil || !IsValid(claims, now) {
		return nil
	}
	return claims
}
