// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"net/http"
)

// ErrorKind はAPIErrorの分類を表す。
// ハンドラーはKindのみでHTTPステータスを決定し、メッセージ文字列には依存しない。
type ErrorKind string

const (
	// KindValidation は入力値の欠落・不正。
	KindValidation ErrorKind = "validation"
	// KindAuthentication は認証情報の欠落・不正・期限切れ。
	KindAuthentication ErrorKind = "authentication"
	// KindAuthorization は認証済みだが対象リソースへの権限がない。
	KindAuthorization ErrorKind = "authorization"
	// KindNotFound はリソースIDが解決できない。
	KindNotFound ErrorKind = "not_found"
	// KindConflict は現在の状態と矛盾する操作。
	KindConflict ErrorKind = "conflict"
	// KindUpstream は外部サービス（決済、ドメイン検証等）の呼び出し失敗。
	KindUpstream ErrorKind = "upstream"
	// KindUnexpected は想定外のエラー。
	KindUnexpected ErrorKind = "unexpected"
)

// HTTPStatus はKindに対応するHTTPステータスコードを返す。
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream, KindUnexpected:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// APIError は統一エラーフォーマットを表す。
type APIError struct {
	Kind    ErrorKind
	Code    string // エラーコード
	Message string // クライアントに返すメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeTokenRequired      = "TOKEN_REQUIRED"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeProjectNotFound    = "PROJECT_NOT_FOUND"
	ErrCodeDomainNotFound     = "DOMAIN_NOT_FOUND"
	ErrCodeDomainExists       = "DOMAIN_EXISTS"
	ErrCodeDomainVerifyFailed = "DOMAIN_VERIFY_FAILED"
	ErrCodeMemberNotFound     = "MEMBER_NOT_FOUND"
	ErrCodeMemberExists       = "MEMBER_EXISTS"
	ErrCodeSubscriptionNone   = "SUBSCRIPTION_NOT_FOUND"
	ErrCodePlanNotFound       = "PLAN_NOT_FOUND"
	ErrCodeAlreadyCanceled    = "SUBSCRIPTION_CANCELED"
	ErrCodePaymentFailed      = "PAYMENT_FAILED"
	ErrCodeBillingNotFound    = "BILLING_NOT_FOUND"
	ErrCodeChangelogFailed    = "CHANGELOG_UNAVAILABLE"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{Kind: KindValidation, Code: ErrCodeInvalidRequest, Message: message}
}

// NewTokenRequiredError はAuthorizationヘッダー欠落エラーを生成する。
func NewTokenRequiredError() *APIError {
	return &APIError{Kind: KindAuthentication, Code: ErrCodeTokenRequired, Message: "Authorization token required"}
}

// NewInvalidTokenError は不正・期限切れトークンのエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{Kind: KindAuthentication, Code: ErrCodeInvalidToken, Message: "Invalid or expired token"}
}

// NewForbiddenError は所有者以外による操作のエラーを生成する。
// verbとresourceからメッセージを組み立てる（例: "Unauthorized to update this project"）。
func NewForbiddenError(verb, resource string) *APIError {
	return &APIError{
		Kind:    KindAuthorization,
		Code:    ErrCodeForbidden,
		Message: fmt.Sprintf("Unauthorized to %s this %s", verb, resource),
	}
}

// NewProjectNotFoundError はプロジェクト未検出エラーを生成する。
func NewProjectNotFoundError(id string) *APIError {
	return &APIError{Kind: KindNotFound, Code: ErrCodeProjectNotFound, Message: fmt.Sprintf("Project not found: %s", id)}
}

// NewDomainNotFoundError はドメイン未検出エラーを生成する。
func NewDomainNotFoundError(id string) *APIError {
	return &APIError{Kind: KindNotFound, Code: ErrCodeDomainNotFound, Message: fmt.Sprintf("Domain not found: %s", id)}
}

// NewDomainExistsError は登録済みドメインの重複エラーを生成する。
func NewDomainExistsError(name string) *APIError {
	return &APIError{Kind: KindConflict, Code: ErrCodeDomainExists, Message: fmt.Sprintf("Domain already registered: %s", name)}
}

// NewDomainVerifyFailedError はドメイン検証の外部呼び出し失敗エラーを生成する。
func NewDomainVerifyFailedError(reason string) *APIError {
	return &APIError{Kind: KindUpstream, Code: ErrCodeDomainVerifyFailed, Message: fmt.Sprintf("Domain verification failed: %s", reason)}
}

// NewMemberNotFoundError はチームメンバー未検出エラーを生成する。
func NewMemberNotFoundError(id string) *APIError {
	return &APIError{Kind: KindNotFound, Code: ErrCodeMemberNotFound, Message: fmt.Sprintf("Team member not found: %s", id)}
}

// NewMemberExistsError は招待済みメールアドレスの重複エラーを生成する。
func NewMemberExistsError(email string) *APIError {
	return &APIError{Kind: KindConflict, Code: ErrCodeMemberExists, Message: fmt.Sprintf("Team member already invited: %s", email)}
}

// NewSubscriptionNotFoundError はサブスクリプション未作成エラーを生成する。
func NewSubscriptionNotFoundError() *APIError {
	return &APIError{Kind: KindNotFound, Code: ErrCodeSubscriptionNone, Message: "Subscription not found"}
}

// NewPlanNotFoundError は未定義プランのエラーを生成する。
func NewPlanNotFoundError(planID string) *APIError {
	return &APIError{Kind: KindValidation, Code: ErrCodePlanNotFound, Message: fmt.Sprintf("Unknown plan: %s", planID)}
}

// NewAlreadyCanceledError は解約済みサブスクリプションへの操作エラーを生成する。
func NewAlreadyCanceledError() *APIError {
	return &APIError{Kind: KindConflict, Code: ErrCodeAlreadyCanceled, Message: "Subscription is already canceled"}
}

// NewPaymentFailedError は決済ゲートウェイ呼び出し失敗エラーを生成する。
func NewPaymentFailedError(reason string) *APIError {
	return &APIError{Kind: KindUpstream, Code: ErrCodePaymentFailed, Message: fmt.Sprintf("Payment failed: %s", reason)}
}

// NewBillingNotFoundError は請求先情報未登録エラーを生成する。
func NewBillingNotFoundError() *APIError {
	return &APIError{Kind: KindNotFound, Code: ErrCodeBillingNotFound, Message: "Billing information not found"}
}

// NewChangelogUnavailableError はリリースノート取得失敗エラーを生成する。
func NewChangelogUnavailableError() *APIError {
	return &APIError{Kind: KindUpstream, Code: ErrCodeChangelogFailed, Message: "Changelog is temporarily unavailable"}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録すること。
func NewInternalError() *APIError {
	return &APIError{Kind: KindUnexpected, Code: ErrCodeInternal, Message: "Internal server error"}
}
