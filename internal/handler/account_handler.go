package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/portal/internal/billing"
	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/settings"
)

// BillingServiceInterface は請求先ハンドラーが必要とするサービスインターフェース。
type BillingServiceInterface interface {
	Company() model.Company
	Get(ctx context.Context, userID string) (*model.BillingInfo, error)
	Put(ctx context.Context, userID string, in billing.Input) (*model.BillingInfo, error)
}

// SettingsServiceInterface は設定ハンドラーが必要とするサービスインターフェース。
type SettingsServiceInterface interface {
	Descriptions() []model.SettingDescription
	Get(ctx context.Context, userID string) (*model.Settings, error)
	Put(ctx context.Context, userID string, in settings.Input) (*model.Settings, error)
}

// AccountHandler は請求先情報とユーザー設定のHTTPハンドラー。
type AccountHandler struct {
	billing  BillingServiceInterface
	settings SettingsServiceInterface
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(billing BillingServiceInterface, settings SettingsServiceInterface) *AccountHandler {
	return &AccountHandler{billing: billing, settings: settings}
}

type billingRequest struct {
	CompanyName  string `json:"companyName"`
	TaxID        string `json:"taxId"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
	InvoiceEmail string `json:"invoiceEmail"`
}

type billingResponse struct {
	CompanyName  string `json:"companyName"`
	TaxID        string `json:"taxId"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2"`
	City         string `json:"city"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
	InvoiceEmail string `json:"invoiceEmail"`
	UpdatedAt    string `json:"updatedAt"`
}

type companyResponse struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	TaxID   string `json:"taxId"`
	Email   string `json:"email"`
}

type settingsRequest struct {
	ReceiveUpdates     *bool   `json:"receiveUpdates"`
	EmailNotifications *bool   `json:"emailNotifications"`
	Timezone           *string `json:"timezone"`
	Language           *string `json:"language"`
}

type settingsResponse struct {
	ReceiveUpdates     bool   `json:"receiveUpdates"`
	EmailNotifications bool   `json:"emailNotifications"`
	Timezone           string `json:"timezone"`
	Language           string `json:"language"`
}

// GetBilling は請求先情報を返す。
// GET /api/billing
func (h *AccountHandler) GetBilling(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	info, err := h.billing.Get(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillingResponse(info))
}

// PutBilling は請求先情報を保存する。
// PUT /api/billing
func (h *AccountHandler) PutBilling(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req billingRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	info, err := h.billing.Put(r.Context(), identity.UserID, billing.Input(req))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBillingResponse(info))
}

// Company は販売者情報を返す。
// GET /api/billing/company
func (h *AccountHandler) Company(w http.ResponseWriter, r *http.Request) {
	c := h.billing.Company()
	writeJSON(w, http.StatusOK, companyResponse{
		Name:    c.Name,
		Address: c.Address,
		TaxID:   c.TaxID,
		Email:   c.Email,
	})
}

// GetSettings はユーザー設定を返す。
// GET /api/settings
func (h *AccountHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	s, err := h.settings.Get(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(s))
}

// PutSettings はユーザー設定を部分更新する。
// PUT /api/settings
func (h *AccountHandler) PutSettings(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	s, err := h.settings.Put(r.Context(), identity.UserID, settings.Input(req))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(s))
}

// SettingDescriptions は設定項目の説明を返す。
// GET /api/settings/descriptions
func (h *AccountHandler) SettingDescriptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Descriptions())
}

func toBillingResponse(b *model.BillingInfo) billingResponse {
	return billingResponse{
		CompanyName:  b.CompanyName,
		TaxID:        b.TaxID,
		AddressLine1: b.AddressLine1,
		AddressLine2: b.AddressLine2,
		City:         b.City,
		PostalCode:   b.PostalCode,
		Country:      b.Country,
		InvoiceEmail: b.InvoiceEmail,
		UpdatedAt:    formatTime(b.UpdatedAt),
	}
}

func toSettingsResponse(s *model.Settings) settingsResponse {
	return settingsResponse{
		ReceiveUpdates:     s.ReceiveUpdates,
		EmailNotifications: s.EmailNotifications,
		Timezone:           s.Timezone,
		Language:           s.Language,
	}
}
