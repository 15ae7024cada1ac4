package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/portal/internal/domain"
	"github.com/hitoshi/portal/internal/model"
)

// DomainServiceInterface はドメインハンドラーが必要とするサービスインターフェース。
type DomainServiceInterface interface {
	List(ctx context.Context, userID string) ([]*model.Domain, error)
	Get(ctx context.Context, userID, domainID string) (*model.Domain, error)
	Add(ctx context.Context, userID string, in domain.AddInput) (*model.Domain, error)
	Delete(ctx context.Context, userID, domainID string) error
	Verify(ctx context.Context, userID, domainID string) (*model.Domain, error)
}

// DomainHandler はカスタムドメイン管理のHTTPハンドラー。
type DomainHandler struct {
	service DomainServiceInterface
}

// NewDomainHandler はDomainHandlerを生成する。
func NewDomainHandler(service DomainServiceInterface) *DomainHandler {
	return &DomainHandler{service: service}
}

type addDomainRequest struct {
	Name      string `json:"name"`
	ProjectID string `json:"projectId"`
}

type domainResponse struct {
	ID                string  `json:"id"`
	ProjectID         string  `json:"projectId,omitempty"`
	Name              string  `json:"name"`
	Status            string  `json:"status"`
	VerificationToken string  `json:"verificationToken"`
	VerificationPath  string  `json:"verificationPath"`
	VerifiedAt        *string `json:"verifiedAt,omitempty"`
	CreatedAt         string  `json:"createdAt"`
}

// List はドメイン一覧を返す。
// GET /api/domains
func (h *DomainHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	domains, err := h.service.List(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]domainResponse, 0, len(domains))
	for _, d := range domains {
		resp = append(resp, toDomainResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Add はドメインを登録する。
// POST /api/domains
func (h *DomainHandler) Add(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req addDomainRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	d, err := h.service.Add(r.Context(), identity.UserID, domain.AddInput{
		Name:      req.Name,
		ProjectID: req.ProjectID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDomainResponse(d))
}

// Get はドメイン詳細を返す。
// GET /api/domains/{id}
func (h *DomainHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	d, err := h.service.Get(r.Context(), identity.UserID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDomainResponse(d))
}

// Delete はドメインを削除する。
// DELETE /api/domains/{id}
func (h *DomainHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), identity.UserID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Verify はドメインの所有確認を実行する。
// PUT /api/domains/{id}/verify
func (h *DomainHandler) Verify(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	d, err := h.service.Verify(r.Context(), identity.UserID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDomainResponse(d))
}

func toDomainResponse(d *model.Domain) domainResponse {
	return domainResponse{
		ID:                d.ID,
		ProjectID:         d.ProjectID,
		Name:              d.Name,
		Status:            string(d.Status),
		VerificationToken: d.VerificationToken,
		VerificationPath:  domain.WellKnownPath,
		VerifiedAt:        formatTimePtr(d.VerifiedAt),
		CreatedAt:         formatTime(d.CreatedAt),
	}
}
