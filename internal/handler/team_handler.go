package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/team"
)

// TeamServiceInterface はチームハンドラーが必要とするサービスインターフェース。
type TeamServiceInterface interface {
	List(ctx context.Context, userID string) ([]*model.TeamMember, error)
	Invite(ctx context.Context, userID string, in team.InviteInput) (*model.TeamMember, error)
	Remove(ctx context.Context, userID, memberID string) error
	UpdateRole(ctx context.Context, userID, memberID, role string) (*model.TeamMember, error)
	GetAccess(ctx context.Context, userID, memberID string) ([]*model.ProjectAccess, error)
	ReplaceAccess(ctx context.Context, userID, memberID string, in []team.MemberGrant) ([]*model.ProjectAccess, error)
}

// TeamHandler はチーム管理のHTTPハンドラー。
type TeamHandler struct {
	service TeamServiceInterface
}

// NewTeamHandler はTeamHandlerを生成する。
func NewTeamHandler(service TeamServiceInterface) *TeamHandler {
	return &TeamHandler{service: service}
}

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Note  string `json:"note"`
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

type memberGrantRequest struct {
	ProjectID string `json:"projectId"`
	Level     string `json:"level"`
}

type replaceMemberAccessRequest struct {
	Access []memberGrantRequest `json:"access"`
}

type teamMemberResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	MemberUserID string `json:"memberUserId,omitempty"`
	Role         string `json:"role"`
	Status       string `json:"status"`
	Note         string `json:"note,omitempty"`
	InvitedAt    string `json:"invitedAt"`
}

// List はチームメンバー一覧を返す。
// GET /api/team
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	members, err := h.service.List(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]teamMemberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, toTeamMemberResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Invite はメールアドレスでメンバーを招待する。
// POST /api/team/invite
func (h *TeamHandler) Invite(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	m, err := h.service.Invite(r.Context(), identity.UserID, team.InviteInput{
		Email: req.Email,
		Role:  req.Role,
		Note:  req.Note,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTeamMemberResponse(m))
}

// Remove はメンバーを削除する。
// DELETE /api/team/{id}
func (h *TeamHandler) Remove(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), identity.UserID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateRole はメンバーのロールを変更する。
// PUT /api/team/{id}/role
func (h *TeamHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	m, err := h.service.UpdateRole(r.Context(), identity.UserID, chi.URLParam(r, "id"), req.Role)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTeamMemberResponse(m))
}

// GetAccess はメンバーに付与されたプロジェクト権限を返す。
// GET /api/team/{id}/access
func (h *TeamHandler) GetAccess(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	grants, err := h.service.GetAccess(r.Context(), identity.UserID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectAccessResponses(grants))
}

// ReplaceAccess はメンバーのプロジェクト権限を置き換える。
// PUT /api/team/{id}/access
func (h *TeamHandler) ReplaceAccess(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req replaceMemberAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	in := make([]team.MemberGrant, 0, len(req.Access))
	for _, a := range req.Access {
		in = append(in, team.MemberGrant{ProjectID: a.ProjectID, Level: a.Level})
	}

	grants, err := h.service.ReplaceAccess(r.Context(), identity.UserID, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectAccessResponses(grants))
}

func toTeamMemberResponse(m *model.TeamMember) teamMemberResponse {
	return teamMemberResponse{
		ID:           m.ID,
		Email:        m.Email,
		MemberUserID: m.MemberUserID,
		Role:         string(m.Role),
		Status:       string(m.Status),
		Note:         m.Note,
		InvitedAt:    formatTime(m.InvitedAt),
	}
}
