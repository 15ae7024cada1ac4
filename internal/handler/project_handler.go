package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/project"
)

// ProjectServiceInterface はプロジェクトハンドラーが必要とするサービスインターフェース。
type ProjectServiceInterface interface {
	List(ctx context.Context, userID string) ([]*model.Project, error)
	Get(ctx context.Context, userID, projectID string) (*model.Project, error)
	Create(ctx context.Context, userID string, in project.CreateInput) (*model.Project, error)
	Update(ctx context.Context, userID, projectID string, in project.UpdateInput) (*model.Project, error)
	Delete(ctx context.Context, userID, projectID string) error
	Deploy(ctx context.Context, userID, projectID string) (*model.Project, error)
	GetAccess(ctx context.Context, userID, projectID string) ([]*model.ProjectAccess, error)
	ReplaceAccess(ctx context.Context, userID, projectID string, in []project.AccessGrant) ([]*model.ProjectAccess, error)
}

// ProjectHandler はプロジェクト管理のHTTPハンドラー。
type ProjectHandler struct {
	service ProjectServiceInterface
}

// NewProjectHandler はProjectHandlerを生成する。
func NewProjectHandler(service ProjectServiceInterface) *ProjectHandler {
	return &ProjectHandler{service: service}
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type accessGrantRequest struct {
	MemberID string `json:"memberId"`
	Level    string `json:"level"`
}

type replaceProjectAccessRequest struct {
	Access []accessGrantRequest `json:"access"`
}

type projectResponse struct {
	ID            string  `json:"id"`
	UserID        string  `json:"userId"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Status        string  `json:"status"`
	DeploymentURL string  `json:"deploymentUrl,omitempty"`
	DeployedAt    *string `json:"deployedAt,omitempty"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

type projectAccessResponse struct {
	ID           string `json:"id"`
	ProjectID    string `json:"projectId"`
	MemberID     string `json:"memberId"`
	MemberUserID string `json:"memberUserId,omitempty"`
	Level        string `json:"level"`
	UpdatedAt    string `json:"updatedAt"`
}

// List は呼び出し元が所有するプロジェクト一覧を返す。
// GET /projects, GET /api/projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	projects, err := h.service.List(r.Context(), identity.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, toProjectResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create はプロジェクトを作成する。
// POST /api/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	p, err := h.service.Create(r.Context(), identity.UserID, project.CreateInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectResponse(p))
}

// Get はプロジェクト詳細を返す。
// GET /api/projects/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	p, err := h.service.Get(r.Context(), identity.UserID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// Update はプロジェクトの名前・説明を更新する。
// PUT /api/projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req updateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	p, err := h.service.Update(r.Context(), identity.UserID, chi.URLParam(r, "id"), project.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// Delete はプロジェクトを削除する。
// DELETE /api/projects/{id}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

// Deploy はプロジェクトをデプロイ済みにする。
// POST /api/projects/{id}/deploy
func (h *ProjectHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	p, err := h.service.Deploy(r.Context(), identity.UserID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectResponse(p))
}

// GetAccess はプロジェクトのアクセス権一覧を返す。
// GET /api/projects/{id}/access
func (h *ProjectHandler) GetAccess(w http.ResponseWriter, r *http.Request) {
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

// ReplaceAccess はプロジェクトのアクセス権を置き換える。
// PUT /api/projects/{id}/access
func (h *ProjectHandler) ReplaceAccess(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req replaceProjectAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	in := make([]project.AccessGrant, 0, len(req.Access))
	for _, a := range req.Access {
		in = append(in, project.AccessGrant{MemberID: a.MemberID, Level: a.Level})
	}

	grants, err := h.service.ReplaceAccess(r.Context(), identity.UserID, chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectAccessResponses(grants))
}

func toProjectResponse(p *model.Project) projectResponse {
	return projectResponse{
		ID:            p.ID,
		UserID:        p.UserID,
		Name:          p.Name,
		Description:   p.Description,
		Status:        string(p.Status),
		DeploymentURL: p.DeploymentURL,
		DeployedAt:    formatTimePtr(p.DeployedAt),
		CreatedAt:     formatTime(p.CreatedAt),
		UpdatedAt:     formatTime(p.UpdatedAt),
	}
}

func toProjectAccessResponses(grants []*model.ProjectAccess) []projectAccessResponse {
	resp := make([]projectAccessResponse, 0, len(grants))
	for _, g := range grants {
		resp = append(resp, projectAccessResponse{
			ID:           g.ID,
			ProjectID:    g.ProjectID,
			MemberID:     g.MemberID,
			MemberUserID: g.MemberUserID,
			Level:        string(g.Level),
			UpdatedAt:    formatTime(g.UpdatedAt),
		})
	}
	return resp
}
