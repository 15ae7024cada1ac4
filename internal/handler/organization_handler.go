package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/portal/internal/changelog"
	"github.com/hitoshi/portal/internal/model"
)

// MembershipServiceInterface は組織所属の取得に必要なサービスインターフェース。
type MembershipServiceInterface interface {
	ListMemberships(ctx context.Context, identity *model.Identity) ([]*model.Membership, error)
}

// ChangelogServiceInterface はリリースノート取得のサービスインターフェース。
type ChangelogServiceInterface interface {
	List(ctx context.Context) ([]changelog.Entry, error)
}

type membershipResponse struct {
	OrganizationID   string `json:"organizationId"`
	OrganizationSlug string `json:"organizationSlug"`
	OrganizationName string `json:"organizationName"`
	Role             string `json:"role"`
}

// NewMembershipsHandler は組織所属一覧のハンドラーを返す。
// GET /api/organizations/memberships
func NewMembershipsHandler(service MembershipServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := requireIdentity(w, r)
		if !ok {
			return
		}

		memberships, err := service.ListMemberships(r.Context(), identity)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := make([]membershipResponse, 0, len(memberships))
		for _, m := range memberships {
			resp = append(resp, membershipResponse{
				OrganizationID:   m.OrganizationID,
				OrganizationSlug: m.OrganizationSlug,
				OrganizationName: m.OrganizationName,
				Role:             string(m.Role),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// NewChangelogHandler はリリースノートのハンドラーを返す。
// GET /api/changelog
func NewChangelogHandler(service ChangelogServiceInterface) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := service.List(r.Context())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		if entries == nil {
			entries = []changelog.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
