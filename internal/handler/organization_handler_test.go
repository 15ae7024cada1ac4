package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/portal/internal/changelog"
	"github.com/hitoshi/portal/internal/middleware"
	"github.com/hitoshi/portal/internal/model"
)

func TestMembershipsHandler_PassesIdentity(t *testing.T) {
	svc := &mockMembershipService{
		listFn: func(ctx context.Context, identity *model.Identity) ([]*model.Membership, error) {
			if identity.Email != "a@example.com" {
				t.Errorf("email = %q", identity.Email)
			}
			return []*model.Membership{
				{OrganizationID: "o1", OrganizationSlug: "a-1234abcd", OrganizationName: "A workspace", Role: model.RoleAdmin},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/organizations/memberships", nil)
	req = req.WithContext(middleware.ContextWithIdentity(req.Context(), &model.Identity{UserID: "u1", Email: "a@example.com"}))
	w := httptest.NewRecorder()
	NewMembershipsHandler(svc)(w, req)

	var resp []membershipResponse
	decodeBody(t, w, &resp)
	if len(resp) != 1 || resp[0].OrganizationSlug != "a-1234abcd" || resp[0].Role != "admin" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestChangelogHandler_Unavailable(t *testing.T) {
	svc := &mockChangelogService{
		listFn: func(ctx context.Context) ([]changelog.Entry, error) {
			return nil, model.NewChangelogUnavailableError()
		},
	}

	w := httptest.NewRecorder()
	NewChangelogHandler(svc)(w, httptest.NewRequest(http.MethodGet, "/api/changelog", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestChangelogHandler_Entries(t *testing.T) {
	published := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	svc := &mockChangelogService{
		listFn: func(ctx context.Context) ([]changelog.Entry, error) {
			return []changelog.Entry{{Title: "Team access", PublishedAt: &published}}, nil
		},
	}

	w := httptest.NewRecorder()
	NewChangelogHandler(svc)(w, httptest.NewRequest(http.MethodGet, "/api/changelog", nil))

	var resp []changelog.Entry
	decodeBody(t, w, &resp)
	if len(resp) != 1 || resp[0].Title != "Team access" || !resp[0].PublishedAt.Equal(published) {
		t.Errorf("resp = %+v", resp)
	}
}

func TestProfile_FromIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req = req.WithContext(middleware.ContextWithIdentity(req.Context(), &model.Identity{
		UserID: "u1",
		Email:  "a@example.com",
		Name:   "Alice",
		Subscription: model.SubscriptionSummary{
			Plan:        "pro",
			TokensLimit: 1000,
		},
	}))
	w := httptest.NewRecorder()
	Profile(w, req)

	var resp profileResponse
	decodeBody(t, w, &resp)
	if resp.FullName != "Alice" || resp.Subscription.Plan != "pro" {
		t.Errorf("resp = %+v", resp)
	}
}

type stubPinger struct{ err error }

func (s stubPinger) PingContext(ctx context.Context) error { return s.err }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name    string
		checker HealthChecker
		want    int
	}{
		{"no checker", nil, http.StatusOK},
		{"db ok", stubPinger{}, http.StatusOK},
		{"db down", stubPinger{err: context.DeadlineExceeded}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHealthHandler(tt.checker)(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
