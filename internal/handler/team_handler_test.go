package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/team"
)

func TestTeamHandler_Invite_Created(t *testing.T) {
	svc := &mockTeamService{
		inviteFn: func(ctx context.Context, userID string, in team.InviteInput) (*model.TeamMember, error) {
			if in.Email != "dev@example.com" || in.Role != "developer" {
				t.Errorf("input = %+v", in)
			}
			return &model.TeamMember{ID: "m1", TeamID: userID, Email: in.Email, Role: model.RoleDeveloper, Status: model.MemberInvited}, nil
		},
	}
	h := NewTeamHandler(svc)

	body := `{"email":"dev@example.com","role":"developer"}`
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/team/invite", bytes.NewBufferString(body)), "u1")
	w := httptest.NewRecorder()
	h.Invite(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var resp teamMemberResponse
	decodeBody(t, w, &resp)
	if resp.Role != "developer" || resp.Status != "invited" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestTeamHandler_Invite_Conflict(t *testing.T) {
	svc := &mockTeamService{
		inviteFn: func(ctx context.Context, userID string, in team.InviteInput) (*model.TeamMember, error) {
			return nil, model.NewMemberExistsError(in.Email)
		},
	}
	h := NewTeamHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/team/invite", bytes.NewBufferString(`{"email":"a@b.co"}`)), "u1")
	w := httptest.NewRecorder()
	h.Invite(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
	if body := parseErrorBody(t, w); body.Code != model.ErrCodeMemberExists {
		t.Errorf("code = %q", body.Code)
	}
}

func TestTeamHandler_UpdateRole_PassesRole(t *testing.T) {
	svc := &mockTeamService{
		updateRoleFn: func(ctx context.Context, userID, memberID, role string) (*model.TeamMember, error) {
			if memberID != "m1" || role != "admin" {
				t.Errorf("memberID=%q role=%q", memberID, role)
			}
			return &model.TeamMember{ID: memberID, Role: model.RoleAdmin}, nil
		},
	}
	h := NewTeamHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/team/m1/role", bytes.NewBufferString(`{"role":"admin"}`))
	req = withChiURLParam(withUserID(req, "u1"), "id", "m1")
	w := httptest.NewRecorder()
	h.UpdateRole(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestTeamHandler_Remove_Forbidden(t *testing.T) {
	svc := &mockTeamService{
		removeFn: func(ctx context.Context, userID, memberID string) error {
			return model.NewForbiddenError("remove", "team member")
		},
	}
	h := NewTeamHandler(svc)

	req := withChiURLParam(withUserID(httptest.NewRequest(http.MethodDelete, "/api/team/m9", nil), "u1"), "id", "m9")
	w := httptest.NewRecorder()
	h.Remove(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if body := parseErrorBody(t, w); body.Error != "Unauthorized to remove this team member" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestTeamHandler_ReplaceAccess_MapsGrants(t *testing.T) {
	svc := &mockTeamService{
		replaceAccessFn: func(ctx context.Context, userID, memberID string, in []team.MemberGrant) ([]*model.ProjectAccess, error) {
			if len(in) != 1 || in[0].ProjectID != "p1" || in[0].Level != "edit" {
				t.Errorf("grants = %+v", in)
			}
			return []*model.ProjectAccess{{ID: "a1", ProjectID: "p1", MemberID: memberID, Level: model.AccessEdit}}, nil
		},
	}
	h := NewTeamHandler(svc)

	req := httptest.NewRequest(http.MethodPut, "/api/team/m1/access", bytes.NewBufferString(`{"access":[{"projectId":"p1","level":"edit"}]}`))
	req = withChiURLParam(withUserID(req, "u1"), "id", "m1")
	w := httptest.NewRecorder()
	h.ReplaceAccess(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
