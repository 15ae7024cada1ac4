package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/portal/internal/billing"
	"github.com/hitoshi/portal/internal/changelog"
	"github.com/hitoshi/portal/internal/domain"
	"github.com/hitoshi/portal/internal/middleware"
	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/project"
	"github.com/hitoshi/portal/internal/settings"
	"github.com/hitoshi/portal/internal/team"
)

// --- モック定義 ---

type mockProjectService struct {
	listFn          func(ctx context.Context, userID string) ([]*model.Project, error)
	getFn           func(ctx context.Context, userID, projectID string) (*model.Project, error)
	createFn        func(ctx context.Context, userID string, in project.CreateInput) (*model.Project, error)
	updateFn        func(ctx context.Context, userID, projectID string, in project.UpdateInput) (*model.Project, error)
	deleteFn        func(ctx context.Context, userID, projectID string) error
	deployFn        func(ctx context.Context, userID, projectID string) (*model.Project, error)
	getAccessFn     func(ctx context.Context, userID, projectID string) ([]*model.ProjectAccess, error)
	replaceAccessFn func(ctx context.Context, userID, projectID string, in []project.AccessGrant) ([]*model.ProjectAccess, error)
}

func (m *mockProjectService) List(ctx context.Context, userID string) ([]*model.Project, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockProjectService) Get(ctx context.Context, userID, projectID string) (*model.Project, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, projectID)
	}
	return &model.Project{ID: projectID, UserID: userID}, nil
}

func (m *mockProjectService) Create(ctx context.Context, userID string, in project.CreateInput) (*model.Project, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return &model.Project{ID: "p-new", UserID: userID, Name: in.Name}, nil
}

func (m *mockProjectService) Update(ctx context.Context, userID, projectID string, in project.UpdateInput) (*model.Project, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, projectID, in)
	}
	return &model.Project{ID: projectID, UserID: userID}, nil
}

func (m *mockProjectService) Delete(ctx context.Context, userID, projectID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, projectID)
	}
	return nil
}

func (m *mockProjectService) Deploy(ctx context.Context, userID, projectID string) (*model.Project, error) {
	if m.deployFn != nil {
		return m.deployFn(ctx, userID, projectID)
	}
	return &model.Project{ID: projectID, UserID: userID, Status: model.ProjectStatusDeployed}, nil
}

func (m *mockProjectService) GetAccess(ctx context.Context, userID, projectID string) ([]*model.ProjectAccess, error) {
	if m.getAccessFn != nil {
		return m.getAccessFn(ctx, userID, projectID)
	}
	return nil, nil
}

func (m *mockProjectService) ReplaceAccess(ctx context.Context, userID, projectID string, in []project.AccessGrant) ([]*model.ProjectAccess, error) {
	if m.replaceAccessFn != nil {
		return m.replaceAccessFn(ctx, userID, projectID, in)
	}
	return nil, nil
}

type mockTeamService struct {
	listFn          func(ctx context.Context, userID string) ([]*model.TeamMember, error)
	inviteFn        func(ctx context.Context, userID string, in team.InviteInput) (*model.TeamMember, error)
	removeFn        func(ctx context.Context, userID, memberID string) error
	updateRoleFn    func(ctx context.Context, userID, memberID, role string) (*model.TeamMember, error)
	getAccessFn     func(ctx context.Context, userID, memberID string) ([]*model.ProjectAccess, error)
	replaceAccessFn func(ctx context.Context, userID, memberID string, in []team.MemberGrant) ([]*model.ProjectAccess, error)
}

func (m *mockTeamService) List(ctx context.Context, userID string) ([]*model.TeamMember, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockTeamService) Invite(ctx context.Context, userID string, in team.InviteInput) (*model.TeamMember, error) {
	if m.inviteFn != nil {
		return m.inviteFn(ctx, userID, in)
	}
	return &model.TeamMember{ID: "m-new", TeamID: userID, Email: in.Email, Role: model.RoleViewer, Status: model.MemberInvited}, nil
}

func (m *mockTeamService) Remove(ctx context.Context, userID, memberID string) error {
	if m.removeFn != nil {
		return m.removeFn(ctx, userID, memberID)
	}
	return nil
}

func (m *mockTeamService) UpdateRole(ctx context.Context, userID, memberID, role string) (*model.TeamMember, error) {
	if m.updateRoleFn != nil {
		return m.updateRoleFn(ctx, userID, memberID, role)
	}
	return &model.TeamMember{ID: memberID, TeamID: userID, Role: model.TeamRole(role)}, nil
}

func (m *mockTeamService) GetAccess(ctx context.Context, userID, memberID string) ([]*model.ProjectAccess, error) {
	if m.getAccessFn != nil {
		return m.getAccessFn(ctx, userID, memberID)
	}
	return nil, nil
}

func (m *mockTeamService) ReplaceAccess(ctx context.Context, userID, memberID string, in []team.MemberGrant) ([]*model.ProjectAccess, error) {
	if m.replaceAccessFn != nil {
		return m.replaceAccessFn(ctx, userID, memberID, in)
	}
	return nil, nil
}

type mockDomainService struct {
	listFn   func(ctx context.Context, userID string) ([]*model.Domain, error)
	getFn    func(ctx context.Context, userID, domainID string) (*model.Domain, error)
	addFn    func(ctx context.Context, userID string, in domain.AddInput) (*model.Domain, error)
	deleteFn func(ctx context.Context, userID, domainID string) error
	verifyFn func(ctx context.Context, userID, domainID string) (*model.Domain, error)
}

func (m *mockDomainService) List(ctx context.Context, userID string) ([]*model.Domain, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockDomainService) Get(ctx context.Context, userID, domainID string) (*model.Domain, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, domainID)
	}
	return &model.Domain{ID: domainID, UserID: userID}, nil
}

func (m *mockDomainService) Add(ctx context.Context, userID string, in domain.AddInput) (*model.Domain, error) {
	if m.addFn != nil {
		return m.addFn(ctx, userID, in)
	}
	return &model.Domain{ID: "d-new", UserID: userID, Name: in.Name, Status: model.DomainPending}, nil
}

func (m *mockDomainService) Delete(ctx context.Context, userID, domainID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, domainID)
	}
	return nil
}

func (m *mockDomainService) Verify(ctx context.Context, userID, domainID string) (*model.Domain, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, userID, domainID)
	}
	return &model.Domain{ID: domainID, UserID: userID, Status: model.DomainVerified}, nil
}

type mockSubscriptionService struct {
	plans        []model.Plan
	getFn        func(ctx context.Context, userID string) (*model.Subscription, error)
	changePlanFn func(ctx context.Context, userID, planID string) (*model.Subscription, error)
	cancelFn     func(ctx context.Context, userID string) (*model.Subscription, error)
	listTopUpsFn func(ctx context.Context, userID string) ([]*model.TopUp, error)
	topUpFn      func(ctx context.Context, userID string, tokens int64) (*model.TopUp, error)
}

func (m *mockSubscriptionService) Plans() []model.Plan { return m.plans }

func (m *mockSubscriptionService) Get(ctx context.Context, userID string) (*model.Subscription, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return &model.Subscription{UserID: userID, PlanID: "free", Status: model.SubscriptionActive}, nil
}

func (m *mockSubscriptionService) ChangePlan(ctx context.Context, userID, planID string) (*model.Subscription, error) {
	if m.changePlanFn != nil {
		return m.changePlanFn(ctx, userID, planID)
	}
	return &model.Subscription{UserID: userID, PlanID: planID, Status: model.SubscriptionActive}, nil
}

func (m *mockSubscriptionService) Cancel(ctx context.Context, userID string) (*model.Subscription, error) {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, userID)
	}
	return &model.Subscription{UserID: userID, CancelAtPeriodEnd: true}, nil
}

func (m *mockSubscriptionService) ListTopUps(ctx context.Context, userID string) ([]*model.TopUp, error) {
	if m.listTopUpsFn != nil {
		return m.listTopUpsFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockSubscriptionService) TopUp(ctx context.Context, userID string, tokens int64) (*model.TopUp, error) {
	if m.topUpFn != nil {
		return m.topUpFn(ctx, userID, tokens)
	}
	return &model.TopUp{ID: "01TOPUP", UserID: userID, Tokens: tokens, Status: model.TopUpSucceeded}, nil
}

type mockBillingService struct {
	company model.Company
	getFn   func(ctx context.Context, userID string) (*model.BillingInfo, error)
	putFn   func(ctx context.Context, userID string, in billing.Input) (*model.BillingInfo, error)
}

func (m *mockBillingService) Company() model.Company { return m.company }

func (m *mockBillingService) Get(ctx context.Context, userID string) (*model.BillingInfo, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, model.NewBillingNotFoundError()
}

func (m *mockBillingService) Put(ctx context.Context, userID string, in billing.Input) (*model.BillingInfo, error) {
	if m.putFn != nil {
		return m.putFn(ctx, userID, in)
	}
	return &model.BillingInfo{UserID: userID, CompanyName: in.CompanyName}, nil
}

type mockSettingsService struct {
	descriptions []model.SettingDescription
	getFn        func(ctx context.Context, userID string) (*model.Settings, error)
	putFn        func(ctx context.Context, userID string, in settings.Input) (*model.Settings, error)
}

func (m *mockSettingsService) Descriptions() []model.SettingDescription { return m.descriptions }

func (m *mockSettingsService) Get(ctx context.Context, userID string) (*model.Settings, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return settings.Defaults(userID), nil
}

func (m *mockSettingsService) Put(ctx context.Context, userID string, in settings.Input) (*model.Settings, error) {
	if m.putFn != nil {
		return m.putFn(ctx, userID, in)
	}
	return settings.Defaults(userID), nil
}

type mockMembershipService struct {
	listFn func(ctx context.Context, identity *model.Identity) ([]*model.Membership, error)
}

func (m *mockMembershipService) ListMemberships(ctx context.Context, identity *model.Identity) ([]*model.Membership, error) {
	if m.listFn != nil {
		return m.listFn(ctx, identity)
	}
	return nil, nil
}

type mockChangelogService struct {
	listFn func(ctx context.Context) ([]changelog.Entry, error)
}

func (m *mockChangelogService) List(ctx context.Context) ([]changelog.Entry, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

// --- テストヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseErrorBody はエラーレスポンスをパースする。
func parseErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

// decodeBody はレスポンスボディをvにデコードする。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v (body=%s)", err, w.Body.String())
	}
}
