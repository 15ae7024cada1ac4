package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/portal/internal/model"
)

type mockSettingsRepo struct {
	stored   *model.Settings
	upserted *model.Settings
}

func (m *mockSettingsRepo) FindByUserID(ctx context.Context, userID string) (*model.Settings, error) {
	return m.stored, nil
}
func (m *mockSettingsRepo) Upsert(ctx context.Context, st *model.Settings) error {
	m.upserted = st
	return nil
}

func newTestService(t *testing.T, repo *mockSettingsRepo) *Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestService_Descriptions(t *testing.T) {
	svc := newTestService(t, &mockSettingsRepo{})
	d := svc.Descriptions()
	if len(d) != 4 {
		t.Fatalf("len = %d, want 4", len(d))
	}
	if d[0].Key != "receiveUpdates" || d[0].Title == "" {
		t.Errorf("unexpected first description: %+v", d[0])
	}
}

func TestService_Get_Defaults(t *testing.T) {
	svc := newTestService(t, &mockSettingsRepo{})

	st, err := svc.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.UserID != "u1" || st.Timezone != "UTC" || st.Language != "en" || !st.EmailNotifications {
		t.Errorf("unexpected defaults: %+v", st)
	}
}

func TestService_Put_PartialUpdate(t *testing.T) {
	repo := &mockSettingsRepo{stored: &model.Settings{UserID: "u1", Timezone: "Asia/Tokyo", Language: "ja", EmailNotifications: true}}
	svc := newTestService(t, repo)

	on := true
	st, err := svc.Put(context.Background(), "u1", Input{ReceiveUpdates: &on})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !st.ReceiveUpdates || st.Timezone != "Asia/Tokyo" || st.Language != "ja" {
		t.Errorf("unexpected settings: %+v", st)
	}
	if repo.upserted != st {
		t.Error("settings not persisted")
	}
}

func TestService_Put_Validation(t *testing.T) {
	svc := newTestService(t, &mockSettingsRepo{})

	bad := "Mars/Olympus"
	empty := ""
	fr := "fr"
	for _, in := range []Input{{Timezone: &bad}, {Timezone: &empty}, {Language: &fr}} {
		_, err := svc.Put(context.Background(), "u1", in)
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Kind != model.KindValidation {
			t.Errorf("Put(%+v) error = %v, want validation", in, err)
		}
	}
}
