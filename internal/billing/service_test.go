package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/portal/internal/model"
)

type mockBillingRepo struct {
	findFn   func(ctx context.Context, userID string) (*model.BillingInfo, error)
	upserted *model.BillingInfo
}

func (m *mockBillingRepo) FindByUserID(ctx context.Context, userID string) (*model.BillingInfo, error) {
	if m.findFn != nil {
		return m.findFn(ctx, userID)
	}
	return nil, nil
}
func (m *mockBillingRepo) Upsert(ctx context.Context, info *model.BillingInfo) error {
	m.upserted = info
	return nil
}

func newTestService(t *testing.T, repo *mockBillingRepo) *Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func validInput() Input {
	return Input{
		CompanyName:  "Acme <b>Inc</b>",
		AddressLine1: "1 Main St",
		City:         "Springfield",
		Country:      "us",
		InvoiceEmail: "ap@acme.example",
	}
}

func TestService_Company(t *testing.T) {
	svc := newTestService(t, &mockBillingRepo{})
	c := svc.Company()
	if c.Name == "" || c.Email == "" {
		t.Errorf("company info not loaded: %+v", c)
	}
}

func TestService_Get_NotFound(t *testing.T) {
	svc := newTestService(t, &mockBillingRepo{})

	_, err := svc.Get(context.Background(), "u1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeBillingNotFound {
		t.Errorf("error = %v, want BILLING_NOT_FOUND", err)
	}
}

func TestService_Put_Create(t *testing.T) {
	repo := &mockBillingRepo{}
	svc := newTestService(t, repo)

	info, err := svc.Put(context.Background(), "u1", validInput())
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if repo.upserted != info {
		t.Fatal("repository did not receive the billing info")
	}
	if info.CompanyName != "Acme Inc" || info.Country != "US" || info.UserID != "u1" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestService_Put_KeepsIDOnUpdate(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := &mockBillingRepo{findFn: func(ctx context.Context, userID string) (*model.BillingInfo, error) {
		return &model.BillingInfo{ID: "b1", UserID: userID, CreatedAt: created}, nil
	}}
	svc := newTestService(t, repo)

	info, err := svc.Put(context.Background(), "u1", validInput())
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.ID != "b1" || !info.CreatedAt.Equal(created) {
		t.Errorf("ID/CreatedAt = %s/%v, want b1/%v", info.ID, info.CreatedAt, created)
	}
}

func TestService_Put_Validation(t *testing.T) {
	svc := newTestService(t, &mockBillingRepo{})

	tests := []struct {
		name   string
		mutate func(in *Input)
	}{
		{"missing company", func(in *Input) { in.CompanyName = "<i></i>" }},
		{"missing address", func(in *Input) { in.AddressLine1 = "" }},
		{"bad country", func(in *Input) { in.Country = "USA" }},
		{"bad email", func(in *Input) { in.InvoiceEmail = "nope" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := svc.Put(context.Background(), "u1", in)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) || apiErr.Kind != model.KindValidation {
				t.Errorf("error = %v, want validation", err)
			}
		})
	}
}
