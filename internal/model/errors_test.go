package model

import (
	"net/http"
	"testing"
)

func TestErrorKind_HTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want int
	}{
		{"validation", NewValidationError("bad"), http.StatusBadRequest},
		{"token required", NewTokenRequiredError(), http.StatusUnauthorized},
		{"invalid token", NewInvalidTokenError(), http.StatusUnauthorized},
		{"forbidden", NewForbiddenError("update", "project"), http.StatusForbidden},
		{"not found", NewProjectNotFoundError("p1"), http.StatusNotFound},
		{"conflict", NewDomainExistsError("a.example.com"), http.StatusConflict},
		{"payment failed", NewPaymentFailedError("declined"), http.StatusInternalServerError},
		{"domain verify failed", NewDomainVerifyFailedError("timeout"), http.StatusInternalServerError},
		{"changelog unavailable", NewChangelogUnavailableError(), http.StatusInternalServerError},
		{"internal", NewInternalError(), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Kind.HTTPStatus(); got != tt.want {
				t.Errorf("%s: HTTPStatus() = %d, want %d", tt.err.Kind, got, tt.want)
			}
		})
	}
}

func TestForbiddenError_Message(t *testing.T) {
	err := NewForbiddenError("delete", "domain")
	if err.Message != "Unauthorized to delete this domain" {
		t.Errorf("Message = %q", err.Message)
	}
}
