package domain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestVerifier(srv *httptest.Server) *HTTPVerifier {
	v := NewHTTPVerifier(srv.Client())
	v.urlFor = func(domain string) string { return srv.URL + WellKnownPath }
	return v
}

func TestHTTPVerifier_TokenMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != WellKnownPath {
			t.Errorf("path = %q, want %q", r.URL.Path, WellKnownPath)
		}
		w.Write([]byte("tok-123\n"))
	}))
	defer srv.Close()

	ok, err := newTestVerifier(srv).Verify(context.Background(), "example.com", "tok-123")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("expected token to match")
	}
}

func TestHTTPVerifier_TokenMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("other"))
	}))
	defer srv.Close()

	ok, err := newTestVerifier(srv).Verify(context.Background(), "example.com", "tok-123")
	if err != nil || ok {
		t.Errorf("Verify = %v, %v; want false, nil", ok, err)
	}
}

func TestHTTPVerifier_NotFoundIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	ok, err := newTestVerifier(srv).Verify(context.Background(), "example.com", "tok")
	if err != nil || ok {
		t.Errorf("Verify = %v, %v; want false, nil", ok, err)
	}
}

func TestHTTPVerifier_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := newTestVerifier(srv).Verify(context.Background(), "example.com", "tok")
	if err == nil {
		t.Error("expected error for unreachable host")
	}
}
