package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mintToken(t *testing.T, userID string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": userID,
		"email":  userID + "@example.com",
		"type":   "access",
		"exp":    exp.Unix(),
	})
	raw, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

// fakePortal はポータルAPIとIdPのリフレッシュエンドポイントを1つのサーバーで模す。
type fakePortal struct {
	validToken   string
	refreshToken string // 空の場合はリフレッシュ失敗
	refreshCalls atomic.Int32
}

func (f *fakePortal) handler() http.Handler {
	mux := http.NewServeMux()
	authorized := func(r *http.Request) bool {
		return r.Header.Get("Authorization") == "Bearer "+f.validToken
	}
	unauthorized := func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"Invalid or expired token","code":"INVALID_TOKEN"}`)
	}

	mux.HandleFunc("GET /api/organizations/memberships", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			unauthorized(w)
			return
		}
		io.WriteString(w, `[{"organizationId":"org-1","organizationSlug":"acme","organizationName":"Acme","role":"admin"}]`)
	})
	mux.HandleFunc("GET /api/projects", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			unauthorized(w)
			return
		}
		io.WriteString(w, `[{"id":"p-1","name":"Landing","status":"deployed","deploymentUrl":"https://landing.apps.example.com"}]`)
	})
	mux.HandleFunc("GET /api/profile", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(r) {
			unauthorized(w)
			return
		}
		io.WriteString(w, `{"userId":"u-1","email":"u-1@example.com"}`)
	})
	mux.HandleFunc("POST /auth/refresh-token", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		if f.refreshToken == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.validToken = f.refreshToken
		json.NewEncoder(w).Encode(map[string]string{"accessToken": f.refreshToken})
	})
	return mux
}

type cliHarness struct {
	t           *testing.T
	srv         *httptest.Server
	sessionFile string
}

func newHarness(t *testing.T, fake *fakePortal) *cliHarness {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return &cliHarness{
		t:           t,
		srv:         srv,
		sessionFile: filepath.Join(t.TempDir(), "session.json"),
	}
}

func (h *cliHarness) run(args ...string) (string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(append([]string{
		"--api-url", h.srv.URL,
		"--auth-url", h.srv.URL,
		"--login-url", "https://id.example.com/login",
		"--return-to", "https://portal.example.com/",
		"--session-file", h.sessionFile,
	}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (h *cliHarness) session() map[string]string {
	h.t.Helper()
	data, err := os.ReadFile(h.sessionFile)
	if err != nil {
		h.t.Fatalf("read session file: %v", err)
	}
	values := map[string]string{}
	if err := json.Unmarshal(data, &values); err != nil {
		h.t.Fatalf("parse session file: %v", err)
	}
	return values
}

func TestTokenSet_PersistsSessionAndOrganization(t *testing.T) {
	valid := mintToken(t, "u-1", time.Now().Add(time.Hour))
	h := newHarness(t, &fakePortal{validToken: valid})

	out, err := h.run("token", "set", valid)
	if err != nil {
		t.Fatalf("token set: %v", err)
	}
	if !strings.Contains(out, "Stored token for user u-1") || !strings.Contains(out, "Organization: acme") {
		t.Errorf("unexpected output:\n%s", out)
	}

	s := h.session()
	if s["accessToken"] != valid || s["userId"] != "u-1" || s["userEmail"] != "u-1@example.com" {
		t.Errorf("session = %v", s)
	}
	if s["organizationId"] != "org-1" || s["organizationSlug"] != "acme" {
		t.Errorf("organization not cached: %v", s)
	}

	out, err = h.run("status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "logged in") || !strings.Contains(out, "acme") {
		t.Errorf("status output:\n%s", out)
	}
}

func TestProjectsList_RefreshesExpiredToken(t *testing.T) {
	expired := mintToken(t, "u-1", time.Now().Add(-time.Hour))
	fresh := mintToken(t, "u-1", time.Now().Add(time.Hour))
	fake := &fakePortal{validToken: "nothing-yet", refreshToken: fresh}
	h := newHarness(t, fake)

	if _, err := h.run("token", "set", expired); err != nil {
		t.Fatalf("token set: %v", err)
	}

	out, err := h.run("projects", "list")
	if err != nil {
		t.Fatalf("projects list: %v", err)
	}
	if !strings.Contains(out, "Landing") || !strings.Contains(out, "https://landing.apps.example.com") {
		t.Errorf("projects output:\n%s", out)
	}
	if got := fake.refreshCalls.Load(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
	if s := h.session(); s["accessToken"] != fresh {
		t.Error("refreshed token was not persisted")
	}
}

func TestProjectsList_RefreshFailureClearsSession(t *testing.T) {
	expired := mintToken(t, "u-1", time.Now().Add(-time.Hour))
	h := newHarness(t, &fakePortal{validToken: "nothing"})

	if _, err := h.run("token", "set", expired); err != nil {
		t.Fatalf("token set: %v", err)
	}

	out, err := h.run("projects", "list")
	if err == nil || !strings.Contains(err.Error(), "session expired") {
		t.Fatalf("err = %v, want session expired", err)
	}
	if !strings.Contains(out, "https://id.example.com/login?return_to=https%3A%2F%2Fportal.example.com%2F") {
		t.Errorf("login URL not printed:\n%s", out)
	}
	if s := h.session(); len(s) != 0 {
		t.Errorf("session not cleared: %v", s)
	}
}

func TestLogout_ClearsSession(t *testing.T) {
	valid := mintToken(t, "u-1", time.Now().Add(time.Hour))
	h := newHarness(t, &fakePortal{validToken: valid})

	if _, err := h.run("token", "set", valid); err != nil {
		t.Fatalf("token set: %v", err)
	}

	out, err := h.run("logout")
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !strings.Contains(out, "https://id.example.com/login") {
		t.Errorf("logout output:\n%s", out)
	}
	if s := h.session(); len(s) != 0 {
		t.Errorf("session not cleared: %v", s)
	}

	out, err = h.run("status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Not logged in") {
		t.Errorf("status after logout:\n%s", out)
	}
}

func TestLoginAndRegister_PrintURLs(t *testing.T) {
	h := newHarness(t, &fakePortal{})

	out, err := h.run("login")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "https://id.example.com/login?return_to=") {
		t.Errorf("login output:\n%s", out)
	}

	out, err = h.run("register")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !strings.Contains(out, h.srv.URL+"/register?return_to=") {
		t.Errorf("register output:\n%s", out)
	}
}

func TestGet_PrintsIndentedJSON(t *testing.T) {
	valid := mintToken(t, "u-1", time.Now().Add(time.Hour))
	h := newHarness(t, &fakePortal{validToken: valid})

	if _, err := h.run("token", "set", valid); err != nil {
		t.Fatalf("token set: %v", err)
	}

	out, err := h.run("get", "/api/profile")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out, "\n  \"userId\": \"u-1\"") {
		t.Errorf("get output not indented JSON:\n%s", out)
	}

	if _, err := h.run("get", "api/profile"); err == nil {
		t.Error("expected error for relative path")
	}
}
