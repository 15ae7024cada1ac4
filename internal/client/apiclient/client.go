// Package apiclient はポータルAPIのHTTPクライアントを提供する。
//
// すべてのリクエストにセッションのアクセストークンを付与し、401/403を受けた場合は
// 1回だけサイレントリフレッシュを試みて元のリクエストを再送する。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/portal/internal/client/session"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/publicsuffix"
)

// ErrSessionExpired はリフレッシュに失敗しセッションが破棄されたことを示す。
var ErrSessionExpired = errors.New("session expired")

// errRefreshFailed はリフレッシュエンドポイントが新しいトークンを返さなかったことを示す。
var errRefreshFailed = errors.New("token refresh failed")

// maxErrorBody はエラーレスポンスから読み取るボディの上限。
const maxErrorBody = 64 << 10

// Config はクライアントの接続先設定。
type Config struct {
	// BaseURL はポータルAPIのベースURL。
	BaseURL string
	// RefreshURL はサイレントリフレッシュのエンドポイント（例: https://auth.example.com/auth/refresh-token）。
	RefreshURL string
	// LoginURL はセッション切れ時の遷移先。
	LoginURL string
	// ReturnTo はログイン後の戻り先。LoginURLのreturn_toパラメータになる。
	ReturnTo string
}

// Navigator はブラウザ遷移の副作用を表す。
type Navigator interface {
	Navigate(target string) error
}

// NavigatorFunc は関数をNavigatorとして使うためのアダプタ。
type NavigatorFunc func(target string) error

// Navigate はf(target)を呼ぶ。
func (f NavigatorFunc) Navigate(target string) error { return f(target) }

// StatusError は2xx以外のレスポンスを表す。
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// Client はポータルAPIのHTTPクライアント。
type Client struct {
	cfg    Config
	store  *session.Store
	nav    Navigator
	http   *http.Client
	logger *slog.Logger
}

// NewHTTPClient はリフレッシュCookieを保持するCookie Jarと
// OpenTelemetryのトランスポートを備えたhttp.Clientを返す。
func NewHTTPClient(timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &http.Client{
		Timeout:   timeout,
		Jar:       jar,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}, nil
}

// New はClientを生成する。httpClientがnilの場合はNewHTTPClientの既定値を使う。
func New(cfg Config, store *session.Store, nav Navigator, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if httpClient == nil {
		var err error
		httpClient, err = NewHTTPClient(30 * time.Second)
		if err != nil {
			return nil, err
		}
	}
	if nav == nil {
		nav = NavigatorFunc(func(string) error { return nil })
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		store:  store,
		nav:    nav,
		http:   httpClient,
		logger: logger,
	}, nil
}

type retriedKey struct{}

// withRetried はリクエストを再試行済みとしてマークしたコンテキストを返す。
func withRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

func isRetried(ctx context.Context) bool {
	retried, _ := ctx.Value(retriedKey{}).(bool)
	return retried
}

// Do はリクエストにトークンを付与して送信する。
// 2xxの場合のみレスポンスを返し、それ以外は*StatusErrorかErrSessionExpiredを返す。
// 401/403は1リクエストにつき1回だけリフレッシュと再送を行う。
// 再送に備え、ボディ付きリクエストはGetBodyを持つこと。
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if raw, ok := c.store.Read(); ok {
		req.Header.Set("Authorization", "Bearer "+raw)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	if isSuccess(resp.StatusCode) {
		return resp, nil
	}

	if !isAuthFailure(resp.StatusCode) || isRetried(req.Context()) {
		return nil, readStatusError(resp)
	}
	drain(resp)

	ctx := withRetried(req.Context())
	newToken, err := c.Refresh(ctx)
	if err != nil {
		c.logger.Info("silent refresh failed, ending session", slog.String("error", err.Error()))
		c.expire()
		return nil, ErrSessionExpired
	}

	replay, err := cloneForReplay(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	replay.Header.Set("Authorization", "Bearer "+newToken)

	resp, err = c.http.Do(replay)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", replay.Method, replay.URL.Path, err)
	}
	if !isSuccess(resp.StatusCode) {
		return nil, readStatusError(resp)
	}
	return resp, nil
}

// Refresh はリフレッシュCookieで新しいアクセストークンを取得し、セッションに保存する。
func (c *Client) Refresh(ctx context.Context) (string, error) {
	if c.cfg.RefreshURL == "" {
		return "", fmt.Errorf("%w: refresh URL not configured", errRefreshFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RefreshURL, strings.NewReader("{}"))
	if err != nil {
		return "", fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errRefreshFailed, err)
	}
	defer drain(resp)

	if !isSuccess(resp.StatusCode) {
		return "", fmt.Errorf("%w: status %d", errRefreshFailed, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body); err != nil || body.AccessToken == "" {
		return "", fmt.Errorf("%w: no access token in response", errRefreshFailed)
	}

	if err := c.store.Persist(ctx, body.AccessToken); err != nil {
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}
	return body.AccessToken, nil
}

// LoginRedirectURL はreturn_to付きのログインURLを返す。
func (c *Client) LoginRedirectURL() string {
	u, err := url.Parse(c.cfg.LoginURL)
	if err != nil {
		return c.cfg.LoginURL
	}
	if c.cfg.ReturnTo != "" {
		q := u.Query()
		q.Set("return_to", c.cfg.ReturnTo)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// expire はセッションを破棄してログインページへ遷移する。
func (c *Client) expire() {
	if err := c.store.Clear(); err != nil {
		c.logger.Warn("failed to clear session", slog.String("error", err.Error()))
	}
	if err := c.nav.Navigate(c.LoginRedirectURL()); err != nil {
		c.logger.Warn("failed to navigate to login", slog.String("error", err.Error()))
	}
}

// Memberships は組織所属一覧を取得する。session.MembershipFetcherを満たす。
// Persistの途中で呼ばれるため、401/403でもリフレッシュしない。
func (c *Client) Memberships(ctx context.Context) ([]session.Membership, error) {
	var out []session.Membership
	if err := c.GetJSON(withRetried(ctx), "/api/organizations/memberships", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetJSON はGETしてレスポンスをoutにデコードする。
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// PostJSON はinをJSONでPOSTしてレスポンスをoutにデコードする。
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out)
}

// PutJSON はinをJSONでPUTしてレスポンスをoutにデコードする。
func (c *Client) PutJSON(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, in, out)
}

// Delete はDELETEを送る。
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer drain(resp)

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// resolve はBaseURLとパスを結合する。
func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// cloneForReplay は再送用にリクエストを複製し、ボディを巻き戻す。
func cloneForReplay(req *http.Request) (*http.Request, error) {
	replay := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return replay, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("%s %s: request body cannot be replayed", req.Method, req.URL.Path)
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	replay.Body = body
	return replay, nil
}

func readStatusError(resp *http.Response) error {
	defer drain(resp)

	statusErr := &StatusError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body); err == nil {
		statusErr.Message = body.Error
		statusErr.Code = body.Code
	}
	return statusErr
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

func isAuthFailure(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
