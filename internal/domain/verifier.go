package domain

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// WellKnownPath は検証トークンを配置するパス。
const WellKnownPath = "/.well-known/portal-verification"

// maxTokenBodySize は検証レスポンスとして読み取る最大バイト数。
const maxTokenBodySize = 1024

// HTTPVerifier はhttps://<domain>/.well-known/portal-verification の本文と
// 検証トークンを比較するVerifier。
type HTTPVerifier struct {
	client *http.Client
	urlFor func(domain string) string
}

// NewHTTPVerifier はHTTPVerifierを生成する。
// clientにはSSRF対策済みのクライアント（security.OutboundGuard.NewSafeClient）を渡す。
func NewHTTPVerifier(client *http.Client) *HTTPVerifier {
	return &HTTPVerifier{
		client: client,
		urlFor: func(domain string) string {
			return "https://" + domain + WellKnownPath
		},
	}
}

// Verify は検証URLを取得し、本文がtokenと一致するかを返す。
// 200以外のステータスは未配置として扱う。
func (v *HTTPVerifier) Verify(ctx context.Context, domain, token string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.urlFor(domain), nil)
	if err != nil {
		return false, fmt.Errorf("failed to build verification request: %w", err)
	}
	req.Header.Set("User-Agent", "portal-domain-verifier/1.0")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("verification request to %s failed: %w", domain, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBodySize))
	if err != nil {
		return false, fmt.Errorf("failed to read verification response: %w", err)
	}
	return string(bytes.TrimSpace(body)) == token, nil
}
