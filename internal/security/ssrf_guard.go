// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// OutboundGuard はサーバーから外部ホストへ発行するHTTPリクエストのSSRF対策を提供する。
// カスタムドメインの検証プローブとリリースノートの取得で使用する。
type OutboundGuard interface {
	// NewSafeClient はプライベート・ループバック・リンクローカル宛ての接続を
	// ダイヤル時に拒否するHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateHost はユーザー入力のホスト名を解決前に静的検証する。
	ValidateHost(host string) error

	// ValidateURL は設定値などのURLを静的検証する。
	ValidateURL(rawURL string) error
}

var allowedSchemes = []string{"http", "https"}

// blockedPrefixes はIPリテラルとして拒否するアドレス範囲。
// 名前解決後の検証はsafeurlのダイヤラーが行う。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"), // メタデータIPを含む
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// blockedSuffixes は内部向けとみなすホスト名のサフィックス。
var blockedSuffixes = []string{".localhost", ".local", ".internal"}

type outboundGuard struct{}

// NewOutboundGuard はOutboundGuardを生成する。
func NewOutboundGuard() *outboundGuard {
	return &outboundGuard{}
}

// NewSafeClient はsafeurlでラップしたHTTPクライアントを返す。ポートは80/443のみ許可。
func (g *outboundGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateHost はホスト名を検証する。
func (g *outboundGuard) ValidateHost(host string) error {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return fmt.Errorf("empty host")
	}

	if addr, err := netip.ParseAddr(strings.Trim(host, "[]")); err == nil {
		if isBlockedAddr(addr) {
			return fmt.Errorf("blocked IP address: %s", addr)
		}
		return nil
	}

	if host == "localhost" {
		return fmt.Errorf("blocked host: %s", host)
	}
	for _, suffix := range blockedSuffixes {
		if strings.HasSuffix(host, suffix) {
			return fmt.Errorf("blocked host: %s", host)
		}
	}
	return nil
}

// ValidateURL はスキームとホストを検証する。
func (g *outboundGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	allowed := false
	for _, s := range allowedSchemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	return g.ValidateHost(parsed.Hostname())
}

func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
