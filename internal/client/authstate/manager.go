// Package authstate はクライアントのログイン状態を管理する。
//
// Managerはセッションストア、トークンのデコード、サイレントリフレッシュを組み合わせて
// isAuthenticated / loading を提供し、変更を購読者に通知する。
package authstate

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/hitoshi/portal/internal/client/session"
	"github.com/hitoshi/portal/internal/token"
)

// State はログイン状態のスナップショット。
type State struct {
	IsAuthenticated bool
	Loading         bool
}

// Refresher はサイレントリフレッシュを行う。*apiclient.Clientが満たす。
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// Navigator はブラウザ遷移の副作用を表す。
type Navigator interface {
	Navigate(target string) error
}

// Config はIdPのページURL。
type Config struct {
	LoginURL    string
	RegisterURL string
	ReturnTo    string
}

// Manager はログイン状態を保持し、変更を購読者に通知する。
type Manager struct {
	cfg       Config
	store     *session.Store
	refresher Refresher
	nav       Navigator
	decoder   token.Decoder
	logger    *slog.Logger
	now       func() time.Time

	mu          sync.Mutex
	state       State
	subscribers map[int]func(State)
	nextID      int
}

// NewManager はManagerを生成する。初期状態はloading。
func NewManager(cfg Config, store *session.Store, refresher Refresher, nav Navigator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:         cfg,
		store:       store,
		refresher:   refresher,
		nav:         nav,
		decoder:     token.NewCodec(),
		logger:      logger,
		now:         time.Now,
		state:       State{Loading: true},
		subscribers: make(map[int]func(State)),
	}
}

// State は現在の状態を返す。
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe は状態変更の通知先を登録し、登録解除の関数を返す。
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// CheckAuthStatus はセッションのトークンを確認し、必要ならサイレントリフレッシュを行う。
// 失敗はすべて未認証として扱い、エラーもpanicも返さない。繰り返し呼んでもよい。
func (m *Manager) CheckAuthStatus(ctx context.Context) bool {
	m.setState(State{IsAuthenticated: m.State().IsAuthenticated, Loading: true})

	if raw, ok := m.store.Read(); ok {
		if token.DecodeValid(m.decoder, raw, m.now()) != nil {
			// 組織情報も最新化する。Persistは所属取得の失敗では失敗しない。
			if err := m.store.Persist(ctx, raw); err != nil {
				m.logger.Warn("failed to persist session", slog.String("error", err.Error()))
			}
			m.setState(State{IsAuthenticated: true})
			return true
		}
		m.purge()
	}

	if m.refresher != nil {
		if fresh, err := m.refresher.Refresh(ctx); err == nil && token.DecodeValid(m.decoder, fresh, m.now()) != nil {
			m.setState(State{IsAuthenticated: true})
			return true
		} else if err != nil {
			m.logger.Debug("silent refresh failed", slog.String("error", err.Error()))
		}
	}

	m.purge()
	m.setState(State{})
	return false
}

// Logout はセッションを破棄し、ログインページへ遷移する。
// サーバーが設定したHTTP-onlyのリフレッシュCookieはクライアントからは消せない。
func (m *Manager) Logout() {
	m.purge()
	m.setState(State{})
	m.navigate(m.withReturnTo(m.cfg.LoginURL))
}

// Login はIdPのログインページへ遷移する。
func (m *Manager) Login() {
	m.navigate(m.withReturnTo(m.cfg.LoginURL))
}

// Register はIdPの登録ページへ遷移する。
func (m *Manager) Register() {
	m.navigate(m.withReturnTo(m.cfg.RegisterURL))
}

func (m *Manager) purge() {
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear session", slog.String("error", err.Error()))
	}
}

func (m *Manager) navigate(target string) {
	if m.nav == nil || target == "" {
		return
	}
	if err := m.nav.Navigate(target); err != nil {
		m.logger.Warn("navigation failed", slog.String("target", target), slog.String("error", err.Error()))
	}
}

func (m *Manager) withReturnTo(base string) string {
	if base == "" || m.cfg.ReturnTo == "" {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("return_to", m.cfg.ReturnTo)
	u.RawQuery = q.Encode()
	return u.String()
}

// setState は状態を更新し、変化があれば購読者に通知する。
// 購読者はロックの外で呼ぶ。
func (m *Manager) setState(next State) {
	m.mu.Lock()
	if m.state == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	subs := make([]func(State), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
}
