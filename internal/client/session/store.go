// Package session はクライアント側のセッション（アクセストークンと派生情報）を永続化する。
//
// Storeはログイン状態の唯一の情報源。HTTPクライアントとAuth状態管理の両方に
// 同じStoreを注入して使う。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/portal/internal/token"
)

// 永続化キー
const (
	KeyAccessToken      = "accessToken"
	KeyUserID           = "userId"
	KeyUserEmail        = "userEmail"
	KeyOrganizationID   = "organizationId"
	KeyOrganizationSlug = "organizationSlug"
)

// Keys はStoreが管理する全キー。
var Keys = []string{KeyAccessToken, KeyUserID, KeyUserEmail, KeyOrganizationID, KeyOrganizationSlug}

// Membership は組織所属の1件。
type Membership struct {
	OrganizationID   string `json:"organizationId"`
	OrganizationSlug string `json:"organizationSlug"`
	OrganizationName string `json:"organizationName"`
	Role             string `json:"role"`
}

// MembershipFetcher は現在のトークンで組織所属を取得する。
type MembershipFetcher interface {
	Memberships(ctx context.Context) ([]Membership, error)
}

// Store はアクセストークンと派生した識別情報を保持する。
// メモリ上のキャッシュとStorageを併用し、キャッシュがなければStorageから読む。
type Store struct {
	storage Storage
	decoder token.Decoder
	logger  *slog.Logger

	mu      sync.RWMutex
	cached  string
	fetcher MembershipFetcher
}

// NewStore はStoreを生成する。
func NewStore(storage Storage, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		storage: storage,
		decoder: token.NewCodec(),
		logger:  logger,
	}
}

// SetMembershipFetcher は組織所属の取得先を設定する。
// HTTPクライアントがStoreに依存するため、構築後に設定する。
func (s *Store) SetMembershipFetcher(f MembershipFetcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetcher = f
}

// Persist はトークンを保存し、クレームからuserId・userEmailを導出して保存する。
// 続けて組織所属を取得し、先頭の組織のID・slugをキャッシュする。
// 所属の取得に失敗した場合は組織情報を消去するが、Persist自体は失敗しない。
func (s *Store) Persist(ctx context.Context, raw string) error {
	if raw == "" {
		return errors.New("empty access token")
	}
	if err := s.storage.Set(KeyAccessToken, raw); err != nil {
		return fmt.Errorf("failed to store access token: %w", err)
	}

	s.mu.Lock()
	s.cached = raw
	fetcher := s.fetcher
	s.mu.Unlock()

	if claims, err := s.decoder.Decode(raw); err == nil {
		if err := s.setOrDelete(KeyUserID, claims.UserID); err != nil {
			return err
		}
		if err := s.setOrDelete(KeyUserEmail, claims.Email); err != nil {
			return err
		}
	} else {
		s.logger.Warn("stored token could not be decoded", slog.String("error", err.Error()))
	}

	s.refreshOrganization(ctx, fetcher)
	return nil
}

// refreshOrganization は組織所属を取得して先頭の組織をキャッシュする。
func (s *Store) refreshOrganization(ctx context.Context, fetcher MembershipFetcher) {
	if fetcher == nil {
		s.clearOrganization()
		return
	}

	memberships, err := fetcher.Memberships(ctx)
	if err != nil || len(memberships) == 0 {
		if err != nil {
			s.logger.Warn("failed to fetch organization memberships", slog.String("error", err.Error()))
		}
		s.clearOrganization()
		return
	}

	first := memberships[0]
	if err := s.storage.Set(KeyOrganizationID, first.OrganizationID); err != nil {
		s.logger.Warn("failed to store organization", slog.String("error", err.Error()))
		return
	}
	if err := s.storage.Set(KeyOrganizationSlug, first.OrganizationSlug); err != nil {
		s.logger.Warn("failed to store organization", slog.String("error", err.Error()))
	}
}

func (s *Store) clearOrganization() {
	for _, key := range []string{KeyOrganizationID, KeyOrganizationSlug} {
		if err := s.storage.Delete(key); err != nil {
			s.logger.Warn("failed to clear organization", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
}

func (s *Store) setOrDelete(key, value string) error {
	var err error
	if value == "" {
		err = s.storage.Delete(key)
	} else {
		err = s.storage.Set(key, value)
	}
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// Read は現在のトークンを返す。メモリにない場合はStorageから読む。
func (s *Store) Read() (string, bool) {
	s.mu.RLock()
	cached := s.cached
	s.mu.RUnlock()
	if cached != "" {
		return cached, true
	}

	raw, ok := s.storage.Get(KeyAccessToken)
	if !ok || raw == "" {
		return "", false
	}

	s.mu.Lock()
	s.cached = raw
	s.mu.Unlock()
	return raw, true
}

// Value は任意の管理キーの値を返す。
func (s *Store) Value(key string) (string, bool) {
	return s.storage.Get(key)
}

// Clear はメモリキャッシュと全キーを消去する。
// 消去に失敗したキーがあっても残りのキーの消去は続ける。
func (s *Store) Clear() error {
	s.mu.Lock()
	s.cached = ""
	s.mu.Unlock()

	var errs []error
	for _, key := range Keys {
		if err := s.storage.Delete(key); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
