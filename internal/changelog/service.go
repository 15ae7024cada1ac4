// Package changelog はプロダクトのリリースノート（RSS/Atom）を取得して返す。
package changelog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/security"
	"github.com/mmcdole/gofeed"
)

const (
	maxEntries     = 20
	maxSummaryLen  = 500
	defaultTTL     = 10 * time.Minute
	defaultMaxBody = 2 * 1024 * 1024
)

// Entry はリリースノートの1件。
type Entry struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Summary     string     `json:"summary"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// Service はリリースノートの取得と短期キャッシュを行う。
// キャッシュ期限切れ後はETag/Last-Modifiedによる条件付きGETで再取得する。
type Service struct {
	feedURL   string
	client    *http.Client
	sanitizer *security.TextSanitizer
	logger    *slog.Logger
	ttl       time.Duration
	maxBody   int64
	now       func() time.Time

	mu           sync.Mutex
	entries      []Entry
	fetchedAt    time.Time
	etag         string
	lastModified string
}

// NewService はServiceを生成する。clientにはSSRF対策済みのクライアントを渡す。
func NewService(feedURL string, client *http.Client, logger *slog.Logger) *Service {
	return &Service{
		feedURL:   feedURL,
		client:    client,
		sanitizer: security.NewTextSanitizer(),
		logger:    logger,
		ttl:       defaultTTL,
		maxBody:   defaultMaxBody,
		now:       time.Now,
	}
}

// List は新しい順のリリースノートを返す。
// 取得に失敗してもキャッシュがあればそれを返す。フィードURL未設定時は空。
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	if s.feedURL == "" {
		return []Entry{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entries != nil && s.now().Sub(s.fetchedAt) < s.ttl {
		return s.entries, nil
	}

	entries, err := s.fetch(ctx)
	if err != nil {
		s.logger.Warn("リリースノートの取得に失敗しました",
			slog.String("feed_url", s.feedURL),
			slog.String("error", err.Error()),
		)
		if s.entries != nil {
			return s.entries, nil
		}
		return nil, model.NewChangelogUnavailableError()
	}
	if entries != nil {
		s.entries = entries
	}
	s.fetchedAt = s.now()
	return s.entries, nil
}

// fetch はフィードを取得する。304の場合はnil, nilを返す。
func (s *Service) fetch(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "portal-changelog/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")
	if s.etag != "" {
		req.Header.Set("If-None-Match", s.etag)
	}
	if s.lastModified != "" {
		req.Header.Set("If-Modified-Since", s.lastModified)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && s.entries != nil:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("フィードのパースに失敗: %w", err)
	}

	s.etag = resp.Header.Get("ETag")
	s.lastModified = resp.Header.Get("Last-Modified")
	return s.convert(feed.Items), nil
}

func (s *Service) convert(items []*gofeed.Item) []Entry {
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		e := Entry{
			Title: s.sanitizer.StripText(item.Title),
			Link:  item.Link,
		}
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		e.Summary = truncate(s.sanitizer.StripText(summary), maxSummaryLen)

		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			e.PublishedAt = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			e.PublishedAt = &t
		}
		if e.Title == "" && e.Summary == "" {
			continue
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].PublishedAt, entries[j].PublishedAt
		if a == nil || b == nil {
			return a != nil
		}
		return a.After(*b)
	})
	if len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}
	return entries
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
