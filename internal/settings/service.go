// Package settings はユーザーごとの通知・表示設定を提供する。
package settings

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/repository"
	"gopkg.in/yaml.v3"
)

//go:embed descriptions.yaml
var descriptionsYAML []byte

// SupportedLanguages は設定可能な表示言語。
var SupportedLanguages = []string{"en", "ja"}

// Input は設定の部分更新入力。nilのフィールドは変更しない。
type Input struct {
	ReceiveUpdates     *bool
	EmailNotifications *bool
	Timezone           *string
	Language           *string
}

// Service はユーザー設定のサービス層。
type Service struct {
	repo         repository.SettingsRepository
	descriptions []model.SettingDescription
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.SettingsRepository) (*Service, error) {
	var descriptions []model.SettingDescription
	if err := yaml.Unmarshal(descriptionsYAML, &descriptions); err != nil {
		return nil, fmt.Errorf("failed to parse setting descriptions: %w", err)
	}
	return &Service{repo: repo, descriptions: descriptions, now: time.Now}, nil
}

// Defaults は未保存ユーザーの設定を返す。
func Defaults(userID string) *model.Settings {
	return &model.Settings{
		UserID:             userID,
		ReceiveUpdates:     false,
		EmailNotifications: true,
		Timezone:           "UTC",
		Language:           "en",
	}
}

// Descriptions は設定項目の説明を返す。
func (s *Service) Descriptions() []model.SettingDescription {
	return s.descriptions
}

// Get はユーザー設定を返す。未保存の場合はデフォルト値。
func (s *Service) Get(ctx context.Context, userID string) (*model.Settings, error) {
	st, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}
	if st == nil {
		return Defaults(userID), nil
	}
	return st, nil
}

// Put は指定されたフィールドのみを更新して保存する。
func (s *Service) Put(ctx context.Context, userID string, in Input) (*model.Settings, error) {
	st, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if in.ReceiveUpdates != nil {
		st.ReceiveUpdates = *in.ReceiveUpdates
	}
	if in.EmailNotifications != nil {
		st.EmailNotifications = *in.EmailNotifications
	}
	if in.Timezone != nil {
		if _, err := time.LoadLocation(*in.Timezone); err != nil || *in.Timezone == "" || *in.Timezone == "Local" {
			return nil, model.NewValidationError(fmt.Sprintf("unknown timezone: %s", *in.Timezone))
		}
		st.Timezone = *in.Timezone
	}
	if in.Language != nil {
		if !isSupportedLanguage(*in.Language) {
			return nil, model.NewValidationError(fmt.Sprintf("unsupported language: %s", *in.Language))
		}
		st.Language = *in.Language
	}
	st.UpdatedAt = s.now()

	if err := s.repo.Upsert(ctx, st); err != nil {
		return nil, fmt.Errorf("設定の保存に失敗しました: %w", err)
	}
	return st, nil
}

func isSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
