// Package model はドメインモデルを定義する。
package model

import "time"

// Settings はユーザーごとの通知・表示設定。
type Settings struct {
	UserID             string
	ReceiveUpdates     bool
	EmailNotifications bool
	Timezone           string
	Language           string
	UpdatedAt          time.Time
}

// SettingDescription は設定項目の説明。
type SettingDescription struct {
	Key         string `yaml:"key" json:"key"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}
