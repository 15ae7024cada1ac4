// Package cleanup は未受諾のチーム招待を期限切れにする定期ジョブを提供する。
// 招待からTTLを超えた "invited" 状態のメンバーを "expired" にする。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// InviteExpirer は期限切れ招待の更新を行う。team.Serviceが満たす。
type InviteExpirer interface {
	ExpireInvites(ctx context.Context, ttl time.Duration) (int64, error)
}

// Recorder は期限切れにした件数を記録する。
type Recorder interface {
	RecordInvitesExpired(count int)
}

// InviteExpiryJob は未受諾招待の期限切れジョブ。
// 冪等で、対象がない場合もエラーにならない。
type InviteExpiryJob struct {
	expirer  InviteExpirer
	recorder Recorder
	logger   *slog.Logger
	TTL      time.Duration // 招待の有効期間（デフォルト: 7日）
}

// NewInviteExpiryJob は新しいInviteExpiryJobを生成する。
// デフォルトのTTLは7日。
func NewInviteExpiryJob(expirer InviteExpirer, recorder Recorder, logger *slog.Logger) *InviteExpiryJob {
	return &InviteExpiryJob{
		expirer:  expirer,
		recorder: recorder,
		logger:   logger,
		TTL:      7 * 24 * time.Hour,
	}
}

// Run は期限切れ処理を1回実行する。
func (j *InviteExpiryJob) Run(ctx context.Context) error {
	start := time.Now()

	expired, err := j.expirer.ExpireInvites(ctx, j.TTL)
	if err != nil {
		j.logger.Error("招待の期限切れジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Duration("ttl", j.TTL),
		)
		return fmt.Errorf("招待の期限切れ処理の実行に失敗: %w", err)
	}

	if j.recorder != nil && expired > 0 {
		j.recorder.RecordInvitesExpired(int(expired))
	}

	j.logger.Info("招待の期限切れジョブが完了しました",
		slog.Int64("expired_count", expired),
		slog.Duration("ttl", j.TTL),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Loop は起動直後に1回、その後interval毎にRunを実行する。ctxがキャンセルされると戻る。
// 個々の実行の失敗はログに記録して次の周期を待つ。
func (j *InviteExpiryJob) Loop(ctx context.Context, interval time.Duration) {
	j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
