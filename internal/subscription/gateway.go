package subscription

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// PaymentGateway は決済の実行を担う外部サービス。
type PaymentGateway interface {
	// Charge は金額を課金し、決済参照IDを返す。
	Charge(ctx context.Context, userID string, amountCents int64, description string) (string, error)
}

// MockGateway は常に成功するPaymentGateway。実決済連携の代わりに使う。
type MockGateway struct{}

// Charge は"mock_"で始まるULIDの決済参照IDを返す。
func (MockGateway) Charge(ctx context.Context, userID string, amountCents int64, description string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "mock_" + ulid.Make().String(), nil
}
