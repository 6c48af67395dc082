package dbModel

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type Holding struct {
	HoldingID     int64           `db:"holding_id"`
	UserID        int64           `db:"user_id"`
	Code          string          `db:"code"`
	Name          string          `db:"name"`
	ShareCount    decimal.Decimal `db:"share_count"`
	HoldingAmount decimal.Decimal `db:"holding_amount"`
	CurrentProfit decimal.Decimal `db:"current_profit"`
	Notes         pgtype.Text     `db:"notes"`
	CreatedAt     time.Time       `db:"dt_create"`
	UpdatedAt     time.Time       `db:"dt_update"`
}
