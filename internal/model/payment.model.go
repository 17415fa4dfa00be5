package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one bank credit notification extracted from a mailbox message.
type Payment struct {
	ID          int64           `json:"id"           db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	Bank        string          `json:"bank"         db:"bank"          gorm:"column:bank;not null;index"`
	Amount      decimal.Decimal `json:"amount"       db:"amount"        gorm:"column:amount;type:numeric(14,2);not null;index"`
	ReceivedAt  *time.Time      `json:"received_at"  db:"received_at"   gorm:"column:received_at;index"` // bank-stated time, nullable
	IngestedAt  time.Time       `json:"ingested_at"  db:"ingested_at"   gorm:"column:ingested_at;autoCreateTime;index"`
	Fingerprint string          `json:"fingerprint"  db:"fingerprint"   gorm:"column:fingerprint;not null;uniqueIndex"`
	RawExcerpt  string          `json:"raw_excerpt"  db:"raw_excerpt"   gorm:"column:raw_excerpt"`
	IsProcessed bool            `json:"is_processed" db:"is_processed"  gorm:"column:is_processed;not null;default:false;index"`
	RequestID   *int64          `json:"request_id"   db:"request_id"    gorm:"column:request_id;index"` // nullable until settled
}

func (Payment) TableName() string { return "payments" }

// PaymentFilter controls List queries.
type PaymentFilter struct {
	Bank        *string
	IsProcessed *bool
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
	Desc        bool // order by ingested_at
}
