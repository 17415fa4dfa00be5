package repository

import (
	"time"

	"github.com/paykg/deposit-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type PaymentEntity struct {
	ID          int64           `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	Bank        string          `db:"bank"         gorm:"column:bank;not null;index"`
	Amount      decimal.Decimal `db:"amount"       gorm:"column:amount;type:numeric(14,2);not null;index"`
	ReceivedAt  *time.Time      `db:"received_at"  gorm:"column:received_at;index"`
	IngestedAt  time.Time       `db:"ingested_at"  gorm:"column:ingested_at;autoCreateTime;index"`
	Fingerprint string          `db:"fingerprint"  gorm:"column:fingerprint;not null;uniqueIndex"`
	RawExcerpt  string          `db:"raw_excerpt"  gorm:"column:raw_excerpt"`
	IsProcessed bool            `db:"is_processed" gorm:"column:is_processed;not null;default:false;index"`
	RequestID   *int64          `db:"request_id"   gorm:"column:request_id;index"`
}

func (PaymentEntity) TableName() string {
	return "payments"
}

func toPaymentEntity(m *model.Payment) *PaymentEntity {
	if m == nil {
		return nil
	}
	return &PaymentEntity{
		ID:          m.ID,
		Bank:        m.Bank,
		Amount:      m.Amount,
		ReceivedAt:  m.ReceivedAt,
		IngestedAt:  m.IngestedAt,
		Fingerprint: m.Fingerprint,
		RawExcerpt:  m.RawExcerpt,
		IsProcessed: m.IsProcessed,
		RequestID:   m.RequestID,
	}
}

func toPaymentModel(e *PaymentEntity) *model.Payment {
	if e == nil {
		return nil
	}
	return &model.Payment{
		ID:          e.ID,
		Bank:        e.Bank,
		Amount:      e.Amount,
		ReceivedAt:  e.ReceivedAt,
		IngestedAt:  e.IngestedAt,
		Fingerprint: e.Fingerprint,
		RawExcerpt:  e.RawExcerpt,
		IsProcessed: e.IsProcessed,
		RequestID:   e.RequestID,
	}
}

func toPaymentModels(entities []*PaymentEntity) []*model.Payment {
	if entities == nil {
		return nil
	}
	models := make([]*model.Payment, len(entities))
	for i, e := range entities {
		models[i] = toPaymentModel(e)
	}
	return models
}
