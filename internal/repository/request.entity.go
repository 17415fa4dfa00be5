package repository

import (
	"time"

	"github.com/paykg/deposit-gateway/internal/model"
	"github.com/shopspring/decimal"
)

type RequestEntity struct {
	ID             int64           `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	UserID         int64           `db:"user_id"          gorm:"column:user_id;not null;index"`
	Platform       string          `db:"platform"         gorm:"column:platform;not null"`
	AccountID      string          `db:"account_id"       gorm:"column:account_id;not null"`
	Amount         decimal.Decimal `db:"amount"           gorm:"column:amount;type:numeric(14,2);not null;index"`
	RequestType    string          `db:"request_type"     gorm:"column:request_type;not null;index"`
	Status         string          `db:"status"           gorm:"column:status;not null;default:pending;index"`
	HasReceipt     bool            `db:"has_receipt"      gorm:"column:has_receipt;not null;default:false"`
	ReceiptNote    string          `db:"receipt_note"     gorm:"column:receipt_note"`
	SettleNote     string          `db:"settle_note"      gorm:"column:settle_note"`
	ManualReviewAt *time.Time      `db:"manual_review_at" gorm:"column:manual_review_at"`
	ProcessedBy    string          `db:"processed_by"     gorm:"column:processed_by"`
	ProcessedAt    *time.Time      `db:"processed_at"     gorm:"column:processed_at"`
	CreatedAt      time.Time       `db:"created_at"       gorm:"column:created_at;autoCreateTime;index"`
}

func (RequestEntity) TableName() string {
	return "requests"
}

func toRequestEntity(m *model.Request) *RequestEntity {
	if m == nil {
		return nil
	}
	return &RequestEntity{
		ID:             m.ID,
		UserID:         m.UserID,
		Platform:       m.Platform,
		AccountID:      m.AccountID,
		Amount:         m.Amount,
		RequestType:    string(m.RequestType),
		Status:         string(m.Status),
		HasReceipt:     m.HasReceipt,
		ReceiptNote:    m.ReceiptNote,
		SettleNote:     m.SettleNote,
		ManualReviewAt: m.ManualReviewAt,
		ProcessedBy:    m.ProcessedBy,
		ProcessedAt:    m.ProcessedAt,
		CreatedAt:      m.CreatedAt,
	}
}

func toRequestModel(e *RequestEntity) *model.Request {
	if e == nil {
		return nil
	}
	return &model.Request{
		ID:             e.ID,
		UserID:         e.UserID,
		Platform:       e.Platform,
		AccountID:      e.AccountID,
		Amount:         e.Amount,
		RequestType:    model.RequestType(e.RequestType),
		Status:         model.RequestStatus(e.Status),
		HasReceipt:     e.HasReceipt,
		ReceiptNote:    e.ReceiptNote,
		SettleNote:     e.SettleNote,
		ManualReviewAt: e.ManualReviewAt,
		ProcessedBy:    e.ProcessedBy,
		ProcessedAt:    e.ProcessedAt,
		CreatedAt:      e.CreatedAt,
	}
}

func toRequestModels(entities []*RequestEntity) []*model.Request {
	if entities == nil {
		return nil
	}
	models := make([]*model.Request, len(entities))
	for i, e := range entities {
		models[i] = toRequestModel(e)
	}
	return models
}
