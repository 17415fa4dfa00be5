package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus is the lifecycle state of a deposit/withdraw request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusSettled  RequestStatus = "settled"
	RequestStatusCanceled RequestStatus = "canceled"
)

type RequestType string

const (
	RequestTypeDeposit  RequestType = "deposit"
	RequestTypeWithdraw RequestType = "withdraw"
)

const ProcessedByAuto = "auto"

type Request struct {
	ID             int64           `json:"id"               db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	UserID         int64           `json:"user_id"          db:"user_id"          gorm:"column:user_id;not null;index"`
	Platform       string          `json:"platform"         db:"platform"         gorm:"column:platform;not null"`
	AccountID      string          `json:"account_id"       db:"account_id"       gorm:"column:account_id;not null"`
	Amount         decimal.Decimal `json:"amount"           db:"amount"           gorm:"column:amount;type:numeric(14,2);not null;index"`
	RequestType    RequestType     `json:"request_type"     db:"request_type"     gorm:"column:request_type;not null;index"`
	Status         RequestStatus   `json:"status"           db:"status"           gorm:"column:status;not null;default:pending;index"`
	HasReceipt     bool            `json:"has_receipt"      db:"has_receipt"      gorm:"column:has_receipt;not null;default:false"`
	ReceiptNote    string          `json:"receipt_note"     db:"receipt_note"     gorm:"column:receipt_note"`
	SettleNote     string          `json:"settle_note"      db:"settle_note"      gorm:"column:settle_note"`
	ManualReviewAt *time.Time      `json:"manual_review_at" db:"manual_review_at" gorm:"column:manual_review_at"` // set on structural failure
	ProcessedBy    string          `json:"processed_by"     db:"processed_by"     gorm:"column:processed_by"`
	ProcessedAt    *time.Time      `json:"processed_at"     db:"processed_at"     gorm:"column:processed_at"`
	CreatedAt      time.Time       `json:"created_at"       db:"created_at"       gorm:"column:created_at;autoCreateTime;index"`
}

func (Request) TableName() string { return "requests" }

// RequestCreateRequest is the input for creating a request.
type RequestCreateRequest struct {
	UserID      int64           `json:"user_id"`
	Platform    string          `json:"platform"`
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	RequestType RequestType     `json:"request_type"`
	HasReceipt  bool            `json:"has_receipt"`
	ReceiptNote string          `json:"receipt_note"`
}

func (p RequestCreateRequest) Validate() error {
	if p.UserID == 0 {
		return errors.New("user_id is required")
	}
	if p.Platform == "" {
		return errors.New("platform is required")
	}
	if p.AccountID == "" {
		return errors.New("account_id is required")
	}
	if !p.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if p.RequestType != RequestTypeDeposit && p.RequestType != RequestTypeWithdraw {
		return errors.New("request_type must be deposit or withdraw")
	}
	return nil
}

// RequestFilter controls List queries.
type RequestFilter struct {
	UserID   *int64
	Statuses []RequestStatus // IN (...)
	Platform *string
	Type     *RequestType
	From     *time.Time
	To       *time.Time
	Limit    int  // default 50
	Offset   int  // for pagination
	Desc     bool // order by created_at
}
