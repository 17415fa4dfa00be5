package repository

import (
	"context"
	"errors"
	"time"

	"github.com/paykg/deposit-gateway/internal/model"
	"github.com/paykg/deposit-gateway/pkg/pg"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrPaymentNotFound is returned when a payment does not exist.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPaymentProcessed is returned when a conditional update loses the
	// race to another settler.
	ErrPaymentProcessed = errors.New("payment already processed")
)

type PaymentRepository struct {
	*pg.DB
}

func NewPaymentRepository(db *pg.DB) *PaymentRepository {
	return &PaymentRepository{
		db,
	}
}

func (r *PaymentRepository) Create(ctx context.Context, p *model.Payment) (*model.Payment, error) {
	entity := toPaymentEntity(p)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toPaymentModel(entity), nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*model.Payment, error) {
	var entity PaymentEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return toPaymentModel(&entity), nil
}

// GetByIDLocked loads the payment FOR UPDATE. Must run inside a transaction.
func (r *PaymentRepository) GetByIDLocked(ctx context.Context, id int64) (*model.Payment, error) {
	var entity PaymentEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&entity, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return toPaymentModel(&entity), nil
}

// FindUnprocessedByNotifiedAt returns unprocessed payments of the exact
// amount whose bank-stated time falls in [from, to], oldest first.
func (r *PaymentRepository) FindUnprocessedByNotifiedAt(ctx context.Context, amount decimal.Decimal, from, to time.Time) ([]*model.Payment, error) {
	var entities []*PaymentEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("is_processed = ?", false).
		Where("amount = ?", amount).
		Where("received_at IS NOT NULL").
		Where("received_at >= ? AND received_at <= ?", from, to).
		Order("received_at ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toPaymentModels(entities), nil
}

// FindUnprocessedByIngestedAt is the fallback search for payments whose email
// carried no usable timestamp; it windows on ingestion time instead.
func (r *PaymentRepository) FindUnprocessedByIngestedAt(ctx context.Context, amount decimal.Decimal, from, to time.Time) ([]*model.Payment, error) {
	var entities []*PaymentEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("is_processed = ?", false).
		Where("amount = ?", amount).
		Where("ingested_at >= ? AND ingested_at <= ?", from, to).
		Order("ingested_at ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toPaymentModels(entities), nil
}

func (r *PaymentRepository) ExistsFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&PaymentEntity{}).
		Where("fingerprint = ?", fingerprint).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkProcessed links the payment to a request. The update is conditional on
// is_processed still being false, so a concurrent settler cannot consume the
// same payment twice.
func (r *PaymentRepository) MarkProcessed(ctx context.Context, paymentID, requestID int64) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&PaymentEntity{}).
		Where("id = ? AND is_processed = ?", paymentID, false).
		Updates(map[string]interface{}{
			"is_processed": true,
			"request_id":   requestID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPaymentProcessed
	}
	return nil
}

func (r *PaymentRepository) List(ctx context.Context, f model.PaymentFilter) ([]*model.Payment, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&PaymentEntity{})

	if f.Bank != nil && *f.Bank != "" {
		q = q.Where("bank = ?", *f.Bank)
	}
	if f.IsProcessed != nil {
		q = q.Where("is_processed = ?", *f.IsProcessed)
	}
	if f.From != nil {
		q = q.Where("ingested_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("ingested_at < ?", *f.To)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "ingested_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*PaymentEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toPaymentModels(entities), total, nil
}
