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
	// ErrRequestNotFound is returned when a request does not exist.
	ErrRequestNotFound = errors.New("request not found")
	// ErrRequestSettled is returned when a conditional settle update finds
	// the request no longer pending.
	ErrRequestSettled = errors.New("request already settled")
)

type RequestRepository struct {
	*pg.DB
}

func NewRequestRepository(db *pg.DB) *RequestRepository {
	return &RequestRepository{
		db,
	}
}

func (r *RequestRepository) Create(ctx context.Context, req *model.Request) (*model.Request, error) {
	entity := toRequestEntity(req)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toRequestModel(entity), nil
}

func (r *RequestRepository) GetByID(ctx context.Context, id int64) (*model.Request, error) {
	var entity RequestEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return toRequestModel(&entity), nil
}

// GetByIDLocked loads the request FOR UPDATE. Must run inside a transaction.
func (r *RequestRepository) GetByIDLocked(ctx context.Context, id int64) (*model.Request, error) {
	var entity RequestEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&entity, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, err
	}
	return toRequestModel(&entity), nil
}

// FindPendingByAmount returns deposit requests still eligible for automatic
// settlement at the exact amount: pending, evidence attached, younger than
// maxAge, not flagged for manual review. Oldest first, so ties settle FIFO.
func (r *RequestRepository) FindPendingByAmount(ctx context.Context, amount decimal.Decimal, maxAge time.Duration) ([]*model.Request, error) {
	var entities []*RequestEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ?", string(model.RequestStatusPending)).
		Where("request_type = ?", string(model.RequestTypeDeposit)).
		Where("has_receipt = ?", true).
		Where("manual_review_at IS NULL").
		Where("amount = ?", amount).
		Where("created_at >= ?", time.Now().UTC().Add(-maxAge)).
		Order("created_at ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toRequestModels(entities), nil
}

// FindPendingForRescan feeds the safety-net scheduler: every request that
// could still settle automatically, regardless of amount.
func (r *RequestRepository) FindPendingForRescan(ctx context.Context, maxAge time.Duration, limit int) ([]*model.Request, error) {
	if limit <= 0 {
		limit = 100
	}
	var entities []*RequestEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("status = ?", string(model.RequestStatusPending)).
		Where("request_type = ?", string(model.RequestTypeDeposit)).
		Where("has_receipt = ?", true).
		Where("manual_review_at IS NULL").
		Where("created_at >= ?", time.Now().UTC().Add(-maxAge)).
		Order("created_at ASC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toRequestModels(entities), nil
}

// MarkSettled closes the request. Conditional on the request still being
// pending; losing the race returns ErrRequestSettled.
func (r *RequestRepository) MarkSettled(ctx context.Context, requestID int64, note string) error {
	now := time.Now().UTC()
	res := r.Write(ctx).WithContext(ctx).
		Model(&RequestEntity{}).
		Where("id = ? AND status = ?", requestID, string(model.RequestStatusPending)).
		Updates(map[string]interface{}{
			"status":       string(model.RequestStatusSettled),
			"processed_by": model.ProcessedByAuto,
			"processed_at": now,
			"settle_note":  note,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRequestSettled
	}
	return nil
}

// RecordFailure writes a diagnostic note and, for structural failures, the
// manual-review marker that takes the request out of automatic rescans.
func (r *RequestRepository) RecordFailure(ctx context.Context, requestID int64, note string, manualReview bool) error {
	updates := map[string]interface{}{
		"settle_note": note,
	}
	if manualReview {
		updates["manual_review_at"] = time.Now().UTC()
	}
	return r.Write(ctx).WithContext(ctx).
		Model(&RequestEntity{}).
		Where("id = ?", requestID).
		Updates(updates).Error
}

func (r *RequestRepository) List(ctx context.Context, f model.RequestFilter) ([]*model.Request, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&RequestEntity{})

	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.Platform != nil && *f.Platform != "" {
		q = q.Where("platform = ?", *f.Platform)
	}
	if f.Type != nil {
		q = q.Where("request_type = ?", string(*f.Type))
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
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

	var entities []*RequestEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toRequestModels(entities), total, nil
}
