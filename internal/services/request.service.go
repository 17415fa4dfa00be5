package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/paykg/deposit-gateway/internal/model"
	"github.com/paykg/deposit-gateway/pkg/logger"
)

var (
	ErrNotFound        = errors.New("error notfound")
	ErrUnknownPlatform = errors.New("unknown platform")
)

type RequestRepository interface {
	Create(ctx context.Context, r *model.Request) (*model.Request, error)
	GetByID(ctx context.Context, id int64) (*model.Request, error)
	List(ctx context.Context, f model.RequestFilter) ([]*model.Request, int64, error) // results, totalCount
}

type PaymentRepository interface {
	List(ctx context.Context, f model.PaymentFilter) ([]*model.Payment, int64, error)
}

// RecheckPublisher hands a freshly created deposit request to the
// reconciliation daemon. *queue.Queue satisfies it.
type RecheckPublisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// RecheckEvent is the queue payload telling the daemon to re-run matching
// for one request.
type RecheckEvent struct {
	RequestID int64 `json:"request_id"`
}

type RequestService struct {
	requestRepo RequestRepository
	paymentRepo PaymentRepository
	publisher   RecheckPublisher
	platforms   map[string]bool
}

func NewRequestService(requestRepo RequestRepository, paymentRepo PaymentRepository, publisher RecheckPublisher, platforms []string) *RequestService {
	known := make(map[string]bool, len(platforms))
	for _, p := range platforms {
		known[p] = true
	}
	return &RequestService{
		requestRepo: requestRepo,
		paymentRepo: paymentRepo,
		publisher:   publisher,
		platforms:   known,
	}
}

func (s *RequestService) Create(ctx context.Context, p model.RequestCreateRequest) (*model.Request, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(s.platforms) > 0 && !s.platforms[p.Platform] {
		return nil, ErrUnknownPlatform
	}

	r := &model.Request{
		UserID:      p.UserID,
		Platform:    p.Platform,
		AccountID:   p.AccountID,
		Amount:      p.Amount.Round(2),
		RequestType: p.RequestType,
		Status:      model.RequestStatusPending,
		HasReceipt:  p.HasReceipt,
		ReceiptNote: p.ReceiptNote,
	}

	created, err := s.requestRepo.Create(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// deposits with evidence are worth matching right away; a failed
	// publish is not fatal because the rescan sweep picks the request up
	if created.RequestType == model.RequestTypeDeposit && created.HasReceipt && s.publisher != nil {
		if _, err := s.publisher.PublishJSON(ctx, RecheckEvent{RequestID: created.ID}, nil); err != nil {
			logger.Warn("request: recheck publish failed, rescan will cover",
				"request_id", created.ID, "error", err)
		}
	}

	return created, nil
}

func (s *RequestService) Get(ctx context.Context, id int64) (*model.Request, error) {
	return s.requestRepo.GetByID(ctx, id)
}

func (s *RequestService) List(ctx context.Context, f model.RequestFilter) ([]*model.Request, int64, error) {
	return s.requestRepo.List(ctx, f)
}

func (s *RequestService) ListPayments(ctx context.Context, f model.PaymentFilter) ([]*model.Payment, int64, error) {
	return s.paymentRepo.List(ctx, f)
}
