package matcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paykg/deposit-gateway/internal/casino"
	"github.com/paykg/deposit-gateway/internal/model"
	"github.com/paykg/deposit-gateway/internal/notify"
	"github.com/paykg/deposit-gateway/internal/repository"
	"github.com/paykg/deposit-gateway/pkg/backoff"
	"github.com/paykg/deposit-gateway/pkg/logger"
	"github.com/paykg/deposit-gateway/pkg/prom"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrRaceLost means another settler consumed the payment or request
	// first. Callers treat it as a no-op.
	ErrRaceLost = errors.New("settlement race lost")
	// ErrNoMatch means no eligible counterpart exists right now. The rescan
	// scheduler will look again.
	ErrNoMatch = errors.New("no eligible match")
)

// structuralError carries the platform's reason for a credit that can never
// succeed. It aborts the settlement transaction and flags manual review.
type structuralError struct {
	reason  string
	message string
}

func (e *structuralError) Error() string {
	return fmt.Sprintf("structural credit failure: %s (%s)", e.reason, e.message)
}

// errTransient marks a credit attempt worth retrying.
var errTransient = errors.New("transient credit failure")

type PaymentRepo interface {
	GetByID(ctx context.Context, id int64) (*model.Payment, error)
	GetByIDLocked(ctx context.Context, id int64) (*model.Payment, error)
	FindUnprocessedByNotifiedAt(ctx context.Context, amount decimal.Decimal, from, to time.Time) ([]*model.Payment, error)
	FindUnprocessedByIngestedAt(ctx context.Context, amount decimal.Decimal, from, to time.Time) ([]*model.Payment, error)
	MarkProcessed(ctx context.Context, paymentID, requestID int64) error
}

type RequestRepo interface {
	GetByID(ctx context.Context, id int64) (*model.Request, error)
	GetByIDLocked(ctx context.Context, id int64) (*model.Request, error)
	FindPendingByAmount(ctx context.Context, amount decimal.Decimal, maxAge time.Duration) ([]*model.Request, error)
	MarkSettled(ctx context.Context, requestID int64, note string) error
	RecordFailure(ctx context.Context, requestID int64, note string, manualReview bool) error
}

// TxRunner runs a function inside a write transaction. *pg.DB satisfies it.
type TxRunner interface {
	WithinTransactionTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error
}

type Options struct {
	PaymentMaxAge     time.Duration
	RequestMaxAge     time.Duration
	MatchWindow       time.Duration
	AllowWholeAmounts bool
	SettleTxTimeout   time.Duration
	CreditAttempts    int
	Backoff           backoff.Policy
}

func DefaultOptions() Options {
	return Options{
		PaymentMaxAge:   10 * time.Minute,
		RequestMaxAge:   10 * time.Minute,
		MatchWindow:     5 * time.Minute,
		SettleTxTimeout: 3 * time.Minute,
		CreditAttempts:  3,
		Backoff:         backoff.Policy{Initial: 2 * time.Second, Max: 20 * time.Second, Factor: 2},
	}
}

// Matcher pairs unprocessed payments with pending deposit requests and
// settles them against the platform cashdesk.
type Matcher struct {
	payments PaymentRepo
	requests RequestRepo
	tx       TxRunner
	credit   casino.CreditClient
	notifier notify.Notifier
	opts     Options

	// one settlement per request at a time, across all entry points
	group singleflight.Group
}

func New(payments PaymentRepo, requests RequestRepo, tx TxRunner, credit casino.CreditClient, notifier notify.Notifier, opts Options) *Matcher {
	if opts.CreditAttempts <= 0 {
		opts.CreditAttempts = 3
	}
	if opts.SettleTxTimeout == 0 {
		opts.SettleTxTimeout = 3 * time.Minute
	}
	return &Matcher{
		payments: payments,
		requests: requests,
		tx:       tx,
		credit:   credit,
		notifier: notifier,
		opts:     opts,
	}
}

// SettlePayment tries to settle a freshly ingested payment against the
// oldest eligible deposit request of the same amount.
func (m *Matcher) SettlePayment(ctx context.Context, paymentID int64) error {
	p, err := m.payments.GetByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if p.IsProcessed {
		return nil
	}
	if !m.amountEligible(p.Amount) {
		logger.Debug("matcher: payment amount not eligible", "payment_id", p.ID, "amount", p.Amount.String())
		return nil
	}
	if time.Since(p.IngestedAt) > m.opts.PaymentMaxAge {
		return nil
	}

	candidates, err := m.requests.FindPendingByAmount(ctx, p.Amount, m.opts.RequestMaxAge)
	if err != nil {
		return err
	}
	candidates = m.filterByWindow(candidates, p)
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) > 1 {
		logger.Warn("matcher: multiple candidate requests for payment, settling oldest",
			"payment_id", p.ID, "amount", p.Amount.String(), "candidates", len(candidates))
	}

	err = m.settle(ctx, candidates[0].ID, p.ID)
	if errors.Is(err, ErrRaceLost) {
		return nil
	}
	return err
}

// RecheckRequest tries to settle a pending deposit request against an
// unprocessed payment. Safe to call at any time and from any number of
// goroutines; concurrent calls for the same request collapse into one.
func (m *Matcher) RecheckRequest(ctx context.Context, requestID int64) error {
	r, err := m.requests.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if !m.requestEligible(r) {
		return nil
	}

	p, err := m.findPaymentFor(ctx, r)
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			return nil
		}
		return err
	}

	err = m.settle(ctx, r.ID, p.ID)
	if errors.Is(err, ErrRaceLost) {
		return nil
	}
	return err
}

func (m *Matcher) requestEligible(r *model.Request) bool {
	if r.Status != model.RequestStatusPending ||
		r.RequestType != model.RequestTypeDeposit ||
		!r.HasReceipt ||
		r.ManualReviewAt != nil {
		return false
	}
	if time.Since(r.CreatedAt) > m.opts.RequestMaxAge {
		return false
	}
	return m.amountEligible(r.Amount)
}

// amountEligible excludes whole amounts unless configured otherwise: round
// figures collide too easily across users, the cents are what makes the
// transfer identifiable.
func (m *Matcher) amountEligible(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	if m.opts.AllowWholeAmounts {
		return true
	}
	cents := amount.Sub(amount.Truncate(0))
	return !cents.IsZero()
}

// filterByWindow keeps requests created within MatchWindow of the payment's
// bank-stated time, falling back to ingestion time when the email carried no
// timestamp.
func (m *Matcher) filterByWindow(requests []*model.Request, p *model.Payment) []*model.Request {
	ref := p.IngestedAt
	if p.ReceivedAt != nil {
		ref = *p.ReceivedAt
	}
	var out []*model.Request
	for _, r := range requests {
		d := ref.Sub(r.CreatedAt)
		if d < 0 {
			d = -d
		}
		if d <= m.opts.MatchWindow {
			out = append(out, r)
		}
	}
	return out
}

// findPaymentFor searches the notification-time window first, then falls
// back to ingestion time for payments whose emails had no parsable date.
func (m *Matcher) findPaymentFor(ctx context.Context, r *model.Request) (*model.Payment, error) {
	from := r.CreatedAt.Add(-m.opts.MatchWindow)
	to := r.CreatedAt.Add(m.opts.MatchWindow)

	payments, err := m.payments.FindUnprocessedByNotifiedAt(ctx, r.Amount, from, to)
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		// self-reported timestamps can be wrong or missing, so the fallback
		// considers anything ingested within the payment age bound
		now := time.Now().UTC()
		payments, err = m.payments.FindUnprocessedByIngestedAt(ctx, r.Amount, now.Add(-m.opts.PaymentMaxAge), now)
		if err != nil {
			return nil, err
		}
	}
	if len(payments) == 0 {
		return nil, ErrNoMatch
	}
	if len(payments) > 1 {
		logger.Warn("matcher: multiple candidate payments for request, settling oldest",
			"request_id", r.ID, "amount", r.Amount.String(), "candidates", len(payments))
	}
	return payments[0], nil
}

// settle runs the settlement transaction for one request/payment pair.
// Concurrent settles for the same request share a single execution.
func (m *Matcher) settle(ctx context.Context, requestID, paymentID int64) error {
	key := fmt.Sprintf("request:%d", requestID)
	_, err, _ := m.group.Do(key, func() (interface{}, error) {
		return nil, m.settleOnce(ctx, requestID, paymentID)
	})
	return err
}

func (m *Matcher) settleOnce(ctx context.Context, requestID, paymentID int64) error {
	started := time.Now()

	// one reference across retries, so the platform can de-duplicate
	reference := uuid.NewString()

	var platform, accountID string
	var amount decimal.Decimal

	attempt := func() error {
		return m.tx.WithinTransactionTimeout(ctx, m.opts.SettleTxTimeout, func(txCtx context.Context) error {
			p, err := m.payments.GetByIDLocked(txCtx, paymentID)
			if err != nil {
				return err
			}
			if p.IsProcessed {
				return ErrRaceLost
			}

			r, err := m.requests.GetByIDLocked(txCtx, requestID)
			if err != nil {
				return err
			}
			if r.Status != model.RequestStatusPending || r.ManualReviewAt != nil {
				return ErrRaceLost
			}
			if !p.Amount.Equal(r.Amount) {
				return ErrRaceLost
			}

			platform, accountID, amount = r.Platform, r.AccountID, r.Amount

			res, err := m.credit.Credit(txCtx, casino.CreditRequest{
				Platform:  r.Platform,
				AccountID: r.AccountID,
				Amount:    r.Amount,
				Reference: reference,
			})
			if err != nil {
				return err
			}

			switch res.Outcome {
			case casino.OutcomeSuccess, casino.OutcomeDuplicate:
				if res.Outcome == casino.OutcomeDuplicate {
					logger.Info("matcher: platform reports duplicate credit, absorbing as success",
						"request_id", requestID, "reference", reference)
				}
				if err := m.payments.MarkProcessed(txCtx, paymentID, requestID); err != nil {
					if errors.Is(err, repository.ErrPaymentProcessed) {
						return ErrRaceLost
					}
					return err
				}
				note := fmt.Sprintf("credited %s via %s, op %s", r.Amount.StringFixed(2), r.Platform, res.OperationID)
				if err := m.requests.MarkSettled(txCtx, requestID, note); err != nil {
					if errors.Is(err, repository.ErrRequestSettled) {
						return ErrRaceLost
					}
					return err
				}
				prom.AddSettlementOutcome(string(res.Outcome))
				return nil
			case casino.OutcomeStructural:
				return &structuralError{reason: res.ReasonCode, message: res.Message}
			default:
				logger.Warn("matcher: transient credit failure",
					"request_id", requestID, "reference", reference, "message", res.Message)
				return fmt.Errorf("%w: %s", errTransient, res.Message)
			}
		})
	}

	err := backoff.Retry(ctx, m.opts.Backoff, m.opts.CreditAttempts, attempt, func(err error) bool {
		return errors.Is(err, errTransient)
	})

	var sErr *structuralError
	switch {
	case err == nil:
		prom.AddSettlementDuration(time.Since(started).Seconds(), platform)
		logger.Info("matcher: request settled",
			"request_id", requestID, "payment_id", paymentID,
			"platform", platform, "amount", amount.StringFixed(2))
		m.notifier.SendDeposit(context.WithoutCancel(ctx), amount, platform, accountID)
		return nil
	case errors.As(err, &sErr):
		// the tx rolled back; the marker lives outside it so the failed
		// credit leaves a trace even though nothing was linked
		prom.AddSettlementOutcome(string(casino.OutcomeStructural))
		note := fmt.Sprintf("credit rejected: %s (%s)", sErr.reason, sErr.message)
		if rerr := m.requests.RecordFailure(ctx, requestID, note, true); rerr != nil {
			logger.Error("matcher: failed to record structural failure",
				"request_id", requestID, "error", rerr)
		}
		logger.Warn("matcher: request flagged for manual review",
			"request_id", requestID, "reason", sErr.reason)
		return err
	case errors.Is(err, errTransient):
		prom.AddSettlementOutcome(string(casino.OutcomeTransient))
		if rerr := m.requests.RecordFailure(ctx, requestID, "credit attempts exhausted: "+err.Error(), false); rerr != nil {
			logger.Error("matcher: failed to record transient failure",
				"request_id", requestID, "error", rerr)
		}
		return err
	default:
		return err
	}
}
