package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/paykg/deposit-gateway/internal/casino"
	"github.com/paykg/deposit-gateway/internal/model"
	"github.com/paykg/deposit-gateway/internal/repository"
	"github.com/paykg/deposit-gateway/pkg/backoff"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPaymentRepo struct {
	mock.Mock
}

func (m *MockPaymentRepo) GetByID(ctx context.Context, id int64) (*model.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentRepo) GetByIDLocked(ctx context.Context, id int64) (*model.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentRepo) FindUnprocessedByNotifiedAt(ctx context.Context, amount decimal.Decimal, from, to time.Time) ([]*model.Payment, error) {
	args := m.Called(ctx, amount, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Payment), args.Error(1)
}

func (m *MockPaymentRepo) FindUnprocessedByIngestedAt(ctx context.Context, amount decimal.Decimal, from, to time.Time) ([]*model.Payment, error) {
	args := m.Called(ctx, amount, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Payment), args.Error(1)
}

func (m *MockPaymentRepo) MarkProcessed(ctx context.Context, paymentID, requestID int64) error {
	args := m.Called(ctx, paymentID, requestID)
	return args.Error(0)
}

type MockRequestRepo struct {
	mock.Mock
}

func (m *MockRequestRepo) GetByID(ctx context.Context, id int64) (*model.Request, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Request), args.Error(1)
}

func (m *MockRequestRepo) GetByIDLocked(ctx context.Context, id int64) (*model.Request, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Request), args.Error(1)
}

func (m *MockRequestRepo) FindPendingByAmount(ctx context.Context, amount decimal.Decimal, maxAge time.Duration) ([]*model.Request, error) {
	args := m.Called(ctx, amount, maxAge)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Request), args.Error(1)
}

func (m *MockRequestRepo) MarkSettled(ctx context.Context, requestID int64, note string) error {
	args := m.Called(ctx, requestID, note)
	return args.Error(0)
}

func (m *MockRequestRepo) RecordFailure(ctx context.Context, requestID int64, note string, manualReview bool) error {
	args := m.Called(ctx, requestID, note, manualReview)
	return args.Error(0)
}

type MockTxRunner struct {
	mock.Mock
}

func (m *MockTxRunner) WithinTransactionTimeout(ctx context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	m.Called(ctx, d, fn)
	return fn(ctx)
}

type MockCreditClient struct {
	mock.Mock
}

func (m *MockCreditClient) Credit(ctx context.Context, req casino.CreditRequest) (*casino.CreditResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*casino.CreditResult), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendDeposit(ctx context.Context, amount decimal.Decimal, platform, accountID string) {
	m.Called(ctx, amount, platform, accountID)
}

type fixture struct {
	payments *MockPaymentRepo
	requests *MockRequestRepo
	tx       *MockTxRunner
	credit   *MockCreditClient
	notifier *MockNotifier
	matcher  *Matcher
}

func newFixture(opts Options) *fixture {
	f := &fixture{
		payments: &MockPaymentRepo{},
		requests: &MockRequestRepo{},
		tx:       &MockTxRunner{},
		credit:   &MockCreditClient{},
		notifier: &MockNotifier{},
	}
	// keep retries fast in tests
	opts.Backoff = backoff.Policy{Initial: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2}
	f.matcher = New(f.payments, f.requests, f.tx, f.credit, f.notifier, opts)
	return f
}

func amt(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func pendingRequest(id int64, amount string, age time.Duration) *model.Request {
	return &model.Request{
		ID:          id,
		UserID:      1,
		Platform:    "xbet",
		AccountID:   "acc-9",
		Amount:      amt(amount),
		RequestType: model.RequestTypeDeposit,
		Status:      model.RequestStatusPending,
		HasReceipt:  true,
		CreatedAt:   time.Now().UTC().Add(-age),
	}
}

func unprocessedPayment(id int64, amount string, age time.Duration) *model.Payment {
	received := time.Now().UTC().Add(-age)
	return &model.Payment{
		ID:         id,
		Bank:       "demirbank",
		Amount:     amt(amount),
		ReceivedAt: &received,
		IngestedAt: time.Now().UTC().Add(-age),
	}
}

func TestSettlePayment_ExactMatchSettles(t *testing.T) {
	f := newFixture(DefaultOptions())
	ctx := context.Background()

	p := unprocessedPayment(10, "150.36", time.Minute)
	r := pendingRequest(20, "150.36", 2*time.Minute)

	f.payments.On("GetByID", ctx, int64(10)).Return(p, nil)
	f.requests.On("FindPendingByAmount", ctx, p.Amount, 10*time.Minute).Return([]*model.Request{r}, nil)
	f.tx.On("WithinTransactionTimeout", mock.Anything, 3*time.Minute, mock.Anything).Return(nil)
	f.payments.On("GetByIDLocked", mock.Anything, int64(10)).Return(p, nil)
	f.requests.On("GetByIDLocked", mock.Anything, int64(20)).Return(r, nil)
	f.credit.On("Credit", mock.Anything, mock.MatchedBy(func(cr casino.CreditRequest) bool {
		return cr.Platform == "xbet" && cr.AccountID == "acc-9" &&
			cr.Amount.Equal(amt("150.36")) && cr.Reference != ""
	})).Return(&casino.CreditResult{Outcome: casino.OutcomeSuccess, OperationID: "op-1"}, nil)
	f.payments.On("MarkProcessed", mock.Anything, int64(10), int64(20)).Return(nil)
	f.requests.On("MarkSettled", mock.Anything, int64(20), mock.Anything).Return(nil)
	f.notifier.On("SendDeposit", mock.Anything, mock.Anything, "xbet", "acc-9").Return()

	err := f.matcher.SettlePayment(ctx, 10)
	require.NoError(t, err)

	f.payments.AssertExpectations(t)
	f.requests.AssertExpectations(t)
	f.credit.AssertNumberOfCalls(t, "Credit", 1)
	f.notifier.AssertCalled(t, "SendDeposit", mock.Anything, mock.Anything, "xbet", "acc-9")
}

func TestSettlePayment_WholeAmountExcluded(t *testing.T) {
	f := newFixture(DefaultOptions())
	ctx := context.Background()

	p := unprocessedPayment(11, "500.00", time.Minute)
	f.payments.On("GetByID", ctx, int64(11)).Return(p, nil)

	err := f.matcher.SettlePayment(ctx, 11)
	require.NoError(t, err)

	f.requests.AssertNotCalled(t, "FindPendingByAmount", mock.Anything, mock.Anything, mock.Anything)
}

func TestSettlePayment_WholeAmountAllowedWhenConfigured(t *testing.T) {
	opts := DefaultOptions()
	opts.AllowWholeAmounts = true
	f := newFixture(opts)
	ctx := context.Background()

	p := unprocessedPayment(12, "500.00", time.Minute)
	f.payments.On("GetByID", ctx, int64(12)).Return(p, nil)
	f.requests.On("FindPendingByAmount", ctx, p.Amount, 10*time.Minute).Return([]*model.Request{}, nil)

	err := f.matcher.SettlePayment(ctx, 12)
	require.NoError(t, err)

	f.requests.AssertCalled(t, "FindPendingByAmount", ctx, p.Amount, 10*time.Minute)
}

func TestSettlePayment_WindowBoundaryExcludesRequest(t *testing.T) {
	f := newFixture(DefaultOptions())
	ctx := context.Background()

	p := unprocessedPayment(13, "77.07", time.Minute)
	// created 5m01s before the payment's bank-stated time
	outside := pendingRequest(30, "77.07", 0)
	outside.CreatedAt = p.ReceivedAt.Add(-(5*time.Minute + time.Second))

	f.payments.On("GetByID", ctx, int64(13)).Return(p, nil)
	f.requests.On("FindPendingByAmount", ctx, p.Amount, 10*time.Minute).Return([]*model.Request{outside}, nil)

	err := f.matcher.SettlePayment(ctx, 13)
	require.NoError(t, err)

	f.tx.AssertNotCalled(t, "WithinTransactionTimeout", mock.Anything, mock.Anything, mock.Anything)
}

func TestSettlePayment_FIFOTieBreak(t *testing.T) {
	f := newFixture(DefaultOptions())
	ctx := context.Background()

	p := unprocessedPayment(14, "31.31", time.Minute)
	older := pendingRequest(40, "31.31", 4*time.Minute)
	newer := pendingRequest(41, "31.31", 2*time.Minute)

	f.payments.On("GetByID", ctx, int64(14)).Return(p, nil)
	// repository returns created_at ASC
	f.requests.On("FindPendingByAmount", ctx, p.Amount, 10*time.Minute).Return([]*model.Request{older, newer}, nil)
	f.tx.On("WithinTransactionTimeout", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.payments.On("GetByIDLocked", mock.Anything, int64(14)).Return(p, nil)
	f.requests.On("GetByIDLocked", mock.Anything, int64(40)).Return(older, nil)
	f.credit.On("Credit", mock.Anything, mock.Anything).
		Return(&casino.CreditResult{Outcome: casino.OutcomeSuccess}, nil)
	f.payments.On("MarkProcessed", mock.Anything, int64(14), int64(40)).Return(nil)
	f.requests.On("MarkSettled", mock.Anything, int64(40), mock.Anything).Return(nil)
	f.notifier.On("SendDeposit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

	err := f.matcher.SettlePayment(ctx, 14)
	require.NoError(t, err)

	f.requests.AssertNotCalled(t, "GetByIDLocked", mock.Anything, int64(41))
}

func TestSettle_DuplicateAbsorbedAsSuccess(t *testing.T) {
	f := newFixture(DefaultOptions())
	ctx := context.Background()

	p := unprocessedPayment(15, "64.28", time.Minute)
	r := pendingRequest(50, "64.28", time.Minute)

	f.requests.On("GetByID", ctx, int64(50)).Return(r, nil)
	f.payments.On("FindUnprocessedByNotifiedAt", ctx, r.Amount, mock.Anything, mock.Anything).
		Return([]*model.Payment{p}, nil)
	f.tx.On("WithinTransactionTimeout", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.payments.On("GetByIDLocked", mock.Anything, int64(15)).Return(p, nil)
	f.requests.On("GetByIDLocked", mock.Anything, int64(50)).Return(r, nil)
	f.credit.On("Credit", mock.Anything, mock.Anything).
		Return(&casino.CreditResult{Outcome: casino.OutcomeDuplicate, Message: "already processed"}, nil)
	f.payments.On("MarkProcessed", mock.Anything, int64(15), int64(50)).Return(nil)
	f.requests.On("MarkSettled", mock.Anything, int64(50), mock.Anything).Return(nil)
	f.notifier.On("SendDeposit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

	err := f.matcher.RecheckRequest(ctx, 50)
	require.NoError(t, err)

	f.requests.AssertCalled(t, "MarkSettled", mock.Anything, int64(50), mock.Anything)
}

func TestSettle_AtMostOnce_RaceLostIsSilent(t *testing.T) {
	f := newFixture(DefaultOptions())
	ctx := context.Background()

	p := unprocessedPayment(16, "12.21", time.Minute)
	r := pendingRequest(60, "12.21", time.Minute)

	f.payments.On("GetByID", ctx, int64(16)).Return(p, nil)
	f.requests.On("FindPendingByAmount", ctx, p.Amount, 10*time.Minute).Return([]*model.Request{r}, nil)
	f.tx.On("WithinTransactionTimeout", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.payments.On("GetByIDLocked", mock.Anything, int64(16)).Return(p, nil)
	f.requests.On("GetByIDLocked", mock.Anything, int64(60)).Return(r, nil)
	f.credit.On("Credit", mock.Anything, mock.Anything).
		Return(&casino.CreditResult{Outcome: casino.OutcomeSuccess}, nil)
	// a concurrent settler already consumed the payment
	f.payments.On("MarkProcessed", mock.Anything, int64(16), int64(60)).Return(repository.ErrPaymentProcessed)

	err := f.matcher.SettlePayment(ctx, 16)
	require.NoError(t, err)

	f.requests.AssertNotCalled(t, "MarkSettled", mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "SendDeposit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSettle_LockedPaymentAlreadyProcessed(t *testing.T) {
	f := newFixture(DefaultOptions())
	ctx := context.Background()

	p := unprocessedPayment(17, "40.04", time.Minute)
	r := pendingRequest(70, "40.04", time.Minute)
	locked := *p
	locked.IsProcessed = true

	f.payments.On("GetByID", ctx, int64(17)).Return(p, nil)
	f.requests.On("FindPendingByAmount", ctx, p.Amount, 10*time.Minute).Return([]*model.Request{r}, nil)
	f.tx.On("WithinTransactionTimeout", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.payments.On("GetByIDLocked", mock.Anything, int64(17)).Return(&locked, nil)

	err := f.matcher.SettlePayment(ctx, 17)
	require.NoError(t, err)

	f.credit.AssertNotCalled(t, "Credit", mock.Anything, mock.Anything)
}

func TestSettle_StructuralFailureFlagsManualReview(t *testing.T) {
	f := newFixture(DefaultOptions())
	ctx := context.Background()

	p := unprocessedPayment(18, "90.09", time.Minute)
	r := pendingRequest(80, "90.09", time.Minute)

	f.requests.On("GetByID", ctx, int64(80)).Return(r, nil)
	f.payments.On("FindUnprocessedByNotifiedAt", ctx, r.Amount, mock.Anything, mock.Anything).
		Return([]*model.Payment{p}, nil)
	f.tx.On("WithinTransactionTimeout", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.payments.On("GetByIDLocked", mock.Anything, int64(18)).Return(p, nil)
	f.requests.On("GetByIDLocked", mock.Anything, int64(80)).Return(r, nil)
	f.credit.On("Credit", mock.Anything, mock.Anything).
		Return(&casino.CreditResult{Outcome: casino.OutcomeStructural, ReasonCode: "account_not_found"}, nil)
	f.requests.On("RecordFailure", mock.Anything, int64(80), mock.Anything, true).Return(nil)

	err := f.matcher.RecheckRequest(ctx, 80)
	require.Error(t, err)

	// structural failures never retry
	f.credit.AssertNumberOfCalls(t, "Credit", 1)
	f.payments.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
	f.requests.AssertCalled(t, "RecordFailure", mock.Anything, int64(80), mock.Anything, true)
}

func TestSettle_TransientFailureRetriesThenSucceeds(t *testing.T) {
	f := newFixture(DefaultOptions())
	ctx := context.Background()

	p := unprocessedPayment(19, "55.55", time.Minute)
	r := pendingRequest(90, "55.55", time.Minute)

	f.requests.On("GetByID", ctx, int64(90)).Return(r, nil)
	f.payments.On("FindUnprocessedByNotifiedAt", ctx, r.Amount, mock.Anything, mock.Anything).
		Return([]*model.Payment{p}, nil)
	f.tx.On("WithinTransactionTimeout", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.payments.On("GetByIDLocked", mock.Anything, int64(19)).Return(p, nil)
	f.requests.On("GetByIDLocked", mock.Anything, int64(90)).Return(r, nil)
	f.credit.On("Credit", mock.Anything, mock.Anything).
		Return(&casino.CreditResult{Outcome: casino.OutcomeTransient, Message: "timeout"}, nil).Twice()
	f.credit.On("Credit", mock.Anything, mock.Anything).
		Return(&casino.CreditResult{Outcome: casino.OutcomeSuccess}, nil).Once()
	f.payments.On("MarkProcessed", mock.Anything, int64(19), int64(90)).Return(nil)
	f.requests.On("MarkSettled", mock.Anything, int64(90), mock.Anything).Return(nil)
	f.notifier.On("SendDeposit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

	err := f.matcher.RecheckRequest(ctx, 90)
	require.NoError(t, err)

	f.credit.AssertNumberOfCalls(t, "Credit", 3)
}

func TestSettle_TransientFailureExhaustsAttempts(t *testing.T) {
	f := newFixture(DefaultOptions())
	ctx := context.Background()

	p := unprocessedPayment(21, "33.33", time.Minute)
	r := pendingRequest(91, "33.33", time.Minute)

	f.requests.On("GetByID", ctx, int64(91)).Return(r, nil)
	f.payments.On("FindUnprocessedByNotifiedAt", ctx, r.Amount, mock.Anything, mock.Anything).
		Return([]*model.Payment{p}, nil)
	f.tx.On("WithinTransactionTimeout", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.payments.On("GetByIDLocked", mock.Anything, int64(21)).Return(p, nil)
	f.requests.On("GetByIDLocked", mock.Anything, int64(91)).Return(r, nil)
	f.credit.On("Credit", mock.Anything, mock.Anything).
		Return(&casino.CreditResult{Outcome: casino.OutcomeTransient, Message: "timeout"}, nil)
	f.requests.On("RecordFailure", mock.Anything, int64(91), mock.Anything, false).Return(nil)

	err := f.matcher.RecheckRequest(ctx, 91)
	require.Error(t, err)

	f.credit.AssertNumberOfCalls(t, "Credit", 3)
	// transient exhaustion leaves the request rescannable
	f.requests.AssertCalled(t, "RecordFailure", mock.Anything, int64(91), mock.Anything, false)
}

func TestRecheckRequest_SecondaryIngestionSearch(t *testing.T) {
	f := newFixture(DefaultOptions())
	ctx := context.Background()

	r := pendingRequest(92, "27.72", time.Minute)
	p := unprocessedPayment(22, "27.72", 30*time.Second)
	p.ReceivedAt = nil

	f.requests.On("GetByID", ctx, int64(92)).Return(r, nil)
	f.payments.On("FindUnprocessedByNotifiedAt", ctx, r.Amount, mock.Anything, mock.Anything).
		Return([]*model.Payment{}, nil)
	f.payments.On("FindUnprocessedByIngestedAt", ctx, r.Amount, mock.Anything, mock.Anything).
		Return([]*model.Payment{p}, nil)
	f.tx.On("WithinTransactionTimeout", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.payments.On("GetByIDLocked", mock.Anything, int64(22)).Return(p, nil)
	f.requests.On("GetByIDLocked", mock.Anything, int64(92)).Return(r, nil)
	f.credit.On("Credit", mock.Anything, mock.Anything).
		Return(&casino.CreditResult{Outcome: casino.OutcomeSuccess}, nil)
	f.payments.On("MarkProcessed", mock.Anything, int64(22), int64(92)).Return(nil)
	f.requests.On("MarkSettled", mock.Anything, int64(92), mock.Anything).Return(nil)
	f.notifier.On("SendDeposit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

	err := f.matcher.RecheckRequest(ctx, 92)
	require.NoError(t, err)

	f.payments.AssertCalled(t, "FindUnprocessedByIngestedAt", ctx, r.Amount, mock.Anything, mock.Anything)
}

func TestRecheckRequest_IngestionSearchCoversPaymentAgeBound(t *testing.T) {
	f := newFixture(DefaultOptions())
	ctx := context.Background()

	// notified 5m01s before the request was created: outside the primary
	// window, but ingested 6m01s ago, well inside the payment age bound
	r := pendingRequest(93, "64.46", time.Minute)
	p := unprocessedPayment(23, "64.46", 6*time.Minute+time.Second)
	received := r.CreatedAt.Add(-(5*time.Minute + time.Second))
	p.ReceivedAt = &received

	f.requests.On("GetByID", ctx, int64(93)).Return(r, nil)
	f.payments.On("FindUnprocessedByNotifiedAt", ctx, r.Amount, mock.Anything, mock.Anything).
		Return([]*model.Payment{}, nil)
	f.payments.On("FindUnprocessedByIngestedAt", ctx, r.Amount,
		mock.MatchedBy(func(from time.Time) bool {
			// lower bound is the payment age bound, not the request window
			return !from.After(p.IngestedAt) &&
				time.Since(from) < 10*time.Minute+5*time.Second &&
				time.Since(from) > 10*time.Minute-5*time.Second
		}),
		mock.MatchedBy(func(to time.Time) bool {
			return time.Since(to) < 5*time.Second
		})).
		Return([]*model.Payment{p}, nil)
	f.tx.On("WithinTransactionTimeout", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.payments.On("GetByIDLocked", mock.Anything, int64(23)).Return(p, nil)
	f.requests.On("GetByIDLocked", mock.Anything, int64(93)).Return(r, nil)
	f.credit.On("Credit", mock.Anything, mock.Anything).
		Return(&casino.CreditResult{Outcome: casino.OutcomeSuccess}, nil)
	f.payments.On("MarkProcessed", mock.Anything, int64(23), int64(93)).Return(nil)
	f.requests.On("MarkSettled", mock.Anything, int64(93), mock.Anything).Return(nil)
	f.notifier.On("SendDeposit", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

	err := f.matcher.RecheckRequest(ctx, 93)
	require.NoError(t, err)

	f.payments.AssertExpectations(t)
	f.requests.AssertCalled(t, "MarkSettled", mock.Anything, int64(93), mock.Anything)
}

func TestRecheckRequest_SkipsIneligible(t *testing.T) {
	f := newFixture(DefaultOptions())
	ctx := context.Background()

	cases := []struct {
		name string
		mod  func(r *model.Request)
	}{
		{"already settled", func(r *model.Request) { r.Status = model.RequestStatusSettled }},
		{"withdraw", func(r *model.Request) { r.RequestType = model.RequestTypeWithdraw }},
		{"no receipt", func(r *model.Request) { r.HasReceipt = false }},
		{"manual review", func(r *model.Request) { now := time.Now(); r.ManualReviewAt = &now }},
		{"too old", func(r *model.Request) { r.CreatedAt = time.Now().UTC().Add(-11 * time.Minute) }},
		{"whole amount", func(r *model.Request) { r.Amount = amt("100.00") }},
	}

	for i, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			id := int64(200 + i)
			r := pendingRequest(id, "19.91", time.Minute)
			c.mod(r)
			f.requests.On("GetByID", ctx, id).Return(r, nil)

			err := f.matcher.RecheckRequest(ctx, id)
			assert.NoError(t, err)
		})
	}

	f.payments.AssertNotCalled(t, "FindUnprocessedByNotifiedAt", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
