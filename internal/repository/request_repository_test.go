package repository

import (
	"context"
	"testing"
	"time"

	"github.com/paykg/deposit-gateway/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest(amount string) *model.Request {
	return &model.Request{
		UserID:      1,
		Platform:    "xbet",
		AccountID:   "acc-1",
		Amount:      decimal.RequireFromString(amount),
		RequestType: model.RequestTypeDeposit,
		Status:      model.RequestStatusPending,
		HasReceipt:  true,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestRequestRepository_Create(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewRequestRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, testRequest("250.00"))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, model.RequestStatusPending, created.Status)
	assert.True(t, created.Amount.Equal(decimal.RequireFromString("250.00")))
}

func TestRequestRepository_FindPendingByAmount(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewRequestRepository(db)
	ctx := context.Background()

	amount := decimal.RequireFromString("300.00")

	eligible := testRequest("300.00")
	_, err := repo.Create(ctx, eligible)
	require.NoError(t, err)

	noReceipt := testRequest("300.00")
	noReceipt.HasReceipt = false
	_, err = repo.Create(ctx, noReceipt)
	require.NoError(t, err)

	withdraw := testRequest("300.00")
	withdraw.RequestType = model.RequestTypeWithdraw
	_, err = repo.Create(ctx, withdraw)
	require.NoError(t, err)

	tooOld := testRequest("300.00")
	tooOld.CreatedAt = time.Now().UTC().Add(-30 * time.Minute)
	_, err = repo.Create(ctx, tooOld)
	require.NoError(t, err)

	otherAmount := testRequest("300.50")
	_, err = repo.Create(ctx, otherAmount)
	require.NoError(t, err)

	flagged := testRequest("300.00")
	created, err := repo.Create(ctx, flagged)
	require.NoError(t, err)
	require.NoError(t, repo.RecordFailure(ctx, created.ID, "account_not_found", true))

	found, err := repo.FindPendingByAmount(ctx, amount, 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, found[0].HasReceipt)
	assert.Equal(t, model.RequestTypeDeposit, found[0].RequestType)
}

func TestRequestRepository_FindPendingByAmount_FIFO(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewRequestRepository(db)
	ctx := context.Background()

	newer := testRequest("88.00")
	newer.CreatedAt = time.Now().UTC().Add(-1 * time.Minute)
	newerCreated, err := repo.Create(ctx, newer)
	require.NoError(t, err)

	older := testRequest("88.00")
	older.CreatedAt = time.Now().UTC().Add(-4 * time.Minute)
	olderCreated, err := repo.Create(ctx, older)
	require.NoError(t, err)

	found, err := repo.FindPendingByAmount(ctx, decimal.RequireFromString("88.00"), 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, olderCreated.ID, found[0].ID)
	assert.Equal(t, newerCreated.ID, found[1].ID)
}

func TestRequestRepository_MarkSettled(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewRequestRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, testRequest("120.00"))
	require.NoError(t, err)

	err = repo.MarkSettled(ctx, created.ID, "credited via xbet")
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestStatusSettled, got.Status)
	assert.Equal(t, model.ProcessedByAuto, got.ProcessedBy)
	require.NotNil(t, got.ProcessedAt)
	assert.Equal(t, "credited via xbet", got.SettleNote)

	t.Run("settling twice loses the race", func(t *testing.T) {
		err := repo.MarkSettled(ctx, created.ID, "again")
		assert.ErrorIs(t, err, ErrRequestSettled)
	})
}

func TestRequestRepository_RecordFailure(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewRequestRepository(db)
	ctx := context.Background()

	created, err := repo.Create(ctx, testRequest("66.00"))
	require.NoError(t, err)

	t.Run("transient note keeps the request rescannable", func(t *testing.T) {
		require.NoError(t, repo.RecordFailure(ctx, created.ID, "platform timeout", false))

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "platform timeout", got.SettleNote)
		assert.Nil(t, got.ManualReviewAt)
	})

	t.Run("structural failure flags manual review", func(t *testing.T) {
		require.NoError(t, repo.RecordFailure(ctx, created.ID, "account_not_found", true))

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.NotNil(t, got.ManualReviewAt)

		found, err := repo.FindPendingForRescan(ctx, 10*time.Minute, 100)
		require.NoError(t, err)
		for _, r := range found {
			assert.NotEqual(t, created.ID, r.ID)
		}
	})
}

func TestRequestRepository_List(t *testing.T) {
	db := setupTestDB(t).DB
	repo := NewRequestRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		req := testRequest("10.00")
		req.UserID = int64(i + 1)
		_, err := repo.Create(ctx, req)
		require.NoError(t, err)
	}

	userID := int64(2)
	requests, total, err := repo.List(ctx, model.RequestFilter{UserID: &userID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, requests, 1)

	requests, total, err = repo.List(ctx, model.RequestFilter{
		Statuses: []model.RequestStatus{model.RequestStatusPending},
		Limit:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, requests, 2)
}
