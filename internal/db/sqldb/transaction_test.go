package sqldb

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/payalraghuvanshi/transaction-webhook-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := NewDatabase(Config{
		Driver: DriverSQLite,
		Path:   fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate())
	return db
}

var base = time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC)

func newTransaction(id string, createdAt time.Time) *models.Transaction {
	return &models.Transaction{
		TransactionID:      id,
		SourceAccount:      "A",
		DestinationAccount: "B",
		Amount:             decimal.RequireFromString("100.50"),
		Currency:           "USD",
		Status:             models.StatusProcessing,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
}

func TestCreateAndGetTransaction(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.CreateTransaction(ctx, newTransaction("TX1", base)))

	got, err := db.GetTransaction(ctx, "TX1")
	require.NoError(t, err)
	assert.Equal(t, "TX1", got.TransactionID)
	assert.Equal(t, "A", got.SourceAccount)
	assert.Equal(t, "B", got.DestinationAccount)
	assert.True(t, decimal.RequireFromString("100.50").Equal(got.Amount), "amount %s", got.Amount)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, models.StatusProcessing, got.Status)
	assert.True(t, base.Equal(got.CreatedAt))
	assert.Nil(t, got.ProcessedAt)
	assert.Nil(t, got.LastEnqueuedAt)
}

func TestGetTransactionNotFound(t *testing.T) {
	db := newTestDatabase(t)

	_, err := db.GetTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateTransactionDuplicate(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.CreateTransaction(ctx, newTransaction("TX1", base)))

	second := newTransaction("TX1", base.Add(time.Minute))
	second.SourceAccount = "other"
	err := db.CreateTransaction(ctx, second)
	assert.ErrorIs(t, err, models.ErrDuplicate)

	got, err := db.GetTransaction(ctx, "TX1")
	require.NoError(t, err)
	assert.Equal(t, "A", got.SourceAccount, "original row must be untouched")
}

func TestUpdateTransactionStatusIsConditional(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	require.NoError(t, db.CreateTransaction(ctx, newTransaction("TX1", base)))

	at := base.Add(30 * time.Second)
	changed, err := db.UpdateTransactionStatus(ctx, "TX1", models.StatusProcessing, models.StatusProcessed, at)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = db.UpdateTransactionStatus(ctx, "TX1", models.StatusProcessing, models.StatusProcessed, at.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, changed, "second transition must not apply")

	got, err := db.GetTransaction(ctx, "TX1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, got.Status)
	require.NotNil(t, got.ProcessedAt)
	assert.True(t, at.Equal(*got.ProcessedAt))
	assert.True(t, at.Equal(got.UpdatedAt))
	assert.True(t, base.Equal(got.CreatedAt), "created_at is immutable")
}

func TestUpdateTransactionStatusMissingRow(t *testing.T) {
	db := newTestDatabase(t)

	changed, err := db.UpdateTransactionStatus(context.Background(), "nope", models.StatusProcessing, models.StatusProcessed, base)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestListTransactionsFiltersAndOrders(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, db.CreateTransaction(ctx, newTransaction(fmt.Sprintf("TX%d", i), base.Add(time.Duration(i)*time.Minute))))
	}
	_, err := db.UpdateTransactionStatus(ctx, "TX2", models.StatusProcessing, models.StatusProcessed, base.Add(time.Hour))
	require.NoError(t, err)

	all, err := db.ListTransactions(ctx, models.Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"TX3", "TX2", "TX1", "TX0"}, ids(all))

	processing, err := db.ListTransactions(ctx, models.Filter{
		Status:       models.StatusProcessing,
		CreatedAfter: base.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"TX3", "TX1"}, ids(processing))

	window, err := db.ListTransactions(ctx, models.Filter{
		CreatedAfter:  base.Add(time.Minute),
		CreatedBefore: base.Add(2 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"TX2", "TX1"}, ids(window), "bounds are inclusive")

	limited, err := db.ListTransactions(ctx, models.Filter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"TX3", "TX2"}, ids(limited))
}

func TestListOrphanedTransactions(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	// never confirmed, old enough
	require.NoError(t, db.CreateTransaction(ctx, newTransaction("orphan", base)))
	require.NoError(t, db.CreateTransaction(ctx, newTransaction("orphan2", base.Add(time.Minute))))
	// never confirmed, too young
	require.NoError(t, db.CreateTransaction(ctx, newTransaction("young", base.Add(10*time.Minute))))
	// confirmed long ago and still processing: the task is with the broker
	require.NoError(t, db.CreateTransaction(ctx, newTransaction("queued", base)))
	require.NoError(t, db.MarkTransactionEnqueued(ctx, "queued", base))
	// already finalized
	require.NoError(t, db.CreateTransaction(ctx, newTransaction("done", base)))
	_, err := db.UpdateTransactionStatus(ctx, "done", models.StatusProcessing, models.StatusProcessed, base.Add(time.Minute))
	require.NoError(t, err)

	orphaned, err := db.ListOrphanedTransactions(ctx, base.Add(5*time.Minute), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan", "orphan2"}, ids(orphaned))

	limited, err := db.ListOrphanedTransactions(ctx, base.Add(5*time.Minute), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan"}, ids(limited))
}

func TestMarkTransactionEnqueuedKeepsUpdatedAt(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	require.NoError(t, db.CreateTransaction(ctx, newTransaction("TX1", base)))

	require.NoError(t, db.MarkTransactionEnqueued(ctx, "TX1", base.Add(time.Second)))

	got, err := db.GetTransaction(ctx, "TX1")
	require.NoError(t, err)
	require.NotNil(t, got.LastEnqueuedAt)
	assert.True(t, base.Add(time.Second).Equal(*got.LastEnqueuedAt))
	assert.True(t, base.Equal(got.UpdatedAt))
}

func TestNewDatabaseUnsupportedDriver(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	_, err := NewDatabase(Config{Driver: "oracle"}, log)
	assert.Error(t, err)
}

func ids(txs []models.Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.TransactionID)
	}
	return out
}
