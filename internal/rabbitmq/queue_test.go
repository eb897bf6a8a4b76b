package rabbitmq

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/payalraghuvanshi/transaction-webhook-service/internal/metrics"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecorder struct {
	acked    int
	nacked   int
	requeue  bool
	rejected int
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.acked++
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	a.rejected++
	a.requeue = requeue
	return nil
}

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

func newTestQueue(publishErr error) (*Queue, *[]published) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	var sent []published
	q := &Queue{
		cfg: Config{
			ExchangeName: "transactions",
			QueueName:    "transactions.finalize",
			RoutingKey:   "transaction.finalize",
		},
		log:    log,
		policy: DefaultRetryPolicy,
	}
	q.publish = func(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
		if publishErr != nil {
			return publishErr
		}
		sent = append(sent, published{exchange: exchange, key: key, msg: msg})
		return nil
	}
	return q, &sent
}

func delivery(ack amqp.Acknowledger, body string, headers amqp.Table) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Body:         []byte(body),
		Headers:      headers,
	}
}

func TestEnqueueDelayedPublishesToDelayedExchange(t *testing.T) {
	q, sent := newTestQueue(nil)

	err := q.EnqueueDelayed(context.Background(), models.FinalizeTask{TransactionID: "TX1"}, 30*time.Second)
	require.NoError(t, err)

	require.Len(t, *sent, 1)
	p := (*sent)[0]
	assert.Equal(t, "transactions.delayed", p.exchange)
	assert.Equal(t, "transaction.finalize", p.key)
	assert.JSONEq(t, `{"transactionId":"TX1"}`, string(p.msg.Body))
	assert.Equal(t, int32(30000), p.msg.Headers[headerDelay])
	assert.Equal(t, amqp.Persistent, p.msg.DeliveryMode)
}

func TestEnqueueDelayedPropagatesPublishError(t *testing.T) {
	q, _ := newTestQueue(errors.New("connection closed"))

	err := q.EnqueueDelayed(context.Background(), models.FinalizeTask{TransactionID: "TX1"}, time.Second)
	assert.Error(t, err)
}

func TestHandleDeliveryAcksOnSuccess(t *testing.T) {
	q, sent := newTestQueue(nil)
	ack := &ackRecorder{}

	var got models.FinalizeTask
	q.handleDelivery(context.Background(), delivery(ack, `{"transactionId":"TX1"}`, nil), func(ctx context.Context, task models.FinalizeTask) error {
		got = task
		return nil
	})

	assert.Equal(t, "TX1", got.TransactionID)
	assert.Equal(t, 1, ack.acked)
	assert.Empty(t, *sent)
}

func TestHandleDeliveryRejectsUnreadableBody(t *testing.T) {
	q, sent := newTestQueue(nil)
	ack := &ackRecorder{}

	called := false
	q.handleDelivery(context.Background(), delivery(ack, `not json`, nil), func(ctx context.Context, task models.FinalizeTask) error {
		called = true
		return nil
	})

	assert.False(t, called)
	assert.Equal(t, 1, ack.rejected)
	assert.False(t, ack.requeue)
	assert.Empty(t, *sent)
}

func TestHandleDeliveryRetriesWithBackoff(t *testing.T) {
	q, sent := newTestQueue(nil)
	ack := &ackRecorder{}

	q.handleDelivery(context.Background(), delivery(ack, `{"transactionId":"TX1"}`, amqp.Table{headerRetryCount: int32(1)}), func(ctx context.Context, task models.FinalizeTask) error {
		return errors.New("store unavailable")
	})

	assert.Equal(t, 1, ack.acked)
	require.Len(t, *sent, 1)
	p := (*sent)[0]
	assert.Equal(t, "transactions.delayed", p.exchange)
	assert.Equal(t, int32(2), p.msg.Headers[headerRetryCount])
	assert.Equal(t, "store unavailable", p.msg.Headers[headerLastError])
	delay, ok := p.msg.Headers[headerDelay].(int32)
	require.True(t, ok)
	assert.Greater(t, delay, int32(0))
	assert.LessOrEqual(t, delay, int32(DefaultRetryPolicy.MaxBackoff.Milliseconds()))
}

func TestHandleDeliveryDeadLettersAfterMaxRetries(t *testing.T) {
	q, sent := newTestQueue(nil)
	ack := &ackRecorder{}

	headers := amqp.Table{headerRetryCount: int32(DefaultRetryPolicy.MaxRetries)}
	q.handleDelivery(context.Background(), delivery(ack, `{"transactionId":"TX1"}`, headers), func(ctx context.Context, task models.FinalizeTask) error {
		return errors.New("store unavailable")
	})

	assert.Equal(t, 1, ack.acked)
	require.Len(t, *sent, 1)
	assert.Equal(t, "transactions.dead", (*sent)[0].exchange)
	assert.Equal(t, "store unavailable", (*sent)[0].msg.Headers[headerLastError])
}

func TestHandleDeliveryDefersEarlyTaskWithoutSpendingRetry(t *testing.T) {
	q, sent := newTestQueue(nil)
	ack := &ackRecorder{}

	q.handleDelivery(context.Background(), delivery(ack, `{"transactionId":"TX1"}`, amqp.Table{headerRetryCount: int32(2)}), func(ctx context.Context, task models.FinalizeTask) error {
		return &models.RetryAfterError{After: 1500 * time.Millisecond}
	})

	assert.Equal(t, 1, ack.acked)
	require.Len(t, *sent, 1)
	p := (*sent)[0]
	assert.Equal(t, "transactions.delayed", p.exchange)
	assert.Equal(t, int32(1500), p.msg.Headers[headerDelay])
	assert.Equal(t, int32(2), p.msg.Headers[headerRetryCount])
}

func TestHandleDeliveryRequeuesWhenRepublishFails(t *testing.T) {
	q, _ := newTestQueue(errors.New("channel closed"))
	ack := &ackRecorder{}

	q.handleDelivery(context.Background(), delivery(ack, `{"transactionId":"TX1"}`, nil), func(ctx context.Context, task models.FinalizeTask) error {
		return errors.New("store unavailable")
	})

	assert.Equal(t, 0, ack.acked)
	assert.Equal(t, 1, ack.nacked)
	assert.True(t, ack.requeue)
}

func TestHandleDeliveryBoundsRepublish(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp.Table
		err     error
	}{
		{"retry", nil, errors.New("store unavailable")},
		{"dead letter", amqp.Table{headerRetryCount: int32(DefaultRetryPolicy.MaxRetries)}, errors.New("store unavailable")},
		{"early", nil, &models.RetryAfterError{After: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := newTestQueue(nil)
			var deadline time.Time
			var hasDeadline bool
			q.publish = func(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
				deadline, hasDeadline = ctx.Deadline()
				return nil
			}

			start := time.Now()
			q.handleDelivery(context.Background(), delivery(&ackRecorder{}, `{"transactionId":"TX1"}`, tt.headers), func(ctx context.Context, task models.FinalizeTask) error {
				return tt.err
			})

			require.True(t, hasDeadline)
			assert.WithinDuration(t, start.Add(republishTimeout), deadline, time.Second)
		})
	}
}

func TestHandleDeliveryCountsOnlyCompletedRepublishes(t *testing.T) {
	failing := func(ctx context.Context, task models.FinalizeTask) error {
		return errors.New("store unavailable")
	}
	exhausted := amqp.Table{headerRetryCount: int32(DefaultRetryPolicy.MaxRetries)}

	retries := testutil.ToFloat64(metrics.TaskRetries)
	dead := testutil.ToFloat64(metrics.DeadLettered)

	q, _ := newTestQueue(errors.New("channel closed"))
	q.handleDelivery(context.Background(), delivery(&ackRecorder{}, `{"transactionId":"TX1"}`, nil), failing)
	q.handleDelivery(context.Background(), delivery(&ackRecorder{}, `{"transactionId":"TX1"}`, exhausted), failing)

	assert.Equal(t, retries, testutil.ToFloat64(metrics.TaskRetries))
	assert.Equal(t, dead, testutil.ToFloat64(metrics.DeadLettered))

	q, _ = newTestQueue(nil)
	q.handleDelivery(context.Background(), delivery(&ackRecorder{}, `{"transactionId":"TX1"}`, nil), failing)
	q.handleDelivery(context.Background(), delivery(&ackRecorder{}, `{"transactionId":"TX1"}`, exhausted), failing)

	assert.Equal(t, retries+1, testutil.ToFloat64(metrics.TaskRetries))
	assert.Equal(t, dead+1, testutil.ToFloat64(metrics.DeadLettered))
}
