package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/metrics"
	"github.com/payalraghuvanshi/transaction-webhook-service/internal/models"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type publishFunc func(ctx context.Context, exchange, key string, msg amqp.Publishing) error

// Queue is a durable delayed-task queue backed by RabbitMQ and the delayed-message exchange plugin.
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
	log     *logrus.Logger
	policy  RetryPolicy
	closed  chan *amqp.Error

	mu      sync.Mutex
	publish publishFunc
}

func NewQueue(cfg Config, log *logrus.Logger) (*Queue, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to open channel")
	}

	q := &Queue{
		conn:    conn,
		channel: ch,
		cfg:     cfg,
		log:     log,
		policy:  DefaultRetryPolicy,
		closed:  conn.NotifyClose(make(chan *amqp.Error, 1)),
	}
	q.publish = q.publishConfirmed

	if err := q.setup(); err != nil {
		q.Close()
		return nil, err
	}

	return q, nil
}

func (q *Queue) setup() error {
	// Publisher confirms: a publish returns only once the broker has taken responsibility for the message.
	if err := q.channel.Confirm(false); err != nil {
		return errors.Wrap(err, "failed to enable publisher confirms")
	}

	err := q.channel.ExchangeDeclare(
		q.cfg.ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return errors.Wrap(err, "failed to declare exchange")
	}

	err = q.channel.ExchangeDeclare(
		q.cfg.delayedExchange(),
		"x-delayed-message",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		amqp.Table{
			"x-delayed-type": "direct",
		},
	)
	if err != nil {
		return errors.Wrap(err, "failed to declare delayed exchange")
	}

	err = q.channel.ExchangeDeclare(
		q.cfg.deadExchange(),
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return errors.Wrap(err, "failed to declare dead-letter exchange")
	}

	deadQueue, err := q.channel.QueueDeclare(
		q.cfg.deadQueue(),
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return errors.Wrap(err, "failed to declare dead-letter queue")
	}

	err = q.channel.QueueBind(deadQueue.Name, q.cfg.RoutingKey, q.cfg.deadExchange(), false, nil)
	if err != nil {
		return errors.Wrap(err, "failed to bind dead-letter queue")
	}

	// Rejected deliveries (unreadable bodies) are routed to the dead-letter exchange by the broker.
	mainQueue, err := q.channel.QueueDeclare(
		q.cfg.QueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-dead-letter-exchange":    q.cfg.deadExchange(),
			"x-dead-letter-routing-key": q.cfg.RoutingKey,
		},
	)
	if err != nil {
		return errors.Wrap(err, "failed to declare queue")
	}

	err = q.channel.QueueBind(mainQueue.Name, q.cfg.RoutingKey, q.cfg.ExchangeName, false, nil)
	if err != nil {
		return errors.Wrap(err, "failed to bind queue to exchange")
	}

	err = q.channel.QueueBind(mainQueue.Name, q.cfg.RoutingKey, q.cfg.delayedExchange(), false, nil)
	if err != nil {
		return errors.Wrap(err, "failed to bind queue to delayed exchange")
	}

	return nil
}

func (q *Queue) Close() {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		q.conn.Close()
	}
}

// Closed is notified when the broker connection goes away.
func (q *Queue) Closed() <-chan *amqp.Error {
	return q.closed
}

func (q *Queue) publishConfirmed(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	q.mu.Lock()
	confirm, err := q.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		exchange,
		key,
		false, // mandatory
		false, // immediate
		msg,
	)
	q.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, "failed to publish message")
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to wait for publish confirmation")
	}
	if !acked {
		return errors.New("broker rejected message")
	}

	return nil
}

func newPublishing(body []byte, headers amqp.Table) amqp.Publishing {
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
		Headers:      headers,
		Timestamp:    time.Now(),
	}
}

// EnqueueDelayed publishes task so that it is delivered no earlier than delay from now.
// It returns once the broker has confirmed the message or ctx is done.
func (q *Queue) EnqueueDelayed(ctx context.Context, task models.FinalizeTask, delay time.Duration) error {
	body, err := json.Marshal(task)
	if err != nil {
		return errors.Wrap(err, "failed to marshal task")
	}

	return q.publish(ctx, q.cfg.delayedExchange(), q.cfg.RoutingKey, newPublishing(body, amqp.Table{
		headerDelay: delayMillis(delay),
	}))
}

// Subscribe starts consuming tasks with up to cfg.Concurrency handlers in flight. A nil handler error
// acknowledges the delivery; any other error is retried and eventually dead-lettered.
// The returned cancel stops consumption and waits for in-flight handlers.
func (q *Queue) Subscribe(ctx context.Context, handler models.TaskHandler) (func(), error) {
	concurrency := q.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	if err := q.channel.Qos(concurrency, 0, false); err != nil {
		return nil, errors.Wrap(err, "failed to set prefetch")
	}

	tag := fmt.Sprintf("finalizer-%s", uuid.New().String())
	deliveries, err := q.channel.Consume(
		q.cfg.QueueName, // queue
		tag,             // consumer
		false,           // auto-ack
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start consuming")
	}

	ctx, cancelCtx := context.WithCancel(ctx)
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case delivery, ok := <-deliveries:
					if !ok {
						return
					}
					q.handleDelivery(ctx, delivery, handler)
				}
			}
		}()
	}

	q.log.WithFields(logrus.Fields{
		"queue":       q.cfg.QueueName,
		"consumer":    tag,
		"concurrency": concurrency,
	}).Info("Started consuming finalization tasks")

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			if err := q.channel.Cancel(tag, false); err != nil {
				q.log.Warnf("Failed to cancel consumer %s: %v", tag, err)
			}
			cancelCtx()
			wg.Wait()
		})
	}

	return cancel, nil
}

func (q *Queue) handleDelivery(ctx context.Context, delivery amqp.Delivery, handler models.TaskHandler) {
	var task models.FinalizeTask
	if err := json.Unmarshal(delivery.Body, &task); err != nil || task.TransactionID == "" {
		q.log.WithFields(logrus.Fields{
			"delivery_tag": delivery.DeliveryTag,
			"body":         string(delivery.Body),
		}).Error("Unreadable finalization task, rejecting to dead-letter queue")
		metrics.DeadLettered.Inc()
		if err := delivery.Reject(false); err != nil {
			q.log.Errorf("Failed to reject delivery: %v", err)
		}
		return
	}

	log := q.log.WithField("transaction_id", task.TransactionID)

	err := handler(ctx, task)
	if err == nil {
		if err := delivery.Ack(false); err != nil {
			log.Errorf("Failed to ack delivery: %v", err)
		}
		return
	}

	attempt := retryCount(delivery.Headers)

	pubCtx, cancel := context.WithTimeout(ctx, republishTimeout)
	defer cancel()

	var retryAfter *models.RetryAfterError
	switch {
	case errors.As(err, &retryAfter):
		log.WithField("after", retryAfter.After.String()).Info("Task delivered early, re-scheduling")
		err = q.publish(pubCtx, q.cfg.delayedExchange(), q.cfg.RoutingKey, newPublishing(delivery.Body, amqp.Table{
			headerDelay:      delayMillis(retryAfter.After),
			headerRetryCount: int32(attempt),
		}))

	case attempt < q.policy.MaxRetries:
		delay := q.policy.Backoff(attempt)
		log.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"delay":   delay.String(),
		}).Warnf("Finalization failed, scheduling retry: %v", err)
		err = q.publish(pubCtx, q.cfg.delayedExchange(), q.cfg.RoutingKey, newPublishing(delivery.Body, amqp.Table{
			headerDelay:      delayMillis(delay),
			headerRetryCount: int32(attempt + 1),
			headerLastError:  err.Error(),
		}))
		if err == nil {
			metrics.TaskRetries.Inc()
		}

	default:
		log.WithField("attempts", attempt+1).Errorf("Finalization failed, moving task to dead-letter queue: %v", err)
		err = q.publish(pubCtx, q.cfg.deadExchange(), q.cfg.RoutingKey, newPublishing(delivery.Body, amqp.Table{
			headerRetryCount: int32(attempt),
			headerLastError:  err.Error(),
		}))
		if err == nil {
			metrics.DeadLettered.Inc()
		}
	}

	if err != nil {
		// The task could not be moved; leave it with the broker for redelivery.
		log.Errorf("Failed to re-publish task: %v", err)
		if err := delivery.Nack(false, true); err != nil {
			log.Errorf("Failed to nack delivery: %v", err)
		}
		return
	}

	if err := delivery.Ack(false); err != nil {
		log.Errorf("Failed to ack delivery: %v", err)
	}
}

// DeadLetters returns the number of tasks waiting in the dead-letter queue.
func (q *Queue) DeadLetters() (int, error) {
	dq, err := q.channel.QueueDeclarePassive(q.cfg.deadQueue(), true, false, false, false, nil)
	if err != nil {
		return 0, errors.Wrap(err, "failed to inspect dead-letter queue")
	}
	return dq.Messages, nil
}

// Redrive moves up to limit dead-lettered tasks back to the main queue for immediate delivery
// with a fresh retry budget. A limit of zero drains the dead-letter queue.
func (q *Queue) Redrive(ctx context.Context, limit int) (int, error) {
	moved := 0
	for limit <= 0 || moved < limit {
		q.mu.Lock()
		delivery, ok, err := q.channel.Get(q.cfg.deadQueue(), false)
		q.mu.Unlock()
		if err != nil {
			return moved, errors.Wrap(err, "failed to get dead-lettered task")
		}
		if !ok {
			break
		}

		if err := q.publish(ctx, q.cfg.ExchangeName, q.cfg.RoutingKey, newPublishing(delivery.Body, amqp.Table{})); err != nil {
			_ = delivery.Nack(false, true)
			return moved, err
		}
		if err := delivery.Ack(false); err != nil {
			return moved, errors.Wrap(err, "failed to ack dead-lettered task")
		}
		moved++
	}

	return moved, nil
}
