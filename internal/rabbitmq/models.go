package rabbitmq

import "time"

// republishTimeout bounds moving a failed delivery to the delayed or dead exchange.
const republishTimeout = 5 * time.Second

const (
	headerDelay      = "x-delay"
	headerRetryCount = "x-retry-count"
	headerLastError  = "x-last-error"

	delayedSuffix = ".delayed"
	deadSuffix    = ".dead"
)

// Config names the broker topology used for finalization tasks.
type Config struct {
	URL          string
	ExchangeName string
	QueueName    string
	RoutingKey   string
	// Concurrency bounds the deliveries handled at once by Subscribe.
	Concurrency int
}

func (c Config) delayedExchange() string { return c.ExchangeName + delayedSuffix }
func (c Config) deadExchange() string    { return c.ExchangeName + deadSuffix }
func (c Config) deadQueue() string       { return c.QueueName + deadSuffix }
