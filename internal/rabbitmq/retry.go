package rabbitmq

import (
	"math"
	"math/rand"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RetryPolicy controls how failed deliveries are re-scheduled before being dead-lettered.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	JitterFactor   float64
}

var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:     3,
	InitialBackoff: 5 * time.Second,
	MaxBackoff:     30 * time.Second,
	BackoffFactor:  2.0,
	JitterFactor:   0.2,
}

// Backoff returns the delay before retry number attempt (0-based), jittered and capped at MaxBackoff.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff) * math.Pow(p.BackoffFactor, float64(attempt))

	jitter := (rand.Float64()*2 - 1) * p.JitterFactor * backoff
	backoff = backoff + jitter

	if backoff > float64(p.MaxBackoff) {
		backoff = float64(p.MaxBackoff)
	}
	if backoff < 0 {
		backoff = 0
	}

	return time.Duration(backoff)
}

func retryCount(headers amqp.Table) int {
	switch v := headers[headerRetryCount].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	default:
		return 0
	}
}

// delayMillis converts a delay to the x-delay header value, which the broker reads as a signed 32-bit integer.
func delayMillis(d time.Duration) int32 {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(ms)
}
