package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const namespace = "txhook"

var (
	Ingested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingested_total",
		Help:      "Webhook notifications handled by the ingestion service, by result.",
	}, []string{"result"})

	Finalized = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "finalization_tasks_total",
		Help:      "Finalization tasks handled by the worker, by outcome.",
	}, []string{"outcome"})

	TaskRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_retries_total",
		Help:      "Finalization tasks re-scheduled after a failed attempt.",
	})

	DeadLettered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "task_dead_lettered_total",
		Help:      "Finalization tasks moved to the dead-letter queue.",
	})

	Reenqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweep_reenqueued_total",
		Help:      "PROCESSING transactions re-enqueued by the reconciliation sweep.",
	})

	FinalizeLag = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "finalize_lag_seconds",
		Help:      "Time between creation and finalization of a transaction.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(Ingested, Finalized, TaskRetries, DeadLettered, Reenqueued, FinalizeLag)
}

type logFunc func(v ...interface{})

func (l logFunc) Println(v ...interface{}) {
	l(v...)
}

// Handler serves the default registry in the Prometheus text format.
func Handler(log *logrus.Logger) http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorLog:      logFunc(log.Warn),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// NewMux returns a mux exposing /metrics, for binaries without an HTTP API.
func NewMux(log *logrus.Logger) *http.ServeMux {
	s := http.NewServeMux()
	s.Handle("/metrics", Handler(log))
	return s
}
