package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the engine's Prometheus instruments. A nil *Metrics is a no-op.
type Metrics struct {
	pointsAwarded  *prometheus.CounterVec
	ledgerFailures prometheus.Counter
	outboxReplayed prometheus.Counter
	roleMutations  *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
	openSessions   *prometheus.GaugeVec
}

var (
	once     sync.Once
	registry *Metrics
)

// Default returns the process-wide metrics, registered on first use
func Default() *Metrics {
	once.Do(func() {
		registry = &Metrics{
			pointsAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "playpoints_points_awarded_total",
				Help: "Points credited by the scoring tick, by guild.",
			}, []string{"guild"}),
			ledgerFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "playpoints_ledger_write_failures_total",
				Help: "Ledger appends that failed.",
			}),
			outboxReplayed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "playpoints_outbox_replayed_total",
				Help: "Ledger entries replayed from the outbox.",
			}),
			roleMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "playpoints_role_mutations_total",
				Help: "Role add/remove calls by synchronizer, operation and result.",
			}, []string{"sync", "op", "result"}),
			taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "playpoints_task_duration_seconds",
				Help:    "Duration of periodic task runs.",
				Buckets: prometheus.DefBuckets,
			}, []string{"task"}),
			openSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "playpoints_open_sessions",
				Help: "Open voice and activity sessions held in memory.",
			}, []string{"kind"}),
		}
		prometheus.MustRegister(
			registry.pointsAwarded,
			registry.ledgerFailures,
			registry.outboxReplayed,
			registry.roleMutations,
			registry.taskDuration,
			registry.openSessions,
		)
	})
	return registry
}

// ObservePoints records points awarded in a guild
func (m *Metrics) ObservePoints(guildID string, points int) {
	if m == nil {
		return
	}
	m.pointsAwarded.WithLabelValues(guildID).Add(float64(points))
}

// ObserveLedgerFailure counts a ledger write that was queued for retry
func (m *Metrics) ObserveLedgerFailure() {
	if m == nil {
		return
	}
	m.ledgerFailures.Inc()
}

// ObserveOutboxReplayed counts entries replayed from the outbox
func (m *Metrics) ObserveOutboxReplayed(n int) {
	if m == nil {
		return
	}
	m.outboxReplayed.Add(float64(n))
}

// ObserveRoleMutation records a role add or remove and its outcome
func (m *Metrics) ObserveRoleMutation(synchronizer, op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.roleMutations.WithLabelValues(synchronizer, op, result).Inc()
}

// ObserveTask records how long a scheduled task took
func (m *Metrics) ObserveTask(task string, d time.Duration) {
	if m == nil {
		return
	}
	m.taskDuration.WithLabelValues(task).Observe(d.Seconds())
}

// SetOpenSessions sets the number of open sessions of a kind
func (m *Metrics) SetOpenSessions(kind string, n int) {
	if m == nil {
		return
	}
	m.openSessions.WithLabelValues(kind).Set(float64(n))
}

// Serve exposes /metrics on addr until ctx is cancelled
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
