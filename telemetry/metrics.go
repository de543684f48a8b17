// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	JoinsDetected      prometheus.Counter
	GreetingsComposed  prometheus.Counter
	GreetingsDeduped   prometheus.Counter
	SendsSucceeded     prometheus.Counter
	SendsFailed        prometheus.Counter
	WeatherFetchFailed prometheus.Counter
	MotdConsumed       prometheus.Counter

	// Histograms (seconds)
	ComposeDuration prometheus.Observer

	// Gauges
	TrackedMembersGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		JoinsDetected = promauto.NewCounter(prometheus.CounterOpts{Name: "greeter_joins_detected_total", Help: "Qualifying watched-channel joins detected"})
		GreetingsComposed = promauto.NewCounter(prometheus.CounterOpts{Name: "greeter_greetings_composed_total", Help: "Greetings composed and handed to the dispatcher"})
		GreetingsDeduped = promauto.NewCounter(prometheus.CounterOpts{Name: "greeter_greetings_deduped_total", Help: "Joins skipped by the once-per-day rule"})
		SendsSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "greeter_sends_succeeded_total", Help: "Scheduled message sends that succeeded"})
		SendsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "greeter_sends_failed_total", Help: "Scheduled message sends that failed"})
		WeatherFetchFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "greeter_weather_fetch_failed_total", Help: "Weather forecast fetches that failed"})
		MotdConsumed = promauto.NewCounter(prometheus.CounterOpts{Name: "greeter_motd_consumed_total", Help: "Message-of-the-day entries consumed"})
		ComposeDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "greeter_compose_duration_seconds", Help: "Greeting composition duration seconds", Buckets: prometheus.DefBuckets})
		TrackedMembersGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "greeter_tracked_members", Help: "Members with a recorded last-seen timestamp"})
	})
}

// SetTrackedMembers records the current number of members with presence records.
func SetTrackedMembers(n int) {
	if TrackedMembersGauge != nil {
		TrackedMembersGauge.Set(float64(n))
	}
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with a corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
