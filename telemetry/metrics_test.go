package telemetry

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestInitIsIdempotent(t *testing.T) {
	// A second Init must not re-register with the default registry.
	Init()
	Init()

	for name, c := range map[string]prometheus.Counter{
		"JoinsDetected":      JoinsDetected,
		"GreetingsComposed":  GreetingsComposed,
		"GreetingsDeduped":   GreetingsDeduped,
		"SendsSucceeded":     SendsSucceeded,
		"SendsFailed":        SendsFailed,
		"WeatherFetchFailed": WeatherFetchFailed,
		"MotdConsumed":       MotdConsumed,
	} {
		if c == nil {
			t.Errorf("%s counter not initialized", name)
		}
	}
	if ComposeDuration == nil {
		t.Error("ComposeDuration histogram not initialized")
	}
	if TrackedMembersGauge == nil {
		t.Error("TrackedMembersGauge not initialized")
	}
}

func TestSetTrackedMembers(t *testing.T) {
	Init()
	SetTrackedMembers(42)
	// No panic and the gauge accepts updates; value inspection goes through
	// the /metrics endpoint in the server tests.
	SetTrackedMembers(0)
}

func TestCorrelationRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Errorf("empty context returned correlation %q", got)
	}
	ctx = WithCorrelation(ctx, "corr-abc")
	if got := GetCorrelation(ctx); got != "corr-abc" {
		t.Errorf("GetCorrelation = %q, want corr-abc", got)
	}
}

func TestLoggerWithCorr(t *testing.T) {
	if LoggerWithCorr(context.Background()) == nil {
		t.Error("expected default logger for bare context")
	}
	if LoggerWithCorr(WithCorrelation(context.Background(), "x")) == nil {
		t.Error("expected logger for correlated context")
	}
}
