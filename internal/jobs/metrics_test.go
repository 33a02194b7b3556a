package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if err := m.Track("users:normalize_roles").End(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	boom := errors.New("boom")
	if err := m.Track("users:normalize_roles").End(boom); !errors.Is(err, boom) {
		t.Fatalf("expected error to propagate, got %v", err)
	}

	if got := testutil.ToFloat64(m.runs.WithLabelValues("users:normalize_roles", "success")); got != 1 {
		t.Fatalf("success runs = %v", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues("users:normalize_roles")); got != 1 {
		t.Fatalf("failures = %v", got)
	}
}

func TestAddRewrittenIgnoresEmptyRuns(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddRewritten("roles:normalize_permissions", 0)
	m.AddRewritten("roles:normalize_permissions", 3)
	if got := testutil.ToFloat64(m.rewritten.WithLabelValues("roles:normalize_permissions")); got != 3 {
		t.Fatalf("rewritten = %v", got)
	}

	var nilMetrics *Metrics
	nilMetrics.AddRewritten("x", 1)
	if err := nilMetrics.Track("x").End(nil); err != nil {
		t.Fatalf("nil tracker: %v", err)
	}
}
