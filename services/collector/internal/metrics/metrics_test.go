package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncAppended("delta")
	m.IncAppended("delta")
	m.IncAppended("reset")
	if got := testutil.ToFloat64(m.appended.WithLabelValues("delta")); got != 2 {
		t.Fatalf("expected 2 delta appends, got %f", got)
	}

	m.IncCounterReset()
	if got := testutil.ToFloat64(m.counterResets); got != 1 {
		t.Fatalf("expected 1 counter reset, got %f", got)
	}

	m.IncTransportFailure()
	m.IncTransportFailure()
	if got := testutil.ToFloat64(m.transportFailures); got != 2 {
		t.Fatalf("expected 2 transport failures, got %f", got)
	}

	m.IncUnresolved()
	if got := testutil.ToFloat64(m.unresolved); got != 1 {
		t.Fatalf("expected 1 unresolved source, got %f", got)
	}

	m.IncStoreFailure()
	if got := testutil.ToFloat64(m.storeFailures); got != 1 {
		t.Fatalf("expected 1 store failure, got %f", got)
	}

	m.ObserveCycle(300 * time.Millisecond)
	if samples := testutil.CollectAndCount(m.cycleDuration); samples != 1 {
		t.Fatalf("expected cycle histogram to record 1 sample, got %d", samples)
	}

	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Fatalf("expected registered metrics, got %d (%v)", n, err)
	}
}
