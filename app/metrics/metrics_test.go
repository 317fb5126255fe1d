package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(FeedsParsed.WithLabelValues("atom"))
	FeedsParsed.WithLabelValues("atom").Inc()
	if got := testutil.ToFloat64(FeedsParsed.WithLabelValues("atom")); got != before+1 {
		t.Errorf("Expected %v, got %v", before+1, got)
	}

	EntriesImported.WithLabelValues("metrics-test").Add(3)
	if got := testutil.ToFloat64(EntriesImported.WithLabelValues("metrics-test")); got != 3 {
		t.Errorf("Expected 3 imported entries, got %v", got)
	}
}

func TestImportDurationObserves(t *testing.T) {
	ImportDuration.WithLabelValues("success").Observe(0.25)
	if count := testutil.CollectAndCount(ImportDuration); count < 1 {
		t.Errorf("Expected at least one histogram series, got %d", count)
	}
}
