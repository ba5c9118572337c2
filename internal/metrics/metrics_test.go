package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsRegistered(t *testing.T) {
	FeedMessages.WithLabelValues("venue").Inc()
	Executions.WithLabelValues("recorded").Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	want := map[string]bool{
		"divergence_feed_messages_total": false,
		"divergence_executions_total":    false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("%s not registered", name)
		}
	}
	if got := testutil.ToFloat64(Executions.WithLabelValues("recorded")); got < 1 {
		t.Fatalf("executions counter = %v", got)
	}
}

func TestServeDisabled(t *testing.T) {
	if srv := Serve("", nil); srv != nil {
		t.Fatalf("expected nil server for empty addr")
	}
}
