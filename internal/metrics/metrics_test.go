package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordCycle(t *testing.T) {
	before := testutil.ToFloat64(CyclesTotal.WithLabelValues(StatusFailed))
	seenBefore := testutil.ToFloat64(MessagesSeen)

	RecordCycle(false, 0, time.Second)
	RecordCycle(true, 3, time.Second)

	if got := testutil.ToFloat64(CyclesTotal.WithLabelValues(StatusFailed)) - before; got != 1 {
		t.Fatalf("failed cycles delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(MessagesSeen) - seenBefore; got != 3 {
		t.Fatalf("messages seen delta = %v, want 3", got)
	}
}

func TestIncrementReply(t *testing.T) {
	before := testutil.ToFloat64(RepliesTotal.WithLabelValues(StatusSkipped))
	IncrementReply(StatusSkipped)
	if got := testutil.ToFloat64(RepliesTotal.WithLabelValues(StatusSkipped)) - before; got != 1 {
		t.Fatalf("skipped delta = %v, want 1", got)
	}
}
