package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSourcePages_CountsByResult(t *testing.T) {
	before := testutil.ToFloat64(SourcePages.WithLabelValues(PageFailed))
	SourcePages.WithLabelValues(PageFailed).Inc()
	after := testutil.ToFloat64(SourcePages.WithLabelValues(PageFailed))
	if after-before != 1 {
		t.Fatalf("期望计数 +1，实际 before=%v after=%v", before, after)
	}
}
