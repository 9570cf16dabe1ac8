package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEmbeddingRequestsBySource(t *testing.T) {
	before := testutil.ToFloat64(EmbeddingRequests.WithLabelValues(SourceLexical))
	EmbeddingRequests.WithLabelValues(SourceLexical).Inc()
	after := testutil.ToFloat64(EmbeddingRequests.WithLabelValues(SourceLexical))

	if after-before != 1 {
		t.Errorf("expected counter to grow by 1, got %f", after-before)
	}
}

func TestVectorIndexSizeGauge(t *testing.T) {
	VectorIndexSize.Set(42)
	if got := testutil.ToFloat64(VectorIndexSize); got != 42 {
		t.Errorf("expected 42, got %f", got)
	}
}
