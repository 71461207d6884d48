package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/receiptsplit/internal/calculator"
)

func TestObserveSplit(t *testing.T) {
	m := New()

	m.ObserveSplit("local", &calculator.BillSplitResult{}, nil)
	m.ObserveSplit("gemini", &calculator.BillSplitResult{
		Warnings: []calculator.ValidationIssue{{Code: calculator.CodeTaxMismatch}, {Code: calculator.CodeMissingBreakdown}},
	}, nil)
	m.ObserveSplit("gemini", nil, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.splits.WithLabelValues("local", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.splits.WithLabelValues("gemini", "warnings")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.splits.WithLabelValues("gemini", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.issues.WithLabelValues("tax_mismatch")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRequest("/api/analyze-receipt", "POST", 200, 30*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `receiptsplit_http_requests_total{code="200",method="POST",route="/api/analyze-receipt"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
