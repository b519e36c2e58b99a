package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := NewMetrics("")

	m.RecordDay(3, 2*time.Millisecond)
	m.RecordDay(4, time.Millisecond)
	m.RecordPrice(true)
	m.RecordPrice(false)
	m.RecordPrice(false)
	m.RecordTransition("dead_cat_bounce", "CRASH", "BOUNCE")
	m.RecordNews("dead_cat_bounce", "negative")
	m.RecordDiagnostic("price_parity", "error")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DaysSimulated))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.CurrentDay))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PricesApplied.WithLabelValues("effect")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PricesApplied.WithLabelValues("model")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("dead_cat_bounce", "CRASH", "BOUNCE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Diagnostics.WithLabelValues("price_parity", "error")))
}

func TestActivePatternsReset(t *testing.T) {
	m := NewMetrics("test")
	m.SetActivePatterns(map[[2]string]int{{"dead_cat_bounce", "BOUNCE"}: 2})
	assert.Equal(t, 1, testutil.CollectAndCount(m.ActivePatterns))

	m.SetActivePatterns(map[[2]string]int{{"insider_buying", "ACCUMULATION"}: 1})
	assert.Equal(t, 1, testutil.CollectAndCount(m.ActivePatterns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActivePatterns.WithLabelValues("insider_buying", "ACCUMULATION")))
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := NewMetrics("")
	m.RecordDay(1, time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "phenomsim_simulation_days_total 1")
}
