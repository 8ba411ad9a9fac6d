package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Intake("owner", "created")
		m.MediaAccepted("gallery", 2)
		m.Review("approve", "ok")
		m.Promotion("ok")
		m.Read("db", false)
		m.RetentionDeleted("proof")
		m.Replayed("ok")
		m.QueueDepth(3)
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.Intake("owner", "created")
	m.Intake("owner", "created")
	m.MediaAccepted("gallery", 2)
	m.MediaAccepted("proof", 0)
	m.Read("json", true)
	m.QueueDepth(4)

	body := scrape(t, m)
	assert.Contains(t, body, `venue_intake_total{kind="owner",outcome="created"} 2`)
	assert.Contains(t, body, `venue_media_accepted_total{field="gallery"} 2`)
	assert.NotContains(t, body, `field="proof"`)
	assert.Contains(t, body, `venue_reads_total{limited="true",source="json"} 1`)
	assert.Contains(t, body, `venue_queue_depth 4`)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Promotion("ok")

	assert.Contains(t, scrape(t, m), `venue_promotions_total{result="ok"} 1`)
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
