package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordUpload_IncrementsCounter(t *testing.T) {
	m := New()
	m.RecordUpload("prod", "linux")
	m.RecordUploadRejected("prod", "linux")

	assert.InDelta(t, 1, testutil.ToFloat64(m.UploadsTotal.WithLabelValues("prod", "linux", "stored")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.UploadsTotal.WithLabelValues("prod", "linux", "rejected")), 1e-9)
}

func TestHandler_ServesExpositionFormat(t *testing.T) {
	m := New()
	m.RecordEviction("prod", "linux", "hard_cap")
	m.ObserveSlotSize("prod", "linux", 5)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "filecache_evictions_total")
	assert.Contains(t, rec.Body.String(), "filecache_slot_entries")
}
