package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	t.Parallel()

	// Two instances must not collide on registration.
	a := New()
	b := New()
	a.RecordAnswer("enriched")

	assert.Equal(t, 1.0, testutil.ToFloat64(a.AnswerOutcomesTotal.WithLabelValues("enriched")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.AnswerOutcomesTotal.WithLabelValues("enriched")))
}

func TestRecordProviderCall_Status(t *testing.T) {
	t.Parallel()

	m := New()
	m.RecordProviderCall("complete", "openai", nil, 20*time.Millisecond)
	m.RecordProviderCall("complete", "openai", errors.New("boom"), time.Millisecond)
	m.RecordProviderCall("complete", "openai", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderCallsTotal.WithLabelValues("complete", "openai", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProviderCallsTotal.WithLabelValues("complete", "openai", "error")))
}

func TestRecordFallbackAndFragments(t *testing.T) {
	t.Parallel()

	m := New()
	m.RecordFallback("error")
	m.RecordFallback("empty_output")
	m.RecordFallback("error")
	m.RecordFragment()
	m.RecordFragment()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RetrievalFallbacksTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetrievalFallbacksTotal.WithLabelValues("empty_output")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StreamFragmentsTotal))
}

func TestRecordUpload(t *testing.T) {
	t.Parallel()

	m := New()
	m.RecordUpload(128, nil)
	m.RecordUpload(64, errors.New("failed"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.KnowledgeUploadsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KnowledgeUploadsTotal.WithLabelValues("error")))
	assert.Equal(t, 128.0, testutil.ToFloat64(m.KnowledgeUploadBytes))
}

func TestHandler_ExposesRecordedSeries(t *testing.T) {
	t.Parallel()

	m := New()
	m.RecordHTTPRequest("/health", "GET", "200", 5*time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `aiweb_http_requests_total{method="GET",route="/health",status="200"} 1`), string(body))
	assert.Contains(t, string(body), "go_goroutines")
}

func TestTrackInFlight(t *testing.T) {
	t.Parallel()

	m := New()
	done := m.TrackInFlight()
	assert.InDelta(t, 1, testutil.ToFloat64(m.HTTPRequestsInFlight), 0)
	done()
	assert.InDelta(t, 0, testutil.ToFloat64(m.HTTPRequestsInFlight), 0)
}
