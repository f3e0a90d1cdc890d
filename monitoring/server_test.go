package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_Health(t *testing.T) {
	srv := NewServer(":0", nil)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"service":"milda-bot"`)
}

func TestServer_ReadyFollowsProbe(t *testing.T) {
	ready := false
	srv := NewServer(":0", func() bool { return ready })

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready = true
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_MetricsExposesCounters(t *testing.T) {
	TrackStoreOperation("append", nil)
	TrackStoreOperation("append", errors.New("quota"))
	TrackConfirmation("yes", nil)

	srv := NewServer(":0", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `milda_store_operations_total{op="append",result="error"}`))
	assert.True(t, strings.Contains(body, `milda_confirmations_total{response="yes",result="ok"}`))
}
