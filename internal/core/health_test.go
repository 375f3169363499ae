package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProbe struct {
	name string
	err  error
}

func (p fakeProbe) Name() string                    { return p.name }
func (p fakeProbe) Check(ctx context.Context) error { return p.err }

type fakeModel struct{ loaded bool }

func (m fakeModel) Loaded() bool { return m.loaded }

func doHealth(t *testing.T, s *Server) (*httptest.ResponseRecorder, healthResponse) {
	t.Helper()

	rec := httptest.NewRecorder()
	s.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func TestHandleHealth_NoProbes(t *testing.T) {
	s := newTestServer(t)
	s.Model = fakeModel{loaded: true}

	rec, resp := doHealth(t, s)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.ModelLoaded)
	assert.Empty(t, resp.Components)
}

func TestHandleHealth_ModelNotLoaded(t *testing.T) {
	s := newTestServer(t)
	s.Model = fakeModel{loaded: false}

	rec, resp := doHealth(t, s)

	// A failed model load degrades predictions only; the service overall
	// stays healthy so marketplace traffic keeps flowing.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp.Status)
	assert.False(t, resp.ModelLoaded)
}

func TestHandleHealth_NilModelReporter(t *testing.T) {
	s := newTestServer(t)

	rec, resp := doHealth(t, s)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, resp.ModelLoaded)
}

func TestHandleHealth_AllProbesHealthy(t *testing.T) {
	s := newTestServer(t)
	s.Model = fakeModel{loaded: true}
	s.HealthProbes = []HealthProbe{
		fakeProbe{name: "database"},
		fakeProbe{name: "queue"},
	}

	rec, resp := doHealth(t, s)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Components["database"].Status)
	assert.Equal(t, "healthy", resp.Components["queue"].Status)
}

func TestHandleHealth_FailingProbe(t *testing.T) {
	s := newTestServer(t)
	s.Model = fakeModel{loaded: true}
	s.HealthProbes = []HealthProbe{
		fakeProbe{name: "database", err: errors.New("connection refused")},
		fakeProbe{name: "queue"},
	}

	rec, resp := doHealth(t, s)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "unhealthy", resp.Components["database"].Status)
	assert.Equal(t, "connection refused", resp.Components["database"].Message)
	assert.Equal(t, "healthy", resp.Components["queue"].Status)
	// Model status is reported independently of probe health.
	assert.True(t, resp.ModelLoaded)
}
