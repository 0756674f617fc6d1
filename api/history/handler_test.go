package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetdispatch/core/model"
	"github.com/kilianp07/fleetdispatch/core/store"
)

type memHistory struct{ runs []model.SimulationRun }

func (m *memHistory) Append(_ context.Context, r model.SimulationRun) error {
	m.runs = append(m.runs, r)
	return nil
}

func (m *memHistory) Query(_ context.Context, q store.RunQuery) ([]model.SimulationRun, error) {
	var res []model.SimulationRun
	for _, r := range m.runs {
		if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && r.Timestamp.After(q.End) {
			continue
		}
		res = append(res, r)
		if q.Limit > 0 && len(res) == q.Limit {
			break
		}
	}
	return res, nil
}

func (m *memHistory) Close() error { return nil }

func seed(t *testing.T) *memHistory {
	t.Helper()
	h := &memHistory{}
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, h.Append(context.Background(), model.SimulationRun{
			ID:        string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			KPIs:      model.KPISnapshot{TotalDeliveries: i},
		}))
	}
	return h
}

func TestHandlerAuth(t *testing.T) {
	h := NewHandler(seed(t), "tok")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/simulation_history", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/simulation_history", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var runs []model.SimulationRun
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	assert.Len(t, runs, 3)
}

func TestHandlerFilters(t *testing.T) {
	h := NewHandler(seed(t), "")

	req := httptest.NewRequest(http.MethodGet,
		"/api/simulation_history?start=2026-05-01T13:00:00Z&limit=1", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var runs []model.SimulationRun
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].ID)
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	h := NewHandler(seed(t), "")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/simulation_history", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
