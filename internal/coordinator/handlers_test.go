package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/turbolytics/duesync/internal/catalog"
	"github.com/turbolytics/duesync/internal/source/sourcetest"
)

type staticHistory struct {
	runs []catalog.Summary
	err  error
}

func (h staticHistory) Recent(_ context.Context, limit int) ([]catalog.Summary, error) {
	if h.err != nil {
		return nil, h.err
	}
	if limit < len(h.runs) {
		return h.runs[:limit], nil
	}
	return h.runs, nil
}

func serve(c *Coordinator, method, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(RequestLogger(zap.NewNop()))
	c.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestTrigger(t *testing.T) {
	t.Run("completed", func(t *testing.T) {
		h := newHarness(t)
		for _, method := range []string{http.MethodPost, http.MethodGet} {
			rec := serve(h.coordinator(t), method, "/api/v1/sync")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "Successfully processed 5 records. Time Taken: 1.5s", rec.Body.String())
		}
	})

	t.Run("failed", func(t *testing.T) {
		h := newHarness(t, sourcetest.WithPageFailure(1, 500))
		rec := serve(h.coordinator(t), http.MethodPost, "/api/v1/sync")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "fetching")
	})

	t.Run("locked", func(t *testing.T) {
		h := newHarness(t)
		rec := serve(h.coordinator(t, WithLocker(heldLock{})), http.MethodPost, "/api/v1/sync")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := serve(h.coordinator(t), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListRuns(t *testing.T) {
	h := newHarness(t)
	runs := []catalog.Summary{
		{RunID: "2", State: "failed", Stage: "fetching"},
		{RunID: "1", State: "completed", Fetched: 5},
	}

	t.Run("not registered without history", func(t *testing.T) {
		rec := serve(h.coordinator(t), http.MethodGet, "/api/v1/runs")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("limit", func(t *testing.T) {
		rec := serve(h.coordinator(t, WithHistory(staticHistory{runs: runs})), http.MethodGet, "/api/v1/runs?limit=1")
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Runs  []catalog.Summary `json:"runs"`
			Count int               `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 1, body.Count)
		assert.Equal(t, "2", body.Runs[0].RunID)
	})

	t.Run("bad limit", func(t *testing.T) {
		rec := serve(h.coordinator(t, WithHistory(staticHistory{runs: runs})), http.MethodGet, "/api/v1/runs?limit=0")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("history error", func(t *testing.T) {
		rec := serve(h.coordinator(t, WithHistory(staticHistory{err: errors.New("db down")})), http.MethodGet, "/api/v1/runs")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
