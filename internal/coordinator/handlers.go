package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/turbolytics/duesync/internal/catalog"
	"github.com/turbolytics/duesync/internal/lock"
)

// History lists past run summaries, newest first.
type History interface {
	Recent(ctx context.Context, limit int) ([]catalog.Summary, error)
}

const defaultHistoryLimit = 20

func WithHistory(h History) Option {
	return func(c *Coordinator) {
		c.history = h
	}
}

func (c *Coordinator) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Trigger runs one sync inside the request. The body is a plain text
// message: the summary on success, the error otherwise.
func (c *Coordinator) Trigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if c.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.runTimeout)
		defer cancel()
	}

	s, err := c.Run(ctx)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	switch {
	case errors.Is(err, lock.ErrLocked):
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(err.Error()))
	case err != nil:
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(err.Error()))
	default:
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(s.Message()))
	}
}

func (c *Coordinator) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := c.history.Recent(r.Context(), limit)
	if err != nil {
		c.logger.Error("listing runs", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []catalog.Summary{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

func (c *Coordinator) RegisterRoutes(r chi.Router) {
	r.Get("/health", c.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sync", c.Trigger)
		r.Get("/sync", c.Trigger)
		if c.history != nil {
			r.Get("/runs", c.listRuns)
		}
	})
}

// RequestLogger logs one line per request with its status and duration.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("request",
					zap.String("from", r.RemoteAddr),
					zap.String("protocol", r.Proto),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
