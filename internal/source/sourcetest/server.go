// Package sourcetest provides an in-memory OData style record source with a
// client credentials token endpoint. It backs the package tests and the
// `fixtures serve` command.
package sourcetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/turbolytics/duesync/internal/source"
)

const (
	DefaultClientID     = "fixture-client"
	DefaultClientSecret = "fixture-secret"
	DefaultTenant       = "fixture-tenant"
	DefaultEntitySet    = "contacts"

	issuedToken     = "fixture-token"
	defaultPageSize = 2
)

type Option func(*Server)

func WithRecords(records []map[string]any) Option {
	return func(s *Server) {
		s.records = records
	}
}

func WithFields(m source.FieldMap) Option {
	return func(s *Server) {
		s.fields = m
	}
}

func WithEntitySet(name string) Option {
	return func(s *Server) {
		s.entitySet = name
	}
}

// WithPageFailure makes the n-th page request (1-based) answer status.
func WithPageFailure(n int, status int) Option {
	return func(s *Server) {
		s.pageFailures[n] = status
	}
}

// WithUpdateFailures makes the next times updates of id answer status.
func WithUpdateFailures(id string, times int, status int) Option {
	return func(s *Server) {
		s.updateFailures[id] = failure{remaining: times, status: status}
	}
}

// WithDefaultPageSize sets the page size used when the client sends no hint.
func WithDefaultPageSize(n int) Option {
	return func(s *Server) {
		s.defaultPageSize = n
	}
}

type failure struct {
	remaining int
	status    int
}

// Server is an http.Handler serving records under source.DefaultAPIPath.
type Server struct {
	mu sync.Mutex

	fields          source.FieldMap
	entitySet       string
	defaultPageSize int
	records         []map[string]any

	pageFailures   map[int]int
	updateFailures map[string]failure

	pageRequests   int
	updateRequests int
	updated        []string

	router chi.Router
}

func New(opts ...Option) *Server {
	s := &Server{
		fields:          source.DefaultFieldMap(),
		entitySet:       DefaultEntitySet,
		defaultPageSize: defaultPageSize,
		pageFailures:    make(map[int]int),
		updateFailures:  make(map[string]failure),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Post("/{tenant}/oauth2/v2.0/token", s.token)
	r.Get(source.DefaultAPIPath+s.entitySet, s.list)
	r.Patch(source.DefaultAPIPath+"{resource}", s.patch)
	s.router = r
	return s
}

// TokenURL returns the token endpoint for a server listening on baseURL.
func TokenURL(baseURL string) string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimRight(baseURL, "/"), DefaultTenant)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// PageRequests returns the number of page requests served, failed ones included.
func (s *Server) PageRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageRequests
}

// UpdateRequests returns the number of update requests received.
func (s *Server) UpdateRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateRequests
}

// Updated returns the ids successfully updated, in order.
func (s *Server) Updated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.updated...)
}

// Record returns a copy of the stored record with the given id.
func (s *Server) Record(id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return nil, false
	}
	out := make(map[string]any, len(s.records[i]))
	for k, v := range s.records[i] {
		out[k] = v
	}
	return out, true
}

func (s *Server) indexOf(id string) int {
	for i, rec := range s.records {
		if fmt.Sprint(rec[s.fields.ID]) == id {
			return i
		}
	}
	return -1
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, secret, ok := r.BasicAuth()
	if !ok {
		id, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}
	if id != DefaultClientID || secret != DefaultClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error":             "invalid_client",
			"error_description": "unknown client credentials",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": issuedToken,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+issuedToken
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	if !authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pageRequests++
	if status, ok := s.pageFailures[s.pageRequests]; ok {
		writeJSON(w, status, map[string]any{
			"error": map[string]any{"code": "0x80072321", "message": "injected page failure"},
		})
		return
	}

	size := s.defaultPageSize
	if n, ok := maxPageSize(r.Header.Get("Prefer")); ok {
		size = n
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("$skiptoken"))
	selected := r.URL.Query().Get("$select")

	end := min(offset+size, len(s.records))
	values := make([]map[string]any, 0, max(end-offset, 0))
	for _, rec := range s.records[min(offset, end):end] {
		values = append(values, project(rec, selected))
	}

	resp := map[string]any{"value": values}
	if end < len(s.records) {
		next := fmt.Sprintf("http://%s%s?$skiptoken=%d", r.Host, r.URL.Path, end)
		if selected != "" {
			next += "&$select=" + selected
		}
		resp["@odata.nextLink"] = next
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) patch(w http.ResponseWriter, r *http.Request) {
	if !authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	resource := chi.URLParam(r, "resource")
	prefix := s.entitySet + "("
	if !strings.HasPrefix(resource, prefix) || !strings.HasSuffix(resource, ")") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	id := strings.TrimSuffix(strings.TrimPrefix(resource, prefix), ")")

	var changes map[string]any
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateRequests++
	if f, ok := s.updateFailures[id]; ok && f.remaining > 0 {
		f.remaining--
		s.updateFailures[id] = f
		writeJSON(w, f.status, map[string]any{
			"error": map[string]any{"code": "0x80072322", "message": "injected update failure"},
		})
		return
	}

	i := s.indexOf(id)
	if i < 0 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	for k, v := range changes {
		s.records[i][k] = v
	}
	s.updated = append(s.updated, id)
	w.WriteHeader(http.StatusNoContent)
}

func maxPageSize(prefer string) (int, bool) {
	for _, part := range strings.Split(prefer, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || k != "odata.maxpagesize" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func project(rec map[string]any, selected string) map[string]any {
	if selected == "" {
		return rec
	}
	out := make(map[string]any)
	for _, name := range strings.Split(selected, ",") {
		if v, ok := rec[name]; ok {
			out[name] = v
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
