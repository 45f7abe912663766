// Package server exposes the search service over HTTP for the browser
// extension.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/runnerr0/wereyouhere/internal/history"
	"github.com/runnerr0/wereyouhere/internal/search"
)

// DTLayout is how visit times are shown to clients.
const DTLayout = "02 Jan 2006 15:04"

// maxBodyBytes bounds request bodies; /visited carries a page's worth of links.
const maxBodyBytes = 8 << 20

// statusClientClosed is logged and written when the client goes away mid-query.
const statusClientClosed = 499

// Searcher is the query surface the server forwards to.
type Searcher interface {
	Status(ctx context.Context) (search.Status, error)
	Visits(ctx context.Context, url string) ([]history.Visit, error)
	Search(ctx context.Context, url string) ([]history.Visit, error)
	SearchAround(ctx context.Context, ts float64) ([]history.Visit, error)
	Visited(ctx context.Context, urls []string) ([]bool, error)
}

// Server routes the five query endpoints to a Searcher.
type Server struct {
	svc    Searcher
	log    *slog.Logger
	router *chi.Mux
}

// New builds the router.
func New(svc Searcher, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{svc: svc, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors)

	r.Post("/status", s.handleStatus)
	r.Post("/visits", s.handleVisits)
	r.Post("/search", s.handleSearch)
	r.Post("/search_around", s.handleSearchAround)
	r.Post("/visited", s.handleVisited)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("server starting", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("server stopped")
	return <-errc
}

type statusResponse struct {
	Status    string `json:"status"`
	StorePath string `json:"store_path"`
}

// LocatorJSON is the wire form of history.Locator.
type LocatorJSON struct {
	Title string `json:"title"`
	Href  string `json:"href"`
}

// VisitJSON is the wire form of a visit shared by the server and the CLI.
type VisitJSON struct {
	DT            string      `json:"dt"`
	Tags          []string    `json:"tags"`
	Context       *string     `json:"context"`
	Duration      *int64      `json:"duration"`
	Locator       LocatorJSON `json:"locator"`
	OriginalURL   string      `json:"original_url"`
	NormalisedURL string      `json:"normalised_url"`
}

// NewVisitJSON renders v, formatting its time in its own zone.
func NewVisitJSON(v history.Visit) VisitJSON {
	return VisitJSON{
		DT:            v.DT.Format(DTLayout),
		Tags:          []string{v.Source},
		Context:       v.Context,
		Duration:      v.Duration,
		Locator:       LocatorJSON{Title: v.Locator.Title, Href: v.Locator.Href},
		OriginalURL:   v.OriginalURL,
		NormalisedURL: v.NormalisedURL,
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Status(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: st.Status, StorePath: st.StorePath})
}

func (s *Server) handleVisits(w http.ResponseWriter, r *http.Request) {
	s.urlQuery(w, r, s.svc.Visits)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.urlQuery(w, r, s.svc.Search)
}

func (s *Server) urlQuery(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) ([]history.Visit, error)) {
	var req struct {
		URL string `json:"url"`
	}
	if err := decode(w, r, &req, func(form map[string][]string) error {
		req.URL = first(form["url"])
		return nil
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.URL == "" {
		s.fail(w, r, fmt.Errorf("%w: url is required", search.ErrBadInput))
		return
	}
	visits, err := fn(r.Context(), req.URL)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeVisits(w, visits)
}

func (s *Server) handleSearchAround(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := decode(w, r, &req, func(form map[string][]string) error {
		if v := first(form["timestamp"]); v != "" {
			req.Timestamp = json.RawMessage(strconv.Quote(v))
		}
		return nil
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	ts, err := parseTimestamp(req.Timestamp)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	visits, err := s.svc.SearchAround(r.Context(), ts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeVisits(w, visits)
}

func (s *Server) handleVisited(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URLs []string `json:"urls"`
	}
	if err := decode(w, r, &req, func(form map[string][]string) error {
		req.URLs = form["urls"]
		return nil
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.URLs == nil {
		s.fail(w, r, fmt.Errorf("%w: urls is required", search.ErrBadInput))
		return
	}
	results, err := s.svc.Visited(r.Context(), req.URLs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) writeVisits(w http.ResponseWriter, visits []history.Visit) {
	out := make([]VisitJSON, 0, len(visits))
	for _, v := range visits {
		out = append(out, NewVisitJSON(v))
	}
	writeJSON(w, http.StatusOK, out)
}

// fail maps a service error to a status code. Storage failures are logged
// in full and answered with a generic message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetReqID(r.Context())
	switch {
	case errors.Is(err, search.ErrBadInput):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, search.ErrStoreNotFound):
		s.log.Error("visit store missing", "request_id", reqID, "error", err)
		writeError(w, http.StatusServiceUnavailable, search.ErrStoreNotFound)
	case errors.Is(err, context.Canceled):
		s.log.Debug("request cancelled", "request_id", reqID, "path", r.URL.Path)
		writeError(w, statusClientClosed, context.Canceled)
	default:
		s.log.Error("query failed", "request_id", reqID, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, search.ErrStorage)
	}
}

// decode reads a JSON body, or a form body through fromForm.
func decode(w http.ResponseWriter, r *http.Request, dst any, fromForm func(map[string][]string) error) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return fmt.Errorf("%w: %v", search.ErrBadInput, err)
		}
		return fromForm(r.PostForm)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode body: %v", search.ErrBadInput, err)
	}
	return nil
}

// parseTimestamp accepts a JSON number or a numeric string.
func parseTimestamp(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("%w: timestamp is required", search.ErrBadInput)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("%w: timestamp %s", search.ErrBadInput, raw)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: timestamp %q", search.ErrBadInput, s)
	}
	return f, nil
}

func first(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
