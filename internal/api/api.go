// Package api serves stored contrast results read-only over HTTP for map
// and dashboard clients.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/night-light/internal/export"
	"github.com/sells-group/night-light/internal/model"
	"github.com/sells-group/night-light/internal/store"
)

// Reader is the subset of store.Store the API needs.
type Reader interface {
	LatestRun(ctx context.Context) (*model.Run, error)
	ListResults(ctx context.Context, filter store.ResultFilter) ([]model.ContrastResult, error)
	GetCenterResults(ctx context.Context, crosswalkID int64) ([]model.ContrastResult, error)
	ListClassifications(ctx context.Context, crosswalkID int64) ([]model.SideClassification, error)
}

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	CacheEntries   int           // 0 disables caching of /centers
	CacheTTL       time.Duration // 0 keeps entries until the next run
}

// Server handles the read API.
type Server struct {
	store Reader
	opts  Options
	cache *responseCache
	log   *zap.Logger
}

// New creates a Server reading from r.
func New(r Reader, opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{
		store: r,
		opts:  opts,
		cache: newResponseCache(opts.CacheEntries, opts.CacheTTL),
		log:   zap.L().With(zap.String("component", "api")),
	}
}

// Handler returns the router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Get("/runs/latest", s.latestRun)
	r.Route("/centers", func(r chi.Router) {
		r.Get("/", s.listCenters)
		r.Get("/{crosswalkID}", s.crosswalkCenters)
		r.Get("/{crosswalkID}/streetlights", s.crosswalkStreetlights)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"cache":  s.cache.stats(),
	})
}

func (s *Server) latestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.LatestRun(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) listCenters(w http.ResponseWriter, r *http.Request) {
	filter, err := parseResultFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	gen := s.generation(r.Context())
	key := r.URL.RawQuery
	if body := s.cache.get(gen, key); body != nil {
		w.Header().Set("X-Cache", "hit")
		writeBody(w, geoJSONType, body)
		return
	}

	results, err := s.store.ListResults(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	fc, err := export.CentersFeatureCollection(export.NewTables(results, nil, nil).Centers)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	body, err := fc.MarshalJSON()
	if err != nil {
		s.fail(w, r, eris.Wrap(err, "api: marshal centers"))
		return
	}

	s.cache.put(gen, key, body)
	w.Header().Set("X-Cache", "miss")
	writeBody(w, geoJSONType, body)
}

func (s *Server) crosswalkCenters(w http.ResponseWriter, r *http.Request) {
	id, ok := crosswalkParam(w, r)
	if !ok {
		return
	}

	results, err := s.store.GetCenterResults(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	fc, err := export.CentersFeatureCollection(export.NewTables(results, nil, nil).Centers)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeFeatures(w, fc)
}

func (s *Server) crosswalkStreetlights(w http.ResponseWriter, r *http.Request) {
	id, ok := crosswalkParam(w, r)
	if !ok {
		return
	}

	sides, err := s.store.ListClassifications(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(sides) == 0 {
		// Distinguish a crosswalk without nearby lights from an unknown one.
		if _, err := s.store.GetCenterResults(r.Context(), id); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	fc, err := export.StreetlightsFeatureCollection(export.NewTables(nil, sides, nil).Streetlights)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeFeatures(w, fc)
}

// generation identifies the stored results. Any error yields "" which
// still caches consistently until a run is recorded.
func (s *Server) generation(ctx context.Context) string {
	run, err := s.store.LatestRun(ctx)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s@%d", run.ID, run.UpdatedAt.UnixNano())
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.log.Error("api: request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func parseResultFilter(r *http.Request) (store.ResultFilter, error) {
	q := r.URL.Query()
	f := store.ResultFilter{Contrast: q.Get("contrast")}

	var err error
	if v := q.Get("crosswalk_id"); v != "" {
		if f.CrosswalkID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return f, eris.Errorf("invalid crosswalk_id %q", v)
		}
	}
	if f.Limit, err = nonNegative(q.Get("limit")); err != nil {
		return f, eris.Wrap(err, "invalid limit")
	}
	if f.Offset, err = nonNegative(q.Get("offset")); err != nil {
		return f, eris.Wrap(err, "invalid offset")
	}
	return f, nil
}

func nonNegative(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, eris.Errorf("%q is not a non-negative integer", v)
	}
	return n, nil
}

func crosswalkParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "crosswalkID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid crosswalk id %q", raw))
		return 0, false
	}
	return id, true
}

const geoJSONType = "application/geo+json"

func writeFeatures(w http.ResponseWriter, fc *geojson.FeatureCollection) {
	body, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeBody(w, geoJSONType, body)
}

func writeBody(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ListenAndServe serves h on port until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, h http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("api: listening", zap.Int("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "api: listen")
	case <-ctx.Done():
	}

	zap.L().Info("api: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "api: shutdown")
	}
	return nil
}
