package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/bighogz/insider-trades/internal/app"
	"github.com/bighogz/insider-trades/internal/config"
	"github.com/bighogz/insider-trades/internal/ingest"
	"github.com/bighogz/insider-trades/internal/metrics"
	"github.com/bighogz/insider-trades/internal/models"
	"github.com/bighogz/insider-trades/internal/store"
	"github.com/bighogz/insider-trades/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config: %v\n", err)
		os.Exit(1)
	}
	log, err := app.Logger(cfg, "api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(cfg.Telemetry.Traces, os.Stderr)
	if err != nil {
		log.Fatal("telemetry", zap.Error(err))
	}
	defer shutdown(context.Background())
	metrics.Init()

	st, err := store.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer st.Close()

	s := newServer(ctx, st, app.IngestRunner(cfg, st, log), cfg.Server.AdminKey, log)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(sctx)
	}()

	log.Info("server starting", zap.String("address", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", zap.Error(err))
	}
	s.stop()
}

type readStore interface {
	Ping(ctx context.Context) error
	GetInsider(ctx context.Context, cik string) (*models.Insider, error)
	GetFiling(ctx context.Context, id string) (*models.Filing, error)
	ListErrorURLs(ctx context.Context) ([]models.ErrorURL, error)
}

type dayIngester interface {
	Run(ctx context.Context, start, end time.Time) (*ingest.Report, error)
}

type server struct {
	store    readStore
	ingester dayIngester
	adminKey string
	limiter  *rateLimiter
	log      *zap.Logger

	// ctx bounds background ingests; stop cancels it.
	ctx        context.Context
	cancel     context.CancelFunc
	ingestMu   sync.Mutex
	ingestDays map[string]bool
	jobs       sync.WaitGroup
}

func newServer(ctx context.Context, st readStore, ing dayIngester, adminKey string, log *zap.Logger) *server {
	ctx, cancel := context.WithCancel(ctx)
	return &server{
		ctx:        ctx,
		cancel:     cancel,
		store:      st,
		ingester:   ing,
		adminKey:   adminKey,
		limiter:    newRateLimiter(5 * time.Second), // 1 ingest per 5s per IP
		log:        log,
		ingestDays: make(map[string]bool),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))
	r.Use(securityHeaders)

	r.Handle("/metrics", metrics.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/insiders/{cik}", s.handleInsider)
		r.Get("/filings/{id}", s.handleFiling)
		r.Get("/error-urls", s.handleErrorURLs)
		r.With(adminOrRateLimit(s.adminKey, s.limiter)).Post("/ingest", s.handleIngest)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonError(w, http.StatusNotFound, "not found")
	})
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		jsonError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *server) handleInsider(w http.ResponseWriter, r *http.Request) {
	in, err := s.store.GetInsider(r.Context(), chi.URLParam(r, "cik"))
	if s.lookupFailed(w, err) {
		return
	}
	jsonResponse(w, in)
}

func (s *server) handleFiling(w http.ResponseWriter, r *http.Request) {
	f, err := s.store.GetFiling(r.Context(), chi.URLParam(r, "id"))
	if s.lookupFailed(w, err) {
		return
	}
	jsonResponse(w, f)
}

func (s *server) handleErrorURLs(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListErrorURLs(r.Context())
	if s.lookupFailed(w, err) {
		return
	}
	if list == nil {
		list = []models.ErrorURL{}
	}
	jsonResponse(w, map[string]interface{}{"count": len(list), "error_urls": list})
}

func (s *server) lookupFailed(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, "not found")
	default:
		s.log.Error("store lookup failed", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
	return true
}

// handleIngest starts a background ingest of ?date= (default: yesterday, UTC).
// A day already being ingested is not started twice.
func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC().AddDate(0, 0, -1)
	if v := r.URL.Query().Get("date"); v != "" {
		t, err := time.Parse(ingest.DateLayout, v)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = t
	}
	label := day.Format(ingest.DateLayout)

	s.ingestMu.Lock()
	if s.ingestDays[label] {
		s.ingestMu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"status": "already running", "date": label})
		return
	}
	s.ingestDays[label] = true
	s.ingestMu.Unlock()

	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		defer func() {
			s.ingestMu.Lock()
			delete(s.ingestDays, label)
			s.ingestMu.Unlock()
		}()
		if _, err := s.ingester.Run(s.ctx, day, day); err != nil {
			s.log.Error("background ingest failed", zap.String("date", label), zap.Error(err))
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ingest started", "date": label})
}

// stop cancels background ingests and waits for them to return.
func (s *server) stop() {
	s.cancel()
	s.jobs.Wait()
}

func jsonResponse(w http.ResponseWriter, v interface{}) {
	writeJSON(w, http.StatusOK, v)
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
