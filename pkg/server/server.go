package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/chazu/compass/pkg/logging"
	"github.com/chazu/compass/pkg/sketch"
	v2 "github.com/deadsy/sdfx/vec/v2"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodySize bounds request bodies; scripts are small.
const maxBodySize = 1 << 20

// Options configures a Server.
type Options struct {
	Addr string
	// AllowedOrigins are the websocket origin patterns, e.g. "localhost:*".
	AllowedOrigins []string
	// Sketch configures the sketches of live sessions.
	Sketch sketch.Options
}

// Server serves the HTTP API.
type Server struct {
	app  *App
	opts Options
}

// New returns a server backed by app.
func New(app *App, opts Options) *Server {
	return &Server{app: app, opts: opts}
}

// Router returns the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(recovery)
	r.Use(requestLogger)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	r.HandleFunc("/evaluate", s.handleEvaluate).Methods("POST")
	r.HandleFunc("/snap", s.handleSnap).Methods("POST")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/ws/session", s.handleSession)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Logger().Info("server starting", "addr", s.opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Logger().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

// Key is optional. Requests sharing a key supersede each other, so an editor
// re-evaluating on every change only gets the latest result; requests
// without one never interfere.
type evaluateRequest struct {
	Source string `json:"source"`
	Key    string `json:"key,omitempty"`
}

type snapRequest struct {
	Source string  `json:"source"`
	Key    string  `json:"key,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res := s.app.EvaluateKeyed(req.Key, req.Source)
	writeJSON(w, statusFor(res), res)
}

func (s *Server) handleSnap(w http.ResponseWriter, r *http.Request) {
	var req snapRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res := s.app.SnapKeyed(req.Key, req.Source, v2.Vec{X: req.X, Y: req.Y})
	writeJSON(w, statusFor(res.EvalResult), res)
}

// statusFor maps script errors to 422 so clients can tell them from
// transport failures.
func statusFor(res EvalResult) int {
	if res.OK() {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Logger().Error("panic in handler", "path", r.URL.Path, "panic", rec)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logging.Logger().Debug("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}
