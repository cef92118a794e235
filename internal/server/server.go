package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/radiantsdao/burnwatch/internal/utils"
)

const shutdownTimeout = 10 * time.Second

// StreamStatus reports the connection state of every running stream, keyed
// by stream name.
type StreamStatus func() map[string]string

type Server struct {
	Metrics  http.Handler
	Status   StreamStatus
	Username string
	Password string
}

func New(metrics http.Handler, status StreamStatus, user, pass string) *Server {
	return &Server{
		Metrics:  metrics,
		Status:   status,
		Username: user,
		Password: pass,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.Metrics != nil {
		mux.HandleFunc("GET /metrics", s.basicAuth(s.Metrics.ServeHTTP))
	}
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		utils.Log.Infof("Starting metrics server on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
