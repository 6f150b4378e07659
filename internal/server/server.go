package server

import (
	"net/http"
	"time"
)

type Config struct {
	ListenAddr string
	// DataDir holds the settings, journal and sample stores.
	DataDir string
	// Secret signs session tokens; empty generates a per-process secret.
	Secret []byte
}

type Server struct {
	cfg Config
	app *App
	h   http.Handler
}

func New(cfg Config) *Server {
	app, err := newApp(cfg)
	if err != nil {
		// Defer error to request time for a single error return path.
		return &Server{cfg: cfg, h: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		})}
	}
	return &Server{cfg: cfg, app: app, h: app.routes()}
}

func (s *Server) Handler() http.Handler { return s.h }

func (s *Server) ListenAndServe() error {
	httpSrv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return httpSrv.ListenAndServe()
}
