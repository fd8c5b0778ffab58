package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Server exposes /metrics and /healthz. It is a lifecycle component.
type Server struct {
	addr   string
	srv    *http.Server
	mu     sync.Mutex
	wg     sync.WaitGroup
	listen net.Listener
}

func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", HealthHandler)
	return &Server{
		addr: addr,
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listen != nil {
		return nil
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	s.listen = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithField("object", "MetricsServer").WithField("error", err.Error()).Error("metrics server failed")
		}
	}()
	log.WithField("object", "MetricsServer").WithField("addr", ln.Addr().String()).Info("metrics server started")
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listen == nil {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	s.wg.Wait()
	s.listen = nil
	return err
}

// Addr is empty until Start succeeds.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listen == nil {
		return ""
	}
	return s.listen.Addr().String()
}

type healthStatus struct {
	Status               string  `json:"status"`
	LastUpdate           string  `json:"last_update,omitempty"`
	LastUpdateAgeSeconds float64 `json:"last_update_age_seconds"`
}

func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	status := healthStatus{Status: "ok", LastUpdateAgeSeconds: -1}
	if last := LastUpdate(); !last.IsZero() {
		status.LastUpdate = last.UTC().Format(time.RFC3339)
		status.LastUpdateAgeSeconds = time.Since(last).Seconds()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}
