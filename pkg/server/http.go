package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	maxFrameBytes   = 64 << 10
	shutdownTimeout = 5 * time.Second
)

// healthResult is the JSON body of the health endpoints.
type healthResult struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler returns the HTTP routes: /ws, /healthz, /readyz and /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("GET /readyz", s.readyz)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// ListenAndServe serves Handler on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Infof("Listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// ScheduleReload reloads the model on a standard five-field cron schedule. The
// returned stop function waits for a running reload to finish.
func (s *Server) ScheduleReload(spec string) (stop func(), err error) {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if err := s.Reload(context.Background()); err != nil {
			s.log.Warnf("Scheduled reload failed: %v", err)
		}
	}); err != nil {
		return nil, err
	}
	c.Start()
	s.log.Debugf("Scheduled model reload %q", spec)
	return func() { <-c.Stop().Done() }, nil
}

// handleWebsocket answers each binary msgpack frame with one binary frame.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warnf("Websocket accept failed: %v", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxFrameBytes)

	ctx := r.Context()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				s.log.Debugf("Websocket read: %v", err)
			}
			return
		}

		var resp any
		if typ != websocket.MessageBinary {
			resp = PredictionError{Error: "expected a binary msgpack frame", Code: http.StatusBadRequest}
		} else {
			resp = s.Handle(ctx, data)
		}

		out, err := msgpack.Marshal(resp)
		if err != nil {
			conn.Close(websocket.StatusInternalError, "encoding response failed")
			return
		}
		if err := conn.Write(ctx, websocket.MessageBinary, out); err != nil {
			s.log.Debugf("Websocket write: %v", err)
			return
		}
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResult{Status: "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if !s.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, healthResult{
			Status: "fail",
			Checks: map[string]string{"model": "fail: not loaded"},
		})
		return
	}
	writeJSON(w, http.StatusOK, healthResult{Status: "ok", Checks: map[string]string{"model": "ok"}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
