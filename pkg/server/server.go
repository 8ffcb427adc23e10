package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/bastiangx/nextword/internal/observe"
	"github.com/bastiangx/nextword/pkg/config"
	"github.com/bastiangx/nextword/pkg/model"
	"github.com/bastiangx/nextword/pkg/suggest"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNoReloader is returned by Reload when the server was built without a model source.
var ErrNoReloader = errors.New("no model source configured")

// Reloader produces a fresh model, typically by loading it from a store.
type Reloader func(ctx context.Context) (*model.Model, error)

// Option configures a Server.
type Option func(*Server)

// WithReloader sets the model source used by reload requests and scheduled reloads.
func WithReloader(r Reloader) Option {
	return func(s *Server) { s.reload = r }
}

// WithEngineOptions sets the options every engine built by the server receives.
func WithEngineOptions(opts ...suggest.Option) Option {
	return func(s *Server) { s.engineOpts = append(s.engineOpts, opts...) }
}

// WithMetrics records reloads on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger replaces the server logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.log = l }
}

// Server answers prediction requests over stdio and websockets. The engine is
// swapped atomically on reload, so in-flight requests finish on the model they
// started with.
type Server struct {
	engine     atomic.Pointer[suggest.Engine]
	cfg        *config.Config
	reload     Reloader
	reloadMu   sync.Mutex
	engineOpts []suggest.Option
	metrics    *observe.Metrics
	log        *log.Logger
	requests   atomic.Int64
}

// NewServer creates a server answering from m. A nil m leaves the server unready
// until the first successful Reload.
func NewServer(m *model.Model, cfg *config.Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{cfg: cfg, log: log.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if m != nil {
		s.engine.Store(suggest.NewEngine(m, s.engineOpts...))
	}
	return s
}

// Engine returns the current engine, nil before a model is loaded.
func (s *Server) Engine() *suggest.Engine {
	return s.engine.Load()
}

// Ready reports whether a model is loaded.
func (s *Server) Ready() bool {
	return s.engine.Load() != nil
}

// Reload builds a new engine from the reloader and swaps it in. On failure the
// current engine keeps serving.
func (s *Server) Reload(ctx context.Context) (err error) {
	defer func() { s.metrics.RecordReload(ctx, err) }()
	if s.reload == nil {
		return ErrNoReloader
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	m, err := s.reload(ctx)
	if err != nil {
		s.log.Errorf("Model reload failed: %v", err)
		return fmt.Errorf("reload: %w", err)
	}
	s.engine.Store(suggest.NewEngine(m, s.engineOpts...))
	s.log.Infof("Model reloaded in %v: %s", time.Since(start).Round(time.Millisecond), m.Stats())
	return nil
}

// Serve reads msgpack requests from r until EOF or ctx is done, writing one
// response per request to w.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.log.Debug("Starting Server.")
	dec := msgpack.NewDecoder(bufio.NewReader(r))
	bw := bufio.NewWriter(w)
	enc := msgpack.NewEncoder(bw)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		raw, err := dec.DecodeRaw()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Debug("Client disconnected (EOF)")
				return nil
			}
			s.log.Errorf("Reading request: %v", err)
			return fmt.Errorf("reading request: %w", err)
		}

		if err := enc.Encode(s.Handle(ctx, raw)); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}
}

// Handle answers one msgpack-encoded message and returns the response value.
func (s *Server) Handle(ctx context.Context, raw []byte) any {
	s.requests.Add(1)

	var env envelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		s.log.Debugf("Unmarshaling request: %v", err)
		return PredictionError{Error: "invalid msgpack request", Code: http.StatusBadRequest}
	}
	if env.Action != "" {
		return s.handleModel(ctx, ModelRequest{ID: env.ID, Action: env.Action})
	}
	return s.handlePredict(PredictionRequest{
		ID:      env.ID,
		Context: env.Context,
		Prefix:  env.Prefix,
		Limit:   env.Limit,
	})
}

func (s *Server) handlePredict(req PredictionRequest) any {
	engine := s.engine.Load()
	if engine == nil {
		return PredictionError{ID: req.ID, Error: "model not loaded", Code: http.StatusServiceUnavailable}
	}

	query, perr := s.validate(req)
	if perr != nil {
		s.log.Debugf("Rejected request %s: %s", req.ID, perr.Error)
		return *perr
	}

	start := time.Now()
	suggestions := engine.Predict(query)
	elapsed := time.Since(start)

	return PredictionResponse{
		ID:          req.ID,
		Suggestions: suggestions,
		Count:       len(suggestions),
		Mode:        suggest.ModeOf(query).String(),
		TimeTaken:   elapsed.Microseconds(),
	}
}

// validate checks a request against the server limits and fills in the default limit.
func (s *Server) validate(req PredictionRequest) (suggest.Request, *PredictionError) {
	limits := s.cfg.Server
	fail := func(format string, args ...any) (suggest.Request, *PredictionError) {
		return suggest.Request{}, &PredictionError{
			ID:    req.ID,
			Error: fmt.Sprintf(format, args...),
			Code:  http.StatusBadRequest,
		}
	}

	n := utf8.RuneCountInString(req.Prefix)
	if n > limits.MaxPrefix {
		return fail("prefix exceeds maximum length of %d characters", limits.MaxPrefix)
	}
	if n > 0 && n < limits.MinPrefix {
		return fail("prefix must be at least %d characters", limits.MinPrefix)
	}
	if len(req.Context) > limits.MaxContext {
		return fail("context exceeds maximum of %d words", limits.MaxContext)
	}

	limit := req.Limit
	if limit < 1 {
		limit = s.cfg.CLI.DefaultLimit
	}
	if limit > limits.MaxLimit {
		limit = limits.MaxLimit
	}
	return suggest.Request{Context: req.Context, Prefix: req.Prefix, Limit: limit}, nil
}

func (s *Server) handleModel(ctx context.Context, req ModelRequest) any {
	switch req.Action {
	case ActionInfo:
		engine := s.engine.Load()
		if engine == nil {
			return ModelResponse{ID: req.ID, Status: "error", Error: "model not loaded"}
		}
		stats := engine.Stats()
		stats["requests"] = int(s.requests.Load())
		return ModelResponse{ID: req.ID, Status: "ok", Stats: stats}
	case ActionReload:
		if err := s.Reload(ctx); err != nil {
			return ModelResponse{ID: req.ID, Status: "error", Error: err.Error()}
		}
		return ModelResponse{ID: req.ID, Status: "ok", Stats: s.engine.Load().Stats()}
	default:
		return PredictionError{
			ID:    req.ID,
			Error: fmt.Sprintf("unknown action: %s", req.Action),
			Code:  http.StatusBadRequest,
		}
	}
}
