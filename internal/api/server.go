package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/overlay-core/internal/audit"
	"github.com/nerrad567/overlay-core/internal/auth"
	"github.com/nerrad567/overlay-core/internal/director"
	"github.com/nerrad567/overlay-core/internal/infrastructure/config"
	"github.com/nerrad567/overlay-core/internal/infrastructure/logging"
	"github.com/nerrad567/overlay-core/internal/obs"
	"github.com/nerrad567/overlay-core/internal/timeline"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// SceneInspector reads from OBS for the operator screens.
type SceneInspector interface {
	Scenes(ctx context.Context) ([]obs.Scene, error)
	Screenshot(ctx context.Context, source string, width int) ([]byte, error)
}

// SceneResolver names the OBS scene a run is shown on.
type SceneResolver interface {
	SceneFor(run *timeline.Run) string
}

// HealthChecker is a component reported on GET /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Director  *director.Director
	Operators auth.OperatorRepository
	Audit     audit.Repository

	// Optional.
	AuditWriter *audit.Writer
	OBS         SceneInspector
	Scenes      SceneResolver
	Health      map[string]HealthChecker

	// Hub, if set, is used instead of a hub of the server's own. The
	// director must already publish to it.
	Hub     *Hub
	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	director    *director.Director
	operators   auth.OperatorRepository
	auditRepo   audit.Repository
	auditWriter *audit.Writer
	obs         SceneInspector
	scenes      SceneResolver
	health      map[string]HealthChecker
	version     string

	startTime   time.Time
	server      *http.Server
	hub         *Hub
	externalHub bool
	tickets     *ticketStore
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies. The server is
// not started until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Director == nil {
		return nil, fmt.Errorf("director is required")
	}
	if deps.Operators == nil {
		return nil, fmt.Errorf("operator repository is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		logger:      deps.Logger,
		director:    deps.Director,
		operators:   deps.Operators,
		auditRepo:   deps.Audit,
		auditWriter: deps.AuditWriter,
		obs:         deps.OBS,
		scenes:      deps.Scenes,
		health:      deps.Health,
		version:     deps.Version,
		tickets:     newTicketStore(),
		startTime:   time.Now(),
	}

	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(s.wsCfg, s.logger)
		s.director.AddPublisher(s.hub)
	}
	s.hub.SetSnapshot(s.snapshot)

	return s, nil
}

// snapshot greets a new "event:{name}" subscriber with the event's state.
func (s *Server) snapshot(ctx context.Context, channel string) any {
	name, ok := strings.CutPrefix(channel, EventChannel(""))
	if !ok || name == "" {
		return nil
	}
	t, err := s.director.State(ctx, name)
	if err != nil {
		return nil
	}
	return newOutcomeView(&director.Outcome{Transition: t})
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed HTTP handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}
	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds for
// in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
