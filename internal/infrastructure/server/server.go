package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/workerdom/coordinator/internal/api/http"
	"github.com/workerdom/coordinator/internal/api/middleware"
	"github.com/workerdom/coordinator/internal/api/ws"
	"github.com/workerdom/coordinator/internal/infrastructure/config"
	"github.com/workerdom/coordinator/internal/infrastructure/logging"
	"github.com/workerdom/coordinator/internal/infrastructure/monitoring"
	"github.com/workerdom/coordinator/internal/session"
)

// Server wraps the HTTP server and the session registry behind it.
type Server struct {
	cfg      *config.Config
	log      *logging.Logger
	metrics  *monitoring.Metrics
	manager  *session.Manager
	router   *gin.Engine
	httpSrv  *http.Server
	stopDone chan struct{}
}

// New wires the coordinator server.
func New(cfg *config.Config) (*Server, error) {
	var log *logging.Logger
	if cfg.Logging.Development {
		log = logging.NewDevelopment()
	} else {
		log = logging.NewDefault()
	}

	log.Info("initializing coordinator",
		zap.String("port", cfg.Server.Port),
		zap.Int("max_free_height", cfg.Sync.MaxFreeHeight),
		zap.Int("max_program_size", cfg.Worker.MaxProgramSize),
	)

	metrics := monitoring.NewMetrics()
	manager := session.NewManager(*cfg,
		session.WithManagerLogger(log),
		session.WithManagerMetrics(metrics),
	)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(nil))
	if cfg.RateLimit.Enabled {
		log.Info("rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(cfg.RateLimit))
	}

	handlers := apihttp.NewHandlers(manager, log)
	wsHandler := ws.NewHandler(manager, cfg.RateLimit, log, metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	router.POST("/sessions", handlers.CreateSession)
	router.GET("/sessions", handlers.ListSessions)
	router.GET("/sessions/:id", handlers.GetSession)
	router.DELETE("/sessions/:id", handlers.CloseSession)
	router.POST("/sessions/:id/events", handlers.DispatchEvent)
	router.POST("/sessions/:id/visibility", handlers.NotifyVisibility)
	router.POST("/sessions/:id/async/begin", handlers.BeginAsync)
	router.POST("/sessions/:id/async/end", handlers.EndAsync)

	// Remote workers connect here and speak the worker protocol.
	router.GET("/worker", wsHandler.HandleWorker)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	s := &Server{
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		manager:  manager,
		router:   router,
		stopDone: make(chan struct{}),
	}
	go s.uptimeLoop()
	return s, nil
}

// Manager exposes the session registry, for tests and embedding.
func (s *Server) Manager() *session.Manager { return s.manager }

// Router exposes the gin engine, for httptest.
func (s *Server) Router() *gin.Engine { return s.router }

// Run starts serving and blocks until the listener fails or Shutdown runs.
func (s *Server) Run() error {
	addr := s.cfg.Server.Host + ":" + s.cfg.Server.Port
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("coordinator listening", zap.String("addr", addr))
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the listener and tears down all sessions.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down coordinator")
	close(s.stopDone)

	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}

	deadline := 5 * time.Second
	if d, ok := ctx.Deadline(); ok {
		if remaining := time.Until(d); remaining < deadline {
			deadline = remaining
		}
	}
	s.manager.CloseAll(deadline)

	s.log.Sync()
	return err
}

func (s *Server) uptimeLoop() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.metrics.UpdateUptime()
		case <-s.stopDone:
			return
		}
	}
}
