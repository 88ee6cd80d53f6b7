package ws

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/workerdom/coordinator/internal/infrastructure/config"
	"github.com/workerdom/coordinator/internal/infrastructure/logging"
	"github.com/workerdom/coordinator/internal/infrastructure/monitoring"
	"github.com/workerdom/coordinator/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler accepts remote worker connections and runs a session per
// connection.
type Handler struct {
	manager *session.Manager
	cfg     config.RateLimitConfig
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewHandler creates a WebSocket handler backed by the session registry.
func NewHandler(manager *session.Manager, cfg config.RateLimitConfig, log *logging.Logger, metrics *monitoring.Metrics) *Handler {
	if log == nil {
		log = logging.NewNop()
	}
	return &Handler{
		manager: manager,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
	}
}

// HandleWorker upgrades the connection and binds a new session to it. Host
// shape comes from query parameters: height (layout units, static when
// present) and framed. The handler blocks until the worker is gone, then
// deregisters the session.
func (h *Handler) HandleWorker(c *gin.Context) {
	spec := session.HostSpec{}
	if v := c.Query("height"); v != "" {
		height, err := strconv.Atoi(v)
		if err != nil || height <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid height"})
			return
		}
		spec.StaticHeight = height
	}
	spec.Framed = c.Query("framed") == "true"
	location := c.Query("location")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	var limiter *rate.Limiter
	if h.cfg.WorkerMessagesPerSecond > 0 {
		limiter = rate.NewLimiter(
			rate.Limit(h.cfg.WorkerMessagesPerSecond),
			h.cfg.WorkerMessageBurst,
		)
	}

	w := NewWorker(conn, limiter, h.log)
	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	s, err := h.manager.StartWithWorker(w, location, spec)
	if err != nil {
		h.log.Warn("session start failed",
			zap.String("connection_id", w.ConnectionID().String()),
			zap.Error(err))
		w.Terminate()
		return
	}
	h.log.Info("remote worker connected",
		zap.String("connection_id", w.ConnectionID().String()),
		zap.String("session_id", s.ID().String()))

	<-w.Done()
	h.manager.Close(s.ID())
	h.log.Info("remote worker disconnected",
		zap.String("session_id", s.ID().String()))
}
