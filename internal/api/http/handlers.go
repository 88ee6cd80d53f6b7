package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/workerdom/coordinator/internal/infrastructure/logging"
	"github.com/workerdom/coordinator/internal/session"
	"github.com/workerdom/coordinator/internal/shared/id"
	"github.com/workerdom/coordinator/internal/worker"
)

// Handlers serves the coordinator REST API.
type Handlers struct {
	manager   *session.Manager
	log       *logging.Logger
	startTime time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(manager *session.Manager, log *logging.Logger) *Handlers {
	if log == nil {
		log = logging.NewNop()
	}
	return &Handlers{
		manager:   manager,
		log:       log,
		startTime: time.Now(),
	}
}

// Root returns service information.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "workerdom-coordinator",
		"status":  "running",
	})
}

// Health returns liveness information.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"sessions":       h.manager.Count(),
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	})
}

// CreateSessionRequest starts an in-process worker session.
type CreateSessionRequest struct {
	// Program is the author JavaScript executed by the worker.
	Program  string `json:"program" binding:"required"`
	Location string `json:"location"`
	// Height marks the host statically sized, in layout units.
	Height int  `json:"height"`
	Framed bool `json:"framed"`
}

// CreateSession starts a session around an in-process worker.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.manager.StartInProcess(req.Program, req.Location, session.HostSpec{
		StaticHeight: req.Height,
		Framed:       req.Framed,
	})
	if err != nil {
		if errors.Is(err, worker.ErrProgramTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "program exceeds maximum size"})
			return
		}
		h.log.Error("session start failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session_id": s.ID().String()})
}

// ListSessions returns the identifiers of all live sessions.
func (h *Handlers) ListSessions(c *gin.Context) {
	ids := h.manager.List()
	out := make([]string, len(ids))
	for i, sid := range ids {
		out[i] = sid.String()
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": out,
		"count":    len(out),
	})
}

// GetSession returns the state and rendered content of one session.
func (h *Handlers) GetSession(c *gin.Context) {
	s, ok := h.manager.Get(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	content, err := s.Snapshot()
	if err != nil {
		if errors.Is(err, session.ErrClosed) {
			c.JSON(http.StatusGone, gin.H{"error": "session closed"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "render failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": s.ID().String(),
		"host_state": s.Host().State().String(),
		"content":    content,
	})
}

// CloseSession shuts one session down.
func (h *Handlers) CloseSession(c *gin.Context) {
	if !h.manager.Close(id.SessionID(c.Param("id"))) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": true})
}

// DispatchEvent injects one interaction event into a session.
func (h *Handlers) DispatchEvent(c *gin.Context) {
	s, ok := h.manager.Get(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	var ev session.RemoteEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if ev.Type == "" || ev.TargetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type and target are required"})
		return
	}

	s.DispatchRemote(ev)
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// NotifyVisibility tells a session that viewport visibility changed, giving
// deferred records another chance to apply.
func (h *Handlers) NotifyVisibility(c *gin.Context) {
	s, ok := h.manager.Get(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	s.NotifyVisibilityChange()
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// BeginAsync extends a session's gesture window for an outstanding
// gesture-triggered operation.
func (h *Handlers) BeginAsync(c *gin.Context) {
	s, ok := h.manager.Get(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	s.BeginAsyncOperation()
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// EndAsync retires one outstanding async operation.
func (h *Handlers) EndAsync(c *gin.Context) {
	s, ok := h.manager.Get(id.SessionID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	s.EndAsyncOperation()
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}
