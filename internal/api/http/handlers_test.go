package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workerdom/coordinator/internal/infrastructure/config"
	"github.com/workerdom/coordinator/internal/session"
)

func newTestRouter(t *testing.T) (*gin.Engine, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager := session.NewManager(*config.Default())
	t.Cleanup(func() { manager.CloseAll(time.Second) })
	handlers := NewHandlers(manager, nil)

	router := gin.New()
	router.GET("/health", handlers.Health)
	router.POST("/sessions", handlers.CreateSession)
	router.GET("/sessions", handlers.ListSessions)
	router.GET("/sessions/:id", handlers.GetSession)
	router.DELETE("/sessions/:id", handlers.CloseSession)
	router.POST("/sessions/:id/events", handlers.DispatchEvent)
	return router, manager
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := do(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestCreateSession(t *testing.T) {
	router, manager := newTestRouter(t)

	body := `{"program":"document.body.appendChild(document.createElement(\"div\"));","height":200}`
	rec := do(router, http.MethodPost, "/sessions", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.SessionID, "sess_"))
	assert.Equal(t, 1, manager.Count())
}

func TestCreateSessionValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(router, http.MethodPost, "/sessions", `{"location":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	oversized := `{"program":"` + strings.Repeat("x", 150001) + `"}`
	rec = do(router, http.MethodPost, "/sessions", oversized)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSessionNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/sessions/sess_missing", "").Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodDelete, "/sessions/sess_missing", "").Code)
	assert.Equal(t, http.StatusNotFound,
		do(router, http.MethodPost, "/sessions/sess_missing/events", `{"type":"click","target":"root"}`).Code)
}

func TestSessionLifecycleOverAPI(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"program":"var p=document.createElement(\"p\");p.setText(\"hi\");document.body.appendChild(p);","height":100}`
	rec := do(router, http.MethodPost, "/sessions", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &created))

	// Hydration is asynchronous; poll until the content appears.
	require.Eventually(t, func() bool {
		get := do(router, http.MethodGet, "/sessions/"+created.SessionID, "")
		return get.Code == http.StatusOK && strings.Contains(get.Body.String(), "hi")
	}, 5*time.Second, 20*time.Millisecond)

	rec = do(router, http.MethodDelete, "/sessions/"+created.SessionID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/sessions/"+created.SessionID, "").Code)
}

func TestDispatchEventValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	body := `{"program":"document.body.appendChild(document.createElement(\"div\"));","height":100}`
	rec := do(router, http.MethodPost, "/sessions", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		SessionID string `json:"session_id"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &created))

	rec = do(router, http.MethodPost, "/sessions/"+created.SessionID+"/events", `{"type":"click"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPost, "/sessions/"+created.SessionID+"/events",
		`{"type":"click","target":"root"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
