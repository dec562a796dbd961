package http

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ragchat/backend/internal/infrastructure/config"
	"github.com/ragchat/backend/internal/interfaces/http/handler"
	"github.com/ragchat/backend/internal/interfaces/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRouter_HealthAndMCP(t *testing.T) {
	var mcpHits int
	mcpHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mcpHits++
		w.WriteHeader(http.StatusOK)
	})

	router := newRouter(
		handler.NewDocumentHandler(nil, nil, &config.IngestConfig{UploadDir: t.TempDir()}),
		handler.NewSearchHandler(nil),
		handler.NewChatHandler(nil),
		mcpHandler,
	)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/mcp/sse", nil))
	assert.Equal(t, 1, mcpHits)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_ValidationBeforeServices(t *testing.T) {
	router := newRouter(
		handler.NewDocumentHandler(nil, nil, &config.IngestConfig{UploadDir: t.TempDir()}),
		handler.NewSearchHandler(nil),
		handler.NewChatHandler(nil),
		nil,
	)

	paths := []string{"/api/v1/documents", "/api/v1/search", "/api/v1/chat/stream"}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHTTPServer_StartAndStop(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := NewServer(
		&config.ServerConfig{HTTPPort: listener.Addr().String(), ShutdownTimeout: time.Second},
		handler.NewDocumentHandler(nil, nil, &config.IngestConfig{UploadDir: t.TempDir()}),
		handler.NewSearchHandler(nil),
		handler.NewChatHandler(nil),
		mcp.NewServer(nil, nil, nil),
	)

	done := make(chan error, 1)
	go func() { done <- server.Start(listener) }()

	resp, err := http.Get("http://" + listener.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, server.Stop())
	assert.NoError(t, <-done)
}
