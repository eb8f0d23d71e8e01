package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	artworkHandler "media-artwork/internal/api/handlers/artwork"
	"media-artwork/internal/core/artwork"
	"media-artwork/internal/core/display"
	imageService "media-artwork/internal/core/image"
	"media-artwork/internal/core/media"
	"media-artwork/internal/infrastructure/config"
	"media-artwork/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *config.Config {
	return &config.Config{
		App:     config.AppConfig{Debug: true, Version: "test"},
		Server:  config.ServerConfig{Port: 8080, RequestTimeout: 5 * time.Second, MaxBodySize: 1 << 20},
		Display: config.DisplayConfig{Width: 1080, Height: 2280},
		Image: config.ImageConfig{
			MaxSizeBytes:    1 << 20,
			DownloadTimeout: time.Second,
			OutputFormat:    "png",
			JPEGQuality:     85,
		},
		Session: config.SessionConfig{QueueSize: 4},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config) (*gin.Engine, *media.Session) {
	t.Helper()

	provider, err := display.FromConfig(cfg)
	require.NoError(t, err)

	processor := artwork.NewProcessor(artwork.WithLogger(zap.NewNop()))
	session := media.NewSession(processor, cfg.Session.QueueSize, zap.NewNop())
	t.Cleanup(session.Close)

	router, err := SetupRouter(cfg, Dependencies{
		Session: session,
		Images:  imageService.NewService(cfg.Image),
		Display: provider,
	})
	require.NoError(t, err)
	gin.SetMode(gin.TestMode)
	return router, session
}

func encodedPNG(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func doJSON(router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) common.ErrorResponse {
	t.Helper()
	var resp common.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSetupRouterRequiresDependencies(t *testing.T) {
	_, err := SetupRouter(testConfig(), Dependencies{})
	require.Error(t, err)
}

func TestProcessArtwork(t *testing.T) {
	router, session := newTestRouter(t, testConfig())
	body := map[string]interface{}{
		"image":   encodedPNG(t, 300, 200),
		"display": map[string]int{"width": 100, "height": 100},
	}

	w := doJSON(router, http.MethodPost, "/api/v1/artwork", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var first artworkHandler.ProcessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	require.Equal(t, 100, first.Width)
	require.Equal(t, 66, first.Height)
	require.False(t, first.CacheHit)
	require.Equal(t, "gray8", first.Format)
	require.True(t, strings.HasPrefix(first.Image, "data:image/png;base64,"))
	require.Len(t, first.TrackKey, 64)

	// 同一張圖片命中快取
	w = doJSON(router, http.MethodPost, "/api/v1/artwork", body)
	require.Equal(t, http.StatusOK, w.Code)
	var second artworkHandler.ProcessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	require.True(t, second.CacheHit)
	require.Equal(t, first.TrackKey, second.TrackKey)
	require.Equal(t, first.Image, second.Image)

	status := session.Status()
	require.Equal(t, int64(1), status.Hits)
	require.Equal(t, int64(1), status.Misses)
}

func TestProcessArtworkUsesCurrentDisplay(t *testing.T) {
	router, _ := newTestRouter(t, testConfig())

	w := doJSON(router, http.MethodPost, "/api/v1/artwork", map[string]string{
		"image":    encodedPNG(t, 300, 300),
		"track_id": "track-1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp artworkHandler.ProcessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1080, resp.Width)
	require.Equal(t, 1080, resp.Height)
	require.Equal(t, "track-1", resp.TrackKey)
	require.Equal(t, artwork.Dimensions{Width: 1080, Height: 2280}, resp.Display)
}

func TestProcessArtworkInvalidGeometry(t *testing.T) {
	router, session := newTestRouter(t, testConfig())

	w := doJSON(router, http.MethodPost, "/api/v1/artwork", map[string]interface{}{
		"image":    encodedPNG(t, 10, 10),
		"track_id": "track-1",
		"display":  map[string]int{"width": 1080, "height": 0},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeError(t, w)
	require.Equal(t, "INVALID_GEOMETRY", resp.Code)
	require.NotEmpty(t, resp.Details)
	require.False(t, session.Status().Cached)
}

func TestProcessArtworkBadRequests(t *testing.T) {
	router, _ := newTestRouter(t, testConfig())

	tests := []struct {
		name   string
		body   interface{}
		status int
		code   string
	}{
		{"malformed json", `{"image":`, http.StatusBadRequest, common.ErrCodeInvalidRequest},
		{"missing image", map[string]string{"track_id": "x"}, http.StatusBadRequest, common.ErrCodeInvalidRequest},
		{"invalid base64", map[string]string{"image": "%%%"}, http.StatusBadRequest, "INVALID_IMAGE_FORMAT"},
		{"not an image", map[string]string{"image": base64.StdEncoding.EncodeToString([]byte("hello"))}, http.StatusBadRequest, "INVALID_IMAGE_TYPE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, http.MethodPost, "/api/v1/artwork", tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			require.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestProcessArtworkClientCanceled(t *testing.T) {
	router, session := newTestRouter(t, testConfig())

	data, err := json.Marshal(map[string]string{"image": encodedPNG(t, 20, 20)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/artwork", bytes.NewReader(data)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, common.StatusClientClosedRequest, w.Code)
	require.Equal(t, "CLIENT_CLOSED_REQUEST", decodeError(t, w).Code)
	require.Zero(t, session.Status().Processed)
}

func TestClearCache(t *testing.T) {
	router, session := newTestRouter(t, testConfig())

	w := doJSON(router, http.MethodPost, "/api/v1/artwork", map[string]interface{}{
		"image":   encodedPNG(t, 20, 20),
		"display": map[string]int{"width": 100, "height": 100},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, session.Status().Cached)

	w = doJSON(router, http.MethodDelete, "/api/v1/artwork/cache", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, session.Status().Cached)

	// 再次清除不會出錯
	w = doJSON(router, http.MethodDelete, "/api/v1/artwork/cache", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestDisplayEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, testConfig())

	w := doJSON(router, http.MethodGet, "/api/v1/display", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp artworkHandler.DisplayResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, artwork.Dimensions{Width: 1080, Height: 2280}, resp.Display)
	require.Equal(t, 1080, resp.Bound)
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, testConfig())

	for _, path := range []string{"/health", "/ready", "/live"} {
		w := doJSON(router, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
	}

	w := doJSON(router, http.MethodGet, "/health", nil)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "test", resp["version"])
	require.Contains(t, resp, "session")
}

func TestRateLimitAndBodySize(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, Requests: 2, Window: time.Hour}
	cfg.Server.MaxBodySize = 64
	router, _ := newTestRouter(t, cfg)

	w := doJSON(router, http.MethodPost, "/api/v1/artwork", map[string]string{"image": strings.Repeat("A", 128)})
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	require.Equal(t, "PAYLOAD_TOO_LARGE", decodeError(t, w).Code)

	// 請求體限制先於限流，被拒絕的請求不消耗令牌
	for i := 0; i < 2; i++ {
		w = doJSON(router, http.MethodGet, "/live", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w = doJSON(router, http.MethodGet, "/live", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotEmpty(t, w.Header().Get("Retry-After"))
}
