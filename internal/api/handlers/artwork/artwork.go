package artwork

import (
	"context"
	"errors"
	"net/http"

	"media-artwork/internal/api/middleware"
	"media-artwork/internal/core/artwork"
	"media-artwork/internal/core/display"
	imageService "media-artwork/internal/core/image"
	"media-artwork/internal/core/media"
	"media-artwork/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProcessRequest 藝術圖處理請求
// image: base64、data URI 或 URL
// track_id: 可選，未提供時以圖片內容雜湊代替
// display: 可選，未提供時使用目前螢幕尺寸
type ProcessRequest struct {
	Image   string              `json:"image" binding:"required"`
	TrackID string              `json:"track_id,omitempty"`
	Display *artwork.Dimensions `json:"display,omitempty"`
}

// ProcessResponse 藝術圖處理回應
type ProcessResponse struct {
	Image    string             `json:"image"`
	Width    int                `json:"width"`
	Height   int                `json:"height"`
	Format   string             `json:"format"`
	CacheHit bool               `json:"cache_hit"`
	TrackKey string             `json:"track_key"`
	Display  artwork.Dimensions `json:"display"`
}

// DisplayResponse 螢幕資訊
type DisplayResponse struct {
	Display artwork.Dimensions `json:"display"`
	Bound   int                `json:"bound"`
}

// Handler 藝術圖 API 處理器
type Handler struct {
	session *media.Session
	images  *imageService.Service
	display display.Provider
	debug   bool
}

// NewHandler 創建藝術圖處理器
func NewHandler(session *media.Session, images *imageService.Service, provider display.Provider, debug bool) *Handler {
	return &Handler{
		session: session,
		images:  images,
		display: provider,
		debug:   debug,
	}
}

// HandleProcess 處理 POST /artwork
func (h *Handler) HandleProcess(c *gin.Context) {
	requestID := requestid.Get(c)
	if requestID == "" {
		requestID = common.GenerateUUID()
		c.Header("X-Request-ID", requestID)
	}

	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.LogWarn("請求格式無效",
			zap.Error(err),
			zap.String("request_id", requestID),
		)
		h.fail(c, common.ErrInvalidRequest.WithErr(err))
		return
	}

	ctx := c.Request.Context()
	size, err := h.resolveDisplay(ctx, req.Display)
	if err != nil {
		h.fail(c, common.ErrInvalidRequest.WithErr(err))
		return
	}

	decoded, err := h.images.Decode(ctx, req.Image)
	if err != nil {
		common.LogImageProcessing("warn", "圖片解碼失敗",
			zap.Error(err),
			zap.String("request_id", requestID),
			zap.Int("image_length", len(req.Image)),
		)
		h.fail(c, mapDecodeError(err))
		return
	}

	trackKey := req.TrackID
	if trackKey == "" {
		trackKey = common.HashBytes(decoded.Raw)
	}
	c.Set(middleware.ContextKeyTrackKey, trackKey)

	var resp ProcessResponse
	err = h.session.Process(ctx, trackKey, size, artwork.FromImage(decoded.Image), func(bitmap *artwork.Bitmap, cacheHit bool) error {
		uri, err := h.images.EncodeDataURI(bitmap.Image())
		if err != nil {
			return err
		}
		resp = ProcessResponse{
			Image:    uri,
			Width:    bitmap.Width(),
			Height:   bitmap.Height(),
			Format:   bitmap.Format().String(),
			CacheHit: cacheHit,
			TrackKey: trackKey,
			Display:  size,
		}
		return nil
	})
	if err != nil {
		apiErr := mapSessionError(err)
		fields := []zap.Field{
			zap.Error(err),
			zap.String("request_id", requestID),
			zap.String("track_key", trackKey),
			zap.Stringer("display", size),
		}
		if apiErr.Status >= http.StatusInternalServerError {
			common.LogError("藝術圖處理失敗", fields...)
		} else {
			common.LogWarn("藝術圖請求未完成", fields...)
		}
		h.fail(c, apiErr)
		return
	}

	c.Set(middleware.ContextKeyCacheHit, resp.CacheHit)
	common.LogInfo("藝術圖處理完成",
		zap.String("request_id", requestID),
		zap.String("track_key", trackKey),
		zap.Bool("cache_hit", resp.CacheHit),
		zap.Int("width", resp.Width),
		zap.Int("height", resp.Height),
	)
	c.JSON(http.StatusOK, resp)
}

// HandleClear 處理 DELETE /artwork/cache
func (h *Handler) HandleClear(c *gin.Context) {
	if err := h.session.Clear(c.Request.Context()); err != nil {
		h.fail(c, mapSessionError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// HandleDisplay 處理 GET /display
func (h *Handler) HandleDisplay(c *gin.Context) {
	size, err := h.display.DisplaySize(c.Request.Context())
	if err != nil {
		h.fail(c, common.ErrServiceUnavailable.WithErr(err))
		return
	}
	bound, err := artwork.DownsampleBound(size)
	if err != nil {
		h.fail(c, common.ErrInvalidGeometry.WithErr(err))
		return
	}
	c.JSON(http.StatusOK, DisplayResponse{Display: size, Bound: bound})
}

// resolveDisplay 請求未指定時使用目前螢幕尺寸
func (h *Handler) resolveDisplay(ctx context.Context, override *artwork.Dimensions) (artwork.Dimensions, error) {
	if override != nil {
		return *override, nil
	}
	return h.display.DisplaySize(ctx)
}

func (h *Handler) fail(c *gin.Context, err *common.CustomError) {
	c.AbortWithStatusJSON(err.Status, err.Response(h.debug))
}

// mapDecodeError 將解碼錯誤轉為 API 錯誤
func mapDecodeError(err error) *common.CustomError {
	switch {
	case errors.Is(err, imageService.ErrTooLarge):
		return common.ErrInvalidImageSize.WithErr(err)
	case errors.Is(err, imageService.ErrUnsupportedFormat):
		return common.ErrInvalidImageType.WithErr(err)
	case errors.Is(err, imageService.ErrFetch):
		return common.ErrImageFetchFailed.WithErr(err)
	default:
		return common.ErrInvalidImageFormat.WithErr(err)
	}
}

// mapSessionError 將工作階段錯誤轉為 API 錯誤
func mapSessionError(err error) *common.CustomError {
	switch {
	case errors.Is(err, media.ErrNoArtwork):
		return common.ErrInvalidGeometry.WithErr(err)
	case errors.Is(err, media.ErrQueueFull):
		return common.ErrQueueFull.WithErr(err)
	case errors.Is(err, media.ErrSessionClosed):
		return common.ErrSessionClosed.WithErr(err)
	case errors.Is(err, context.DeadlineExceeded):
		return common.ErrRequestTimeout.WithErr(err)
	case errors.Is(err, context.Canceled):
		return common.ErrClientClosed.WithErr(err)
	default:
		return common.ErrInternalError.WithErr(err)
	}
}
