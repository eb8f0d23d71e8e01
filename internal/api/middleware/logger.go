package middleware

import (
	"time"

	"media-artwork/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 處理器寫入 gin.Context 的存取日誌欄位
const (
	ContextKeyTrackKey = "access.track_key"
	ContextKeyCacheHit = "access.cache_hit"
)

// Logger 存取日誌中間件，記錄每個請求的結果與藝術圖快取狀態
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		// requestid 中間件註冊在後面，只能在 Next 之後讀取
		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("request_id", requestid.Get(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.Int("response_bytes", c.Writer.Size()),
		}
		if trackKey := c.GetString(ContextKeyTrackKey); trackKey != "" {
			fields = append(fields, zap.String("track_key", trackKey))
		}
		if hit, ok := c.Get(ContextKeyCacheHit); ok {
			fields = append(fields, zap.Any("cache_hit", hit))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		switch {
		case status >= 500:
			common.LogError("藝術圖服務內部錯誤", fields...)
		case status == common.StatusClientClosedRequest:
			common.LogInfo("用戶端中斷請求", fields...)
		case status >= 400:
			common.LogWarn("請求被拒絕", fields...)
		default:
			common.LogInfo(common.AccessLogMessage, fields...)
		}
	}
}

// Recovery 捕捉處理器 panic 並返回 INTERNAL_ERROR
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				common.LogError("處理請求時發生 panic",
					zap.Any("panic", r),
					zap.String("request_id", requestid.Get(c)),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatusJSON(common.ErrInternalError.Status, common.ErrInternalError.Response(false))
			}
		}()

		c.Next()
	}
}
