package middleware

import (
	"net/http"

	"media-artwork/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BodySizeLimit 拒絕宣告長度超限的請求，並限制實際讀取的位元組數
func BodySizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			common.LogWarn("藝術圖請求體過大",
				zap.Int64("content_length", c.Request.ContentLength),
				zap.Int64("max_body_size", maxSize),
				zap.String("ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(common.ErrPayloadTooLarge.Status, common.ErrPayloadTooLarge.Response(false))
			return
		}

		// 未宣告長度（chunked）時由 MaxBytesReader 截斷
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		}
		c.Next()
	}
}
