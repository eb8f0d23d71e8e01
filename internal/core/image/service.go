package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"net/http"
	"strings"
	"time"

	_ "image/gif" // 支援 GIF

	"media-artwork/internal/core/artwork"
	"media-artwork/internal/infrastructure/config"
	"media-artwork/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp" // 支援 WebP
)

var (
	// ErrInvalidData 無法識別的圖片數據格式
	ErrInvalidData = errors.New("invalid image data format")
	// ErrTooLarge 圖片大小超出限制
	ErrTooLarge = errors.New("image size exceeds limit")
	// ErrUnsupportedFormat 不支援的圖片格式
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrFetch 下載失敗
	ErrFetch = errors.New("failed to download image")
)

// Decoded 解碼結果
type Decoded struct {
	Image  image.Image
	Format string
	Raw    []byte
}

// Service 圖片解碼與編碼服務
type Service struct {
	maxSizeBytes int64
	maxDimension int
	maxPixels    int64
	outputFormat string
	jpegQuality  int
	client       *resty.Client
}

// NewService 創建新的圖片處理服務
func NewService(cfg config.ImageConfig) *Service {
	timeout := cfg.DownloadTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "image/*")

	maxDimension := cfg.MaxDimension
	if maxDimension <= 0 {
		maxDimension = artwork.DefaultMaxDimension
	}
	maxPixels := cfg.MaxPixels
	if maxPixels <= 0 {
		maxPixels = artwork.DefaultMaxPixels
	}

	return &Service{
		maxSizeBytes: cfg.MaxSizeBytes,
		maxDimension: maxDimension,
		maxPixels:    maxPixels,
		outputFormat: cfg.OutputFormat,
		jpegQuality:  cfg.JPEGQuality,
		client:       client,
	}
}

// Decode 解碼 URL、data URI 或 base64 圖片
func (s *Service) Decode(ctx context.Context, imageData string) (*Decoded, error) {
	raw, err := s.load(ctx, strings.TrimSpace(imageData))
	if err != nil {
		return nil, err
	}

	// 檢查文件大小
	if s.maxSizeBytes > 0 && int64(len(raw)) > s.maxSizeBytes {
		return nil, fmt.Errorf("%w: %d bytes > %d", ErrTooLarge, len(raw), s.maxSizeBytes)
	}

	// 只讀取標頭，解碼前先檢查尺寸
	header, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if !isSupportedFormat(format) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err := s.checkDimensions(header.Width, header.Height); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	common.LogImageProcessing("debug", "圖片解碼完成",
		zap.String("format", format),
		zap.Int("bytes", len(raw)),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
	)

	return &Decoded{Image: img, Format: format, Raw: raw}, nil
}

// checkDimensions 檢查解碼後的像素尺寸
func (s *Service) checkDimensions(width, height int) error {
	if width > s.maxDimension || height > s.maxDimension {
		return fmt.Errorf("%w: %dx%d exceeds dimension limit %d", ErrTooLarge, width, height, s.maxDimension)
	}
	if pixels := int64(width) * int64(height); pixels > s.maxPixels {
		return fmt.Errorf("%w: %d pixels exceeds limit %d", ErrTooLarge, pixels, s.maxPixels)
	}
	return nil
}

// load 取得原始位元組
func (s *Service) load(ctx context.Context, imageData string) ([]byte, error) {
	switch {
	case imageData == "":
		return nil, fmt.Errorf("%w: image data is empty", ErrInvalidData)
	case strings.HasPrefix(imageData, "http://") || strings.HasPrefix(imageData, "https://"):
		return s.fetch(ctx, imageData)
	case strings.HasPrefix(imageData, "data:image/"):
		parts := strings.SplitN(imageData, ",", 2)
		if len(parts) != 2 || !strings.HasSuffix(parts[0], ";base64") {
			return nil, fmt.Errorf("%w: invalid data URI", ErrInvalidData)
		}
		return decodeBase64(parts[1])
	default:
		return decodeBase64(imageData)
	}
}

// fetch 下載圖片
func (s *Service) fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrFetch, resp.StatusCode())
	}
	return resp.Body(), nil
}

func decodeBase64(data string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return decoded, nil
}

// EncodeDataURI 依設定的輸出格式編碼為 data URI
func (s *Service) EncodeDataURI(img image.Image) (string, error) {
	var buf bytes.Buffer
	mime := "image/png"

	switch s.outputFormat {
	case "jpeg":
		mime = "image/jpeg"
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.jpegQuality}); err != nil {
			return "", fmt.Errorf("failed to encode image as JPEG: %w", err)
		}
	default:
		if err := png.Encode(&buf, img); err != nil {
			return "", fmt.Errorf("failed to encode image as PNG: %w", err)
		}
	}

	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	return fmt.Sprintf("data:%s;base64,%s", mime, encoded), nil
}

// isSupportedFormat 檢查圖片格式是否支援
func isSupportedFormat(format string) bool {
	supportedFormats := map[string]bool{
		"jpeg": true,
		"png":  true,
		"gif":  true,
		"webp": true,
	}
	return supportedFormats[format]
}
