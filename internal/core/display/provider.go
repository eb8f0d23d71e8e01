package display

import (
	"context"
	"fmt"

	"media-artwork/internal/core/artwork"
	"media-artwork/internal/infrastructure/config"
)

// Provider 提供目前螢幕的像素尺寸
type Provider interface {
	DisplaySize(ctx context.Context) (artwork.Dimensions, error)
}

// Static 固定尺寸的螢幕
type Static struct {
	size artwork.Dimensions
}

// NewStatic 創建固定尺寸的螢幕
func NewStatic(width, height int) (*Static, error) {
	size := artwork.Dimensions{Width: width, Height: height}
	if size.Empty() {
		return nil, fmt.Errorf("invalid display size %s", size)
	}
	return &Static{size: size}, nil
}

// FromConfig 根據設定創建螢幕
func FromConfig(cfg *config.Config) (*Static, error) {
	return NewStatic(cfg.Display.Width, cfg.Display.Height)
}

// DisplaySize 實現 Provider 介面
func (s *Static) DisplaySize(ctx context.Context) (artwork.Dimensions, error) {
	return s.size, nil
}
