package artwork

import (
	"errors"
	"fmt"
	"image"
	"sync/atomic"
)

const (
	// DefaultMaxDimension 單邊最大像素
	DefaultMaxDimension = 16384
	// DefaultMaxPixels 總像素上限（約 64MP，RGBA 緩衝約 256MB）
	DefaultMaxPixels int64 = 64 * 1024 * 1024
)

var (
	// ErrInvalidGeometry 寬高、矩形或縮放目標不合法
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrImageTooLarge 超出配置上限
	ErrImageTooLarge = errors.New("image too large")
)

// Allocator 分配像素緩衝
type Allocator interface {
	Allocate(width, height int, format Format) (*Bitmap, error)
}

// HeapAllocator 在 Go heap 上分配並統計存活數量
type HeapAllocator struct {
	MaxDimension int
	MaxPixels    int64

	allocated atomic.Int64
	released  atomic.Int64
}

// NewHeapAllocator 創建分配器，非正數上限使用預設值
func NewHeapAllocator(maxDimension int, maxPixels int64) *HeapAllocator {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &HeapAllocator{
		MaxDimension: maxDimension,
		MaxPixels:    maxPixels,
	}
}

// Allocate 實現 Allocator 介面
func (a *HeapAllocator) Allocate(width, height int, format Format) (*Bitmap, error) {
	if err := a.validate(width, height); err != nil {
		return nil, err
	}

	a.allocated.Add(1)
	return &Bitmap{
		img:    newImage(image.Rect(0, 0, width, height), format),
		format: format.OrDefault(),
		release: func(*Bitmap) {
			a.released.Add(1)
		},
	}, nil
}

func (a *HeapAllocator) validate(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: width and height must be > 0 (%d x %d)", ErrInvalidGeometry, width, height)
	}
	if a.MaxDimension > 0 && (width > a.MaxDimension || height > a.MaxDimension) {
		return fmt.Errorf("%w: dimension exceeds limit %d (%d x %d)", ErrImageTooLarge, a.MaxDimension, width, height)
	}
	pixels := int64(width) * int64(height)
	if a.MaxPixels > 0 && pixels > a.MaxPixels {
		return fmt.Errorf("%w: pixel count %d exceeds limit %d", ErrImageTooLarge, pixels, a.MaxPixels)
	}
	return nil
}

// Live 尚未回收的 Bitmap 數量
func (a *HeapAllocator) Live() int64 {
	return a.allocated.Load() - a.released.Load()
}

// Allocated 累計分配次數
func (a *HeapAllocator) Allocated() int64 {
	return a.allocated.Load()
}
