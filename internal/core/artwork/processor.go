package artwork

import (
	"errors"
	"fmt"

	"media-artwork/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

// Tag 日誌標籤
const Tag = "MediaArtworkProcessor"

// Processor 將藝術圖縮放到螢幕尺寸，並只快取最近一次的結果。
//
// Processor 不是並發安全的，呼叫端需自行序列化 ProcessArtwork 與 ClearCache。
type Processor struct {
	allocator Allocator
	scaler    draw.Scaler
	logger    *zap.Logger

	cache *Bitmap
}

// Option 設定 Processor
type Option func(*Processor)

// WithAllocator 指定像素緩衝分配器
func WithAllocator(a Allocator) Option {
	return func(p *Processor) {
		p.allocator = a
	}
}

// WithLogger 指定日誌實例
func WithLogger(l *zap.Logger) Option {
	return func(p *Processor) {
		p.logger = l
	}
}

// NewProcessor 創建藝術圖處理器
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		scaler: draw.BiLinear,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.allocator == nil {
		p.allocator = NewHeapAllocator(0, 0)
	}
	if p.logger == nil {
		p.logger = common.L()
	}
	return p
}

// Cached 返回目前快取的圖片
func (p *Processor) Cached() (*Bitmap, bool) {
	return p.cache, p.cache != nil
}

// ProcessArtwork 返回縮放後的藝術圖。
// 快取存在時直接返回快取，忽略所有參數；失敗時返回 nil 且快取不變。
func (p *Processor) ProcessArtwork(display Dimensions, artwork *Bitmap) *Bitmap {
	if cached, ok := p.Cached(); ok {
		return cached
	}

	out, err := p.process(display, artwork)
	if err != nil {
		p.logger.Error("Error while processing artwork",
			zap.String("tag", Tag),
			zap.Stringer("display", display),
			zap.Bool("invalid_geometry", errors.Is(err, ErrInvalidGeometry)),
			zap.Error(err),
		)
		return nil
	}

	p.setCache(out)
	return out
}

// ClearCache 釋放並清空快取
func (p *Processor) ClearCache() {
	p.setCache(nil)
}

// setCache 先回收舊值再替換
func (p *Processor) setCache(b *Bitmap) {
	if p.cache != nil && p.cache != b {
		p.cache.Recycle()
	}
	p.cache = b
}

func (p *Processor) process(display Dimensions, artwork *Bitmap) (*Bitmap, error) {
	if artwork == nil {
		return nil, fmt.Errorf("%w: artwork is nil", ErrInvalidGeometry)
	}
	src := artwork.Image()
	if src == nil {
		return nil, fmt.Errorf("%w: artwork already recycled", ErrInvalidGeometry)
	}

	target, err := TargetSize(display, artwork.Size())
	if err != nil {
		return nil, err
	}

	scaled, err := p.allocator.Allocate(target.Width, target.Height, artwork.Format())
	if err != nil {
		return nil, fmt.Errorf("allocate scaled bitmap: %w", err)
	}
	defer scaled.Recycle()

	dst, ok := scaled.Mutable()
	if !ok {
		return nil, fmt.Errorf("%w: scaled bitmap is not writable", ErrInvalidGeometry)
	}
	p.scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	return p.copy(scaled, scaled.Format().OrDefault())
}

// copy 建立獨立且可寫入的副本
func (p *Processor) copy(src *Bitmap, format Format) (*Bitmap, error) {
	out, err := p.allocator.Allocate(src.Width(), src.Height(), format)
	if err != nil {
		return nil, fmt.Errorf("copy bitmap: %w", err)
	}

	dst, ok := out.Mutable()
	if !ok {
		out.Recycle()
		return nil, fmt.Errorf("%w: copy target is not writable", ErrInvalidGeometry)
	}
	img := src.Image()
	draw.Copy(dst, dst.Bounds().Min, img, img.Bounds(), draw.Src, nil)
	return out, nil
}
