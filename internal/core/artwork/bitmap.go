package artwork

import (
	"fmt"
	"image"
	"sync"

	"golang.org/x/image/draw"
)

// Format 像素格式
type Format int

const (
	FormatUnknown Format = iota
	FormatRGBA8888
	FormatNRGBA8888
	FormatRGBA64
	FormatGray8
	FormatAlpha8
)

// DefaultFormat 來源格式未知時使用的格式
const DefaultFormat = FormatRGBA8888

// String 實現 fmt.Stringer 介面
func (f Format) String() string {
	switch f {
	case FormatRGBA8888:
		return "rgba8888"
	case FormatNRGBA8888:
		return "nrgba8888"
	case FormatRGBA64:
		return "rgba64"
	case FormatGray8:
		return "gray8"
	case FormatAlpha8:
		return "alpha8"
	default:
		return "unknown"
	}
}

// OrDefault 未知格式回退為 RGBA 8888
func (f Format) OrDefault() Format {
	if f == FormatUnknown {
		return DefaultFormat
	}
	return f
}

// FormatOf 根據圖片型別判斷像素格式
func FormatOf(img image.Image) Format {
	switch img.(type) {
	case *image.RGBA:
		return FormatRGBA8888
	case *image.NRGBA:
		return FormatNRGBA8888
	case *image.RGBA64:
		return FormatRGBA64
	case *image.Gray:
		return FormatGray8
	case *image.Alpha:
		return FormatAlpha8
	default:
		return FormatUnknown
	}
}

// newImage 依格式建立像素緩衝
func newImage(r image.Rectangle, f Format) draw.Image {
	switch f.OrDefault() {
	case FormatNRGBA8888:
		return image.NewNRGBA(r)
	case FormatRGBA64:
		return image.NewRGBA64(r)
	case FormatGray8:
		return image.NewGray(r)
	case FormatAlpha8:
		return image.NewAlpha(r)
	default:
		return image.NewRGBA(r)
	}
}

// Dimensions 寬高
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty 寬或高不為正數
func (d Dimensions) Empty() bool {
	return d.Width <= 0 || d.Height <= 0
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Bitmap 持有像素緩衝的圖片，Recycle 之後不可再使用
type Bitmap struct {
	mu       sync.Mutex
	img      image.Image
	format   Format
	recycled bool
	release  func(*Bitmap)
}

// FromImage 包裝呼叫端已解碼的圖片。
// 包裝出來的 Bitmap 不屬於任何 Allocator。
func FromImage(img image.Image) *Bitmap {
	return &Bitmap{
		img:    img,
		format: FormatOf(img),
	}
}

// Width 寬度
func (b *Bitmap) Width() int {
	return b.img.Bounds().Dx()
}

// Height 高度
func (b *Bitmap) Height() int {
	return b.img.Bounds().Dy()
}

// Size 寬高
func (b *Bitmap) Size() Dimensions {
	return Dimensions{Width: b.Width(), Height: b.Height()}
}

// Format 像素格式
func (b *Bitmap) Format() Format {
	return b.format
}

// Image 返回像素緩衝，已回收時返回 nil
func (b *Bitmap) Image() image.Image {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.recycled {
		return nil
	}
	return b.img
}

// Mutable 返回可寫入的像素緩衝
func (b *Bitmap) Mutable() (draw.Image, bool) {
	img, ok := b.Image().(draw.Image)
	return img, ok
}

// IsRecycled 是否已回收
func (b *Bitmap) IsRecycled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recycled
}

// Recycle 釋放像素緩衝，重複呼叫不會重複釋放
func (b *Bitmap) Recycle() {
	b.mu.Lock()
	if b.recycled {
		b.mu.Unlock()
		return
	}
	b.recycled = true
	release := b.release
	b.mu.Unlock()

	if release != nil {
		release(b)
	}
}
