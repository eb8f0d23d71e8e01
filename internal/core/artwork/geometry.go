package artwork

import (
	"fmt"
	"math"
)

// DownsampleBound 計算藝術圖的最大邊長。
// 縮放係數等於螢幕長寬比，直向螢幕得到的邊長會小於螢幕本身。
func DownsampleBound(display Dimensions) (int, error) {
	if display.Empty() {
		return 0, fmt.Errorf("%w: display %s", ErrInvalidGeometry, display)
	}

	aspectRatio := float32(display.Width) / float32(display.Height)
	downsample := aspectRatio

	maxWidth := float32(display.Width) * downsample
	maxHeight := float32(display.Height) * downsample
	if !finite(maxWidth) || !finite(maxHeight) || maxWidth >= math.MaxInt32 || maxHeight >= math.MaxInt32 {
		return 0, fmt.Errorf("%w: bound overflow for display %s", ErrInvalidGeometry, display)
	}

	bound := max(int(maxWidth), int(maxHeight))
	if bound <= 0 {
		return 0, fmt.Errorf("%w: bound %d for display %s", ErrInvalidGeometry, bound, display)
	}
	return bound, nil
}

// FitRect 按比例縮放，使較長的一邊等於 largestSide。
// 空矩形原樣返回。
func FitRect(size Dimensions, largestSide int) Dimensions {
	if size.Empty() {
		return size
	}

	var ratio float32
	if size.Width > size.Height {
		ratio = float32(largestSide) / float32(size.Width)
	} else {
		ratio = float32(largestSide) / float32(size.Height)
	}

	return Dimensions{
		Width:  int(float32(size.Width) * ratio),
		Height: int(float32(size.Height) * ratio),
	}
}

// TargetSize 計算藝術圖在指定螢幕上的輸出尺寸
func TargetSize(display, artwork Dimensions) (Dimensions, error) {
	bound, err := DownsampleBound(display)
	if err != nil {
		return Dimensions{}, err
	}

	target := FitRect(artwork, bound)
	if target.Empty() {
		return Dimensions{}, fmt.Errorf("%w: target %s for artwork %s", ErrInvalidGeometry, target, artwork)
	}
	return target, nil
}

func finite(f float32) bool {
	return !math.IsInf(float64(f), 0) && !math.IsNaN(float64(f))
}
