package artwork

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDownsampleBound(t *testing.T) {
	tests := []struct {
		name    string
		display Dimensions
		want    int
	}{
		{"portrait 1080x2280", Dimensions{1080, 2280}, 1080},
		{"portrait 1080x1920", Dimensions{1080, 1920}, 1080},
		{"portrait 1440x3120", Dimensions{1440, 3120}, 1440},
		{"square", Dimensions{1000, 1000}, 1000},
		{"landscape 1920x1080", Dimensions{1920, 1080}, 3413},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DownsampleBound(tt.display)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDownsampleBoundRejectsEmptyDisplay(t *testing.T) {
	for _, d := range []Dimensions{{1080, 0}, {0, 2280}, {0, 0}, {-1, 100}} {
		_, err := DownsampleBound(d)
		require.Error(t, err, d.String())
		require.True(t, errors.Is(err, ErrInvalidGeometry))
	}
}

func TestFitRect(t *testing.T) {
	tests := []struct {
		size  Dimensions
		bound int
		want  Dimensions
	}{
		{Dimensions{3000, 3000}, 1080, Dimensions{1080, 1080}},
		{Dimensions{3000, 2000}, 1080, Dimensions{1080, 720}},
		{Dimensions{2000, 3000}, 1080, Dimensions{720, 1080}},
		// 較小的來源會被放大到邊界
		{Dimensions{640, 480}, 1080, Dimensions{1080, 810}},
		{Dimensions{1000, 3}, 1080, Dimensions{1080, 3}},
		{Dimensions{5000, 1}, 1080, Dimensions{1080, 0}},
		{Dimensions{0, 500}, 1080, Dimensions{0, 500}},
	}

	for _, tt := range tests {
		t.Run(tt.size.String(), func(t *testing.T) {
			require.Equal(t, tt.want, FitRect(tt.size, tt.bound))
		})
	}
}

func TestTargetSize(t *testing.T) {
	got, err := TargetSize(Dimensions{1080, 2280}, Dimensions{3000, 3000})
	require.NoError(t, err)
	require.Equal(t, Dimensions{1080, 1080}, got)

	_, err = TargetSize(Dimensions{1080, 2280}, Dimensions{5000, 1})
	require.ErrorIs(t, err, ErrInvalidGeometry)

	_, err = TargetSize(Dimensions{1080, 2280}, Dimensions{0, 0})
	require.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestTargetSizePreservesAspectRatio(t *testing.T) {
	display := Dimensions{1080, 2280}
	bound, err := DownsampleBound(display)
	require.NoError(t, err)

	for _, src := range []Dimensions{{3000, 2000}, {1234, 987}, {500, 1600}, {4096, 4095}, {800, 600}} {
		got, err := TargetSize(display, src)
		require.NoError(t, err)
		require.LessOrEqual(t, max(got.Width, got.Height), bound)

		want := float64(src.Width) / float64(src.Height)
		ratio := float64(got.Width) / float64(got.Height)
		// 截斷最多損失一個像素
		tolerance := want/float64(got.Height) + 1/float64(got.Height)
		require.InDelta(t, want, ratio, tolerance, src.String())
	}
}
