package viability

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

func checkerboard(w, h int, dark, light uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := dark
			if (x+y)%2 == 0 {
				v = light
			}
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func uniform(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestLuminancePolicyViableWhenBrightAndTextured(t *testing.T) {
	p := NewLuminancePolicy(domain.DefaultThresholds())

	// mean 150, population std 50
	v := p.Classify(checkerboard(10, 10, 100, 200))

	assert.True(t, v.Viable)
	assert.False(t, v.Defaulted)
	assert.NoError(t, v.Err)
	assert.InDelta(t, 150, v.Mean, 1e-9)
	assert.InDelta(t, 50, v.StdDev, 1e-9)
}

func TestLuminancePolicyNonViable(t *testing.T) {
	p := NewLuminancePolicy(domain.DefaultThresholds())

	tests := []struct {
		name string
		img  image.Image
	}{
		{name: "flat bright", img: uniform(8, 8, 220)},
		{name: "textured dark", img: checkerboard(8, 8, 10, 90)},
		{name: "mean exactly at minimum", img: uniform(4, 4, 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := p.Classify(tt.img)
			assert.False(t, v.Viable)
			assert.False(t, v.Defaulted)
		})
	}
}

func TestLuminancePolicyStrictComparisons(t *testing.T) {
	p := &LuminancePolicy{MeanMin: 150, StdDevMin: 50}

	// exactly mean 150 / std 50 must not pass strict ">"
	v := p.Classify(checkerboard(10, 10, 100, 200))
	assert.False(t, v.Viable)
}

func TestLuminancePolicyFailOpen(t *testing.T) {
	p := NewLuminancePolicy(domain.DefaultThresholds())

	for name, img := range map[string]image.Image{
		"nil":   nil,
		"empty": image.NewRGBA(image.Rect(5, 5, 5, 9)),
	} {
		t.Run(name, func(t *testing.T) {
			v := p.Classify(img)
			assert.True(t, v.Viable)
			assert.True(t, v.Defaulted)
			require.Error(t, v.Err)
			assert.True(t, errors.Is(v.Err, domain.ErrClassificationFailure))
		})
	}
}

func TestLuminanceUsesRec601Weights(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	samples, err := Luminance(img)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.InDelta(t, 76, samples[0], 1)
}

func TestLuminanceRespectsSubImageBounds(t *testing.T) {
	src := checkerboard(20, 20, 0, 255)
	sub := src.SubImage(image.Rect(4, 4, 6, 7))

	samples, err := Luminance(sub)
	require.NoError(t, err)
	assert.Len(t, samples, 6)
}

func TestNewPolicy(t *testing.T) {
	c, err := New("", domain.DefaultThresholds())
	require.NoError(t, err)
	assert.IsType(t, &LuminancePolicy{}, c)

	_, err = New("magic", domain.DefaultThresholds())
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
