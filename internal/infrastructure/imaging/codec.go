// Package imaging validates and decodes uploaded micrographs.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	_ "image/jpeg"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

const (
	DefaultMaxWidth  = 4000
	DefaultMaxHeight = 3000
)

type Limits struct {
	MaxWidth  int
	MaxHeight int
}

type Codec struct {
	limits  Limits
	formats map[string]struct{}
}

// New accepts only the listed formats; an empty list allows every registered decoder.
func New(limits Limits, formats ...string) *Codec {
	if limits.MaxWidth <= 0 {
		limits.MaxWidth = DefaultMaxWidth
	}
	if limits.MaxHeight <= 0 {
		limits.MaxHeight = DefaultMaxHeight
	}
	allowed := make(map[string]struct{}, len(formats))
	for _, f := range formats {
		allowed[f] = struct{}{}
	}
	return &Codec{limits: limits, formats: allowed}
}

// Decode reads the header first so oversized images are refused before allocation.
// The limit is on total pixels, so any aspect ratio within MaxWidth*MaxHeight passes.
func (c *Codec) Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", domain.WrapError(domain.ErrInvalidInput, "decode image", fmt.Errorf("empty image"))
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", domain.WrapError(domain.ErrInvalidInput, "decode image config", err)
	}
	if err := c.checkFormat(format); err != nil {
		return nil, "", err
	}
	if err := c.checkSize(cfg.Width, cfg.Height); err != nil {
		return nil, "", err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", domain.WrapError(domain.ErrInvalidInput, "decode image", err)
	}
	return img, format, nil
}

func (c *Codec) checkFormat(format string) error {
	if len(c.formats) == 0 {
		return nil
	}
	if _, ok := c.formats[format]; !ok {
		return domain.WrapError(domain.ErrInvalidInput, "decode image", fmt.Errorf("format %q not accepted", format))
	}
	return nil
}

func (c *Codec) checkSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return domain.WrapError(domain.ErrInvalidInput, "decode image", fmt.Errorf("empty image %dx%d", w, h))
	}
	if int64(w)*int64(h) > int64(c.limits.MaxWidth)*int64(c.limits.MaxHeight) {
		return domain.WrapError(domain.ErrInvalidInput, "decode image",
			fmt.Errorf("resolution %dx%d exceeds %dx%d", w, h, c.limits.MaxWidth, c.limits.MaxHeight))
	}
	return nil
}

func (c *Codec) EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Thumbnail scales img so that its longer side is at most maxSide. Smaller images
// are returned unchanged.
func (c *Codec) Thumbnail(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img
	}
	scale := float64(maxSide) / float64(max(w, h))
	tw := max(1, int(float64(w)*scale+0.5))
	th := max(1, int(float64(h)*scale+0.5))

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
