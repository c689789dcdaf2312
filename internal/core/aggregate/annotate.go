package aggregate

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

const boxThickness = 2

// drawBox strokes r with a boxThickness-wide outline. Parts outside dst are clipped.
func drawBox(dst draw.Image, r image.Rectangle, c color.RGBA) {
	r = r.Canon()
	src := image.NewUniform(c)
	t := boxThickness
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}
