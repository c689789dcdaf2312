// Package viability decides whether a single cropped pollen grain is viable.
package viability

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gonum.org/v1/gonum/stat"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

// Verdict is the classification of one crop. Defaulted marks a fail-open verdict
// produced because the crop could not be measured; Err then explains why.
type Verdict struct {
	Viable    bool
	Defaulted bool
	Mean      float64
	StdDev    float64
	Err       error
}

// Classifier labels a crop. Implementations never panic and never return an error:
// failures surface as a defaulted verdict.
type Classifier interface {
	Classify(region image.Image) Verdict
}

var errEmptyRegion = errors.New("empty region")

// LuminancePolicy marks a crop viable when its 8-bit luminance is bright enough and
// has enough texture.
type LuminancePolicy struct {
	MeanMin   float64
	StdDevMin float64
}

func NewLuminancePolicy(th domain.Thresholds) *LuminancePolicy {
	return &LuminancePolicy{MeanMin: th.ViabilityMeanMin, StdDevMin: th.ViabilityStdDevMin}
}

func (p *LuminancePolicy) Classify(region image.Image) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			verdict = Defaulted(fmt.Errorf("luminance: %v", r))
		}
	}()

	samples, err := Luminance(region)
	if err != nil {
		return Defaulted(err)
	}
	mean, std := stat.PopMeanStdDev(samples, nil)
	return p.decide(mean, std)
}

func (p *LuminancePolicy) decide(mean, std float64) Verdict {
	return Verdict{
		Viable: mean > p.MeanMin && std > p.StdDevMin,
		Mean:   mean,
		StdDev: std,
	}
}

// Defaulted is the fail-open verdict: the grain is counted as viable.
func Defaulted(cause error) Verdict {
	return Verdict{
		Viable:    true,
		Defaulted: true,
		Err:       domain.WrapError(domain.ErrClassificationFailure, "classify", cause),
	}
}

// Luminance converts every pixel of region to 8-bit gray using the ITU-R 601 weights.
func Luminance(region image.Image) ([]float64, error) {
	if region == nil {
		return nil, errEmptyRegion
	}
	b := region.Bounds()
	if b.Empty() {
		return nil, errEmptyRegion
	}

	samples := make([]float64, 0, b.Dx()*b.Dy())
	if gray, ok := region.(*image.Gray); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				samples = append(samples, float64(gray.GrayAt(x, y).Y))
			}
		}
		return samples, nil
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(region.At(x, y)).(color.Gray)
			samples = append(samples, float64(g.Y))
		}
	}
	return samples, nil
}
