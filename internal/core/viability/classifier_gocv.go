//go:build gocv

package viability

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

// OpenCVPolicy computes the same luminance moments with OpenCV. Only built with -tags gocv.
type OpenCVPolicy struct {
	LuminancePolicy
}

func NewOpenCVPolicy(th domain.Thresholds) *OpenCVPolicy {
	return &OpenCVPolicy{LuminancePolicy: *NewLuminancePolicy(th)}
}

func (p *OpenCVPolicy) Classify(region image.Image) (verdict Verdict) {
	defer func() {
		if r := recover(); r != nil {
			verdict = Defaulted(fmt.Errorf("opencv: %v", r))
		}
	}()
	if region == nil || region.Bounds().Empty() {
		return Defaulted(errEmptyRegion)
	}

	// ImageToMatRGB lays pixels out in OpenCV BGR order.
	bgr, err := gocv.ImageToMatRGB(region)
	if err != nil {
		return Defaulted(fmt.Errorf("image to mat: %w", err))
	}
	defer bgr.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	mean := gocv.NewMat()
	defer mean.Close()
	std := gocv.NewMat()
	defer std.Close()
	gocv.MeanStdDev(gray, &mean, &std)

	return p.decide(mean.GetDoubleAt(0, 0), std.GetDoubleAt(0, 0))
}

func init() {
	newOpenCV = func(th domain.Thresholds) Classifier { return NewOpenCVPolicy(th) }
}
