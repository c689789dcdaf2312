// Package aggregate turns raw detector output into an annotated image and per-class
// viability counts.
package aggregate

import (
	"errors"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/viability"
)

var ErrEmptyImage = errors.New("source image is empty")

// Result is everything one aggregation produces. Counts always holds every class.
type Result struct {
	Annotated *image.RGBA
	Counts    domain.ClassCounts
	Outcomes  []domain.DetectionOutcome
	Rejected  []domain.RejectedDetection
	Filtered  int
}

// DefaultedCount returns how many kept detections got a fail-open verdict.
func (r *Result) DefaultedCount() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Defaulted {
			n++
		}
	}
	return n
}

type Aggregator struct {
	classifier viability.Classifier
	labeler    *Labeler
}

func New(classifier viability.Classifier, labeler *Labeler) *Aggregator {
	if labeler == nil {
		labeler = NewLabeler("en")
	}
	return &Aggregator{classifier: classifier, labeler: labeler}
}

// Aggregate filters detections by confidence (equal to threshold is kept), classifies
// every kept grain and draws its box and label on a copy of img.
func (a *Aggregator) Aggregate(img image.Image, detections []domain.Detection, threshold float64) (*Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "aggregate", ErrEmptyImage)
	}

	bounds := img.Bounds()
	annotated := image.NewRGBA(bounds)
	draw.Draw(annotated, bounds, img, bounds.Min, draw.Src)

	result := &Result{
		Annotated: annotated,
		Counts:    domain.NewClassCounts(),
		Outcomes:  make([]domain.DetectionOutcome, 0, len(detections)),
	}

	for i, det := range detections {
		if math.IsNaN(det.Confidence) || det.Confidence < threshold {
			result.Filtered++
			continue
		}
		variant, err := domain.VariantByIndex(det.ClassIndex)
		if err != nil {
			result.Rejected = append(result.Rejected, domain.RejectedDetection{
				Position:  i,
				Detection: det,
				Reason:    err.Error(),
			})
			continue
		}

		verdict := a.classifier.Classify(crop(img, det.Box.Rect()))
		result.Counts.Record(variant.Name, verdict.Viable)

		drawBox(annotated, det.Box.Rect(), variant.Color)
		label := a.labeler.Draw(annotated, det.Box.Rect(), variant, verdict.Viable, det.Confidence)

		result.Outcomes = append(result.Outcomes, domain.DetectionOutcome{
			Detection: det,
			Class:     variant.Name,
			Viable:    verdict.Viable,
			Defaulted: verdict.Defaulted,
			Label:     label,
		})
	}
	return result, nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// crop returns the part of img inside r. Boxes are expected in bounds; anything
// outside is clipped and a fully outside box yields an empty image.
func crop(img image.Image, r image.Rectangle) image.Image {
	r = r.Canon().Intersect(img.Bounds())
	if r.Empty() {
		return image.NewRGBA(image.Rectangle{})
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}
