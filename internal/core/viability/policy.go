package viability

import (
	"fmt"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
)

const (
	PolicyLuminance = "luminance"
	PolicyOpenCV    = "opencv"
)

// newOpenCV is set when the binary is built with the gocv tag.
var newOpenCV func(domain.Thresholds) Classifier

// New returns the classifier registered under name.
func New(name string, th domain.Thresholds) (Classifier, error) {
	switch name {
	case "", PolicyLuminance:
		return NewLuminancePolicy(th), nil
	case PolicyOpenCV:
		if newOpenCV == nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "viability policy", fmt.Errorf("%s requires a build with -tags gocv", name))
		}
		return newOpenCV(th), nil
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "viability policy", fmt.Errorf("unknown policy %q", name))
	}
}
