package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/pollen-vision/internal/core/aggregate"
	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
)

const defaultMaxUploadBytes = 5 << 20

// screening is the detect → aggregate chain shared by single and batch analyses.
type screening struct {
	detector   ports.Detector
	codec      ports.ImageCodec
	aggregator *aggregate.Aggregator
}

type screened struct {
	source image.Image
	format string
	result *aggregate.Result
	png    []byte
}

func (s screening) run(ctx context.Context, data []byte, filename string, threshold float64) (*screened, error) {
	img, format, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	detections, err := s.detector.Detect(ctx, data, filename)
	if err != nil {
		return nil, fmt.Errorf("detect pollen: %w", err)
	}

	result, err := s.aggregator.Aggregate(img, detections, threshold)
	if err != nil {
		return nil, fmt.Errorf("aggregate detections: %w", err)
	}

	annotated, err := s.codec.EncodePNG(result.Annotated)
	if err != nil {
		return nil, fmt.Errorf("encode annotated image: %w", err)
	}
	return &screened{source: img, format: format, result: result, png: annotated}, nil
}

// appendHistory never fails the caller: a lost history entry is logged and reported.
func appendHistory(ctx context.Context, store ports.HistoryStore, logger *slog.Logger, record domain.HistoryRecord) bool {
	if err := store.Append(ctx, record); err != nil {
		logger.Warn("history append failed", "filename", record.Filename, "error", err)
		return false
	}
	return true
}

func readUpload(body io.Reader, limit int64) ([]byte, error) {
	if body == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read upload", errors.New("empty body"))
	}
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if n > limit {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read upload", fmt.Errorf("file exceeds %d bytes", limit))
	}
	if n == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read upload", errors.New("empty file"))
	}
	return buf.Bytes(), nil
}

// resolveThreshold applies a caller override, which only professional accounts may send.
func resolveThreshold(identity domain.Identity, override *float64, fallback float64) (float64, error) {
	if override == nil {
		return fallback, nil
	}
	if !identity.Role.Allows(domain.RoleProfessional) {
		return 0, domain.WrapError(domain.ErrForbidden, "confidence threshold", errors.New("threshold override requires a professional account"))
	}
	if *override < 0 || *override > 1 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "confidence threshold", fmt.Errorf("threshold %v is outside [0,1]", *override))
	}
	return *override, nil
}

func analysisMode(identity domain.Identity) string {
	if identity.Role.Allows(domain.RoleProfessional) {
		return "professional"
	}
	return "standard"
}

type noopObserver struct{}

func (noopObserver) ObserveAnalysis(string, domain.ClassCounts, int, int, time.Duration) {}
func (noopObserver) ObserveHistoryLoad(bool)                                             {}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == "_" {
		return "image.bin"
	}
	return base
}
