package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/pollen-vision/internal/core/aggregate"
	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/core/ports"
	"github.com/kirillkom/pollen-vision/internal/core/viability"
)

type storageFake struct {
	mu      sync.Mutex
	objects map[string][]byte
	saveErr error
}

func newStorageFake() *storageFake {
	return &storageFake{objects: map[string][]byte{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.objects[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "open object", fmt.Errorf("key=%s", key))
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) keys(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

type historyFake struct {
	mu        sync.Mutex
	records   []domain.HistoryRecord
	appendErr error
	loadErr   error
	windows   []domain.Window
}

func (f *historyFake) Append(_ context.Context, rec domain.HistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *historyFake) LoadAll(context.Context) domain.HistoryLoad {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return domain.HistoryLoad{Err: f.loadErr}
	}
	return domain.HistoryLoad{Records: append([]domain.HistoryRecord(nil), f.records...)}
}

func (f *historyFake) LoadWindow(ctx context.Context, w domain.Window) domain.HistoryLoad {
	f.mu.Lock()
	f.windows = append(f.windows, w)
	f.mu.Unlock()
	return f.LoadAll(ctx)
}

type detectorFake struct {
	mu         sync.Mutex
	detections []domain.Detection
	failFor    map[string]error
	calls      []string
}

func (f *detectorFake) Detect(_ context.Context, _ []byte, filename string) ([]domain.Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, filename)
	if err := f.failFor[filename]; err != nil {
		return nil, err
	}
	return f.detections, nil
}

// pngCodec decodes PNG only and never resizes.
type pngCodec struct{}

func (pngCodec) Decode(data []byte) (image.Image, string, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", domain.WrapError(domain.ErrInvalidInput, "decode image", err)
	}
	return img, "png", nil
}

func (pngCodec) EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (pngCodec) Thumbnail(img image.Image, _ int) image.Image { return img }

type analysisRepoFake struct {
	created map[string]domain.Analysis
	err     error
}

func (f *analysisRepoFake) Create(_ context.Context, a *domain.Analysis) error {
	if f.err != nil {
		return f.err
	}
	if f.created == nil {
		f.created = map[string]domain.Analysis{}
	}
	f.created[a.ID] = *a
	return nil
}

func (f *analysisRepoFake) GetByID(_ context.Context, id string) (*domain.Analysis, error) {
	a, ok := f.created[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get analysis", errors.New(id))
	}
	return &a, nil
}

type observerFake struct {
	mu       sync.Mutex
	statuses []string
	degraded []bool
}

func (f *observerFake) ObserveAnalysis(status string, _ domain.ClassCounts, _, _ int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
}

func (f *observerFake) ObserveHistoryLoad(degraded bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.degraded = append(f.degraded, degraded)
}

type exporterFake struct {
	history []domain.HistoryRecord
	doc     domain.ReportDocument
	batch   domain.BatchReport
}

func (f *exporterFake) HistoryWorkbook(records []domain.HistoryRecord) ([]byte, error) {
	f.history = records
	return []byte("xlsx"), nil
}

func (f *exporterFake) ReportWorkbook(doc domain.ReportDocument) ([]byte, error) {
	f.doc = doc
	return []byte("xlsx"), nil
}

func (f *exporterFake) BatchWorkbook(rep domain.BatchReport) ([]byte, error) {
	f.batch = rep
	return []byte("xlsx"), nil
}

// grainPNG is a dark 64x64 image with one bright textured grain at (8,8)-(24,24).
func grainPNG() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(15)
			if x >= 8 && x < 24 && y >= 8 && y < 24 {
				v = 100
				if (x+y)%2 == 0 {
					v = 200
				}
			}
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func grainDetections() []domain.Detection {
	return []domain.Detection{
		{ClassIndex: 0, Box: domain.BoundingBox{X1: 8, Y1: 8, X2: 24, Y2: 24}, Confidence: 0.9},
		{ClassIndex: 1, Box: domain.BoundingBox{X1: 40, Y1: 40, X2: 56, Y2: 56}, Confidence: 0.8},
		{ClassIndex: 2, Box: domain.BoundingBox{X1: 40, Y1: 8, X2: 56, Y2: 24}, Confidence: 0.2},
		{ClassIndex: 9, Box: domain.BoundingBox{X1: 0, Y1: 0, X2: 4, Y2: 4}, Confidence: 0.9},
	}
}

func testAggregator() *aggregate.Aggregator {
	return aggregate.New(viability.NewLuminancePolicy(domain.DefaultThresholds()), aggregate.NewLabeler("en"))
}

var _ ports.ImageCodec = pngCodec{}
