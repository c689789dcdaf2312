// Package httpmodel talks to the pollen detection model served over HTTP.
package httpmodel

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/resilience"
)

const detectPath = "/v1/detect"

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type detectResponse struct {
	Detections []wireDetection `json:"detections"`
}

type wireDetection struct {
	ClassIndex int       `json:"class_index"`
	Confidence float64   `json:"confidence"`
	Box        []float64 `json:"box"`
}

// Detect uploads the encoded image and returns the model's detections. An empty
// list is a valid answer.
func (c *Client) Detect(ctx context.Context, image []byte, filename string) ([]domain.Detection, error) {
	call := func(ctx context.Context) ([]domain.Detection, error) {
		var resp detectResponse
		if err := c.postImage(ctx, detectPath, image, filename, &resp, "detect"); err != nil {
			return nil, err
		}
		return toDetections(resp.Detections)
	}

	var (
		out []domain.Detection
		err error
	)
	if c.executor == nil {
		out, err = call(ctx)
	} else {
		out, err = resilience.Call(ctx, c.executor, "detector.detect", call, classifyDetectorError)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("detect", err)
	}
	return out, nil
}

func toDetections(wire []wireDetection) ([]domain.Detection, error) {
	out := make([]domain.Detection, 0, len(wire))
	for i, d := range wire {
		if len(d.Box) != 4 {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("detection %d: box has %d coordinates", i, len(d.Box))}
		}
		out = append(out, domain.Detection{
			ClassIndex: d.ClassIndex,
			Confidence: d.Confidence,
			Box: domain.BoundingBox{
				X1: int(d.Box[0]),
				Y1: int(d.Box[1]),
				X2: int(d.Box[2]),
				Y2: int(d.Box[3]),
			},
		})
	}
	return out, nil
}
