package nats

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/pollen-vision/internal/core/domain"
	"github.com/kirillkom/pollen-vision/internal/infrastructure/resilience"
)

func TestBatchEventRoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	raw, err := encodeBatchSubmitted(batchSubmitted{BatchID: "b-1", SubmittedAt: at})
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}
	got, err := decodeBatchSubmitted(raw)
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if got.BatchID != "b-1" || !got.SubmittedAt.Equal(at) {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestDecodeBatchEventVariants(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantID  string
		wantErr bool
	}{
		{name: "bare id", data: " b-2 \n", wantID: "b-2"},
		{name: "empty", data: "  ", wantErr: true},
		{name: "json without id", data: `{"submitted_at":"2024-05-01T10:00:00Z"}`, wantErr: true},
		{name: "broken json", data: `{"batch_id":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeBatchSubmitted([]byte(tt.data))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil || got.BatchID != tt.wantID {
				t.Fatalf("decode = %+v, %v", got, err)
			}
		})
	}

	if _, err := encodeBatchSubmitted(batchSubmitted{}); err == nil {
		t.Fatalf("expected error for empty batch id")
	}
}

func TestClassifyPublishError(t *testing.T) {
	if c := classifyPublishError(fmt.Errorf("publish: %w", nats.ErrConnectionClosed)); !c.Retryable {
		t.Fatalf("closed connection must be retryable")
	}
	if c := classifyPublishError(nats.ErrConnectionReconnecting); !c.Retryable {
		t.Fatalf("reconnecting connection must be retryable")
	}
	if c := classifyPublishError(context.Canceled); c.Retryable || c.RecordFailure {
		t.Fatalf("cancellation must be neither retried nor recorded")
	}
	if c := classifyPublishError(nats.ErrBadSubject); c.Retryable || !c.RecordFailure {
		t.Fatalf("bad subject must be recorded but not retried")
	}
}

func TestPublishFailureNamesBatch(t *testing.T) {
	err := publishFailure("b-9", nats.ErrNoServers)
	if !errors.Is(err, domain.ErrTemporary) || !errors.Is(err, nats.ErrNoServers) {
		t.Fatalf("expected temporary wrap, got %v", err)
	}
	if !strings.Contains(err.Error(), "publish batch b-9") {
		t.Fatalf("error must name the batch: %v", err)
	}

	err = publishFailure("b-9", nats.ErrBadSubject)
	if errors.Is(err, domain.ErrTemporary) || !errors.Is(err, nats.ErrBadSubject) {
		t.Fatalf("permanent error must stay permanent: %v", err)
	}
	if !resilience.IsCircuitOpen(publishFailure("b-9", fmt.Errorf("x: %w", gobreaker.ErrOpenState))) {
		t.Fatalf("circuit open error must be preserved")
	}

	already := domain.WrapError(domain.ErrTemporary, "earlier", errors.New("boom"))
	if got := publishFailure("b-9", already); got != already {
		t.Fatalf("temporary error must pass through unchanged, got %v", got)
	}
}
