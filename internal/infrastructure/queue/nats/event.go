package nats

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type batchSubmitted struct {
	BatchID     string    `json:"batch_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func encodeBatchSubmitted(e batchSubmitted) ([]byte, error) {
	if strings.TrimSpace(e.BatchID) == "" {
		return nil, errors.New("batch event: empty batch id")
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal batch event: %w", err)
	}
	return raw, nil
}

// decodeBatchSubmitted also accepts a bare batch id, as published by older producers.
func decodeBatchSubmitted(data []byte) (batchSubmitted, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return batchSubmitted{}, errors.New("batch event: empty payload")
	}
	if trimmed[0] != '{' {
		return batchSubmitted{BatchID: string(trimmed)}, nil
	}
	var e batchSubmitted
	if err := json.Unmarshal(trimmed, &e); err != nil {
		return batchSubmitted{}, fmt.Errorf("unmarshal batch event: %w", err)
	}
	if strings.TrimSpace(e.BatchID) == "" {
		return batchSubmitted{}, errors.New("batch event: empty batch id")
	}
	return e, nil
}
