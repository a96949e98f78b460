package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps every storefront message on the wire. Key is the shopper
// key (guest:<session> or user:<id>) and doubles as the partition key, so a
// shopper's events stay ordered.
type Envelope struct {
	ID            string          `json:"id"`
	Kind          string          `json:"kind"`
	Key           string          `json:"key"`
	Source        string          `json:"source"`
	At            time.Time       `json:"at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Seal encodes payload into a new envelope stamped with now.
func Seal(kind, key, source string, payload any, now time.Time) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return &Envelope{
		ID:      uuid.NewString(),
		Kind:    kind,
		Key:     key,
		Source:  source,
		At:      now.UTC(),
		Payload: raw,
	}, nil
}

// Open decodes a message value produced by Publish.
func Open(value []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Kind == "" {
		return nil, fmt.Errorf("decode envelope: missing kind")
	}
	return &env, nil
}

// Into decodes the payload into dst.
func (e *Envelope) Into(dst any) error {
	return json.Unmarshal(e.Payload, dst)
}
