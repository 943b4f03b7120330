package model

import (
	"encoding/json"
	"time"
)

// DedupKey addresses one device submission at one route.
type DedupKey struct {
	Route     string
	RequestID string
}

// DedupStatus tracks a submission through the ingress dedup window.
type DedupStatus string

const (
	DedupProcessing DedupStatus = "processing"
	DedupCompleted  DedupStatus = "completed"
)

// DedupEntry is what the dedup keyspace stores per submission.
type DedupEntry struct {
	Status    DedupStatus     `json:"status"`
	BodyHash  string          `json:"body_hash"`
	Response  json.RawMessage `json:"response,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
