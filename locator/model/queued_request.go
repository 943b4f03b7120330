package model

import (
	"encoding/json"
	"time"
)

// QueuedDeviceRequest is the envelope carried by the request queue.
type QueuedDeviceRequest struct {
	ID         string          `json:"id"`
	DeviceID   string          `json:"device_id"`
	Domain     Domain          `json:"domain"`
	Request    json.RawMessage `json:"request"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	Attempt    int             `json:"attempt"`
}

// ResponseStatus is the outcome reported to a device.
type ResponseStatus string

const (
	ResponseResolved     ResponseStatus = "resolved"
	ResponseNotLocatable ResponseStatus = "not_locatable"
	ResponseTimeout      ResponseStatus = "timeout"
)

// DeviceResponse is published back to the device once a queued request terminates.
type DeviceResponse struct {
	DeviceID  string          `json:"device_id"`
	Topic     string          `json:"topic"`
	RequestID string          `json:"request_id"`
	Status    ResponseStatus  `json:"status"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
