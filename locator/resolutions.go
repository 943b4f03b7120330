package locator

import (
	"context"
	"encoding/json"
	"time"

	"encore.dev/beta/errs"
	"encore.dev/rlog"

	"encore.app/locator/model"
)

type ResolutionStatus struct {
	Domain    model.Domain     `json:"domain"`
	Key       string           `json:"key"`
	State     model.EntryState `json:"state"`
	Payload   json.RawMessage  `json:"payload,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// GetResolution reports the cache state of one key.
//
//encore:api public path=/v1/resolutions/:domain/:key method=GET
func (s *Service) GetResolution(ctx context.Context, domain string, key string) (*ResolutionStatus, error) {
	d := model.Domain(domain)
	if !d.Valid() {
		return nil, &errs.Error{Code: errs.InvalidArgument, Message: "unknown domain"}
	}

	lookup, err := s.cache.Get(ctx, d, key)
	if err != nil {
		rlog.Error("failed to read resolution", "domain", domain, "key", key, "error", err)
		return nil, &errs.Error{Code: errs.Unavailable, Message: "resolution cache unavailable"}
	}
	if lookup.State == model.StateAbsent {
		return nil, &errs.Error{Code: errs.NotFound, Message: "no resolution for key"}
	}

	return &ResolutionStatus{
		Domain:    d,
		Key:       key,
		State:     lookup.State,
		Payload:   lookup.Payload,
		UpdatedAt: lookup.UpdatedAt,
		ExpiresAt: lookup.ExpiresAt,
	}, nil
}
