package locator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"encore.dev/beta/errs"
	"encore.dev/rlog"

	"encore.app/locator/binning"
	"encore.app/locator/model"
)

type CellSubmission struct {
	RequestID string            `header:"X-Request-Id" json:"-"`
	Request   model.CellRequest `json:"request"`
}

type SurveySubmission struct {
	RequestID string              `header:"X-Request-Id" json:"-"`
	Request   model.SurveyRequest `json:"request"`
}

type AGNSSSubmission struct {
	RequestID string             `header:"X-Request-Id" json:"-"`
	Request   model.AGNSSRequest `json:"request"`
}

type AGPSSubmission struct {
	RequestID string            `header:"X-Request-Id" json:"-"`
	Request   model.AGPSRequest `json:"request"`
}

type PGPSSubmission struct {
	RequestID string            `header:"X-Request-Id" json:"-"`
	Request   model.PGPSRequest `json:"request"`
}

// SubmitResponse acknowledges an accepted request. The answer arrives later on the
// device's response topic; Key can be polled through GetResolution.
type SubmitResponse struct {
	ID         string       `json:"id"`
	Domain     model.Domain `json:"domain"`
	Key        string       `json:"key"`
	EnqueuedAt time.Time    `json:"enqueued_at"`
}

//encore:api public path=/v1/devices/:deviceID/cell method=POST tag:dedup
func (s *Service) SubmitCell(ctx context.Context, deviceID string, req *CellSubmission) (*SubmitResponse, error) {
	return s.submit(ctx, deviceID, req.RequestID, req.Request)
}

//encore:api public path=/v1/devices/:deviceID/survey method=POST tag:dedup
func (s *Service) SubmitSurvey(ctx context.Context, deviceID string, req *SurveySubmission) (*SubmitResponse, error) {
	return s.submit(ctx, deviceID, req.RequestID, req.Request)
}

//encore:api public path=/v1/devices/:deviceID/agnss method=POST tag:dedup
func (s *Service) SubmitAGNSS(ctx context.Context, deviceID string, req *AGNSSSubmission) (*SubmitResponse, error) {
	return s.submit(ctx, deviceID, req.RequestID, req.Request)
}

//encore:api public path=/v1/devices/:deviceID/agps method=POST tag:dedup
func (s *Service) SubmitAGPS(ctx context.Context, deviceID string, req *AGPSSubmission) (*SubmitResponse, error) {
	return s.submit(ctx, deviceID, req.RequestID, req.Request)
}

//encore:api public path=/v1/devices/:deviceID/pgps method=POST tag:dedup
func (s *Service) SubmitPGPS(ctx context.Context, deviceID string, req *PGPSSubmission) (*SubmitResponse, error) {
	return s.submit(ctx, deviceID, req.RequestID, req.Request)
}

func (r *CellSubmission) Validate() error   { return validateStruct(r) }
func (r *SurveySubmission) Validate() error { return validateStruct(r) }
func (r *AGNSSSubmission) Validate() error  { return validateStruct(r) }
func (r *AGPSSubmission) Validate() error   { return validateStruct(r) }
func (r *PGPSSubmission) Validate() error   { return validateStruct(r) }

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return &errs.Error{Code: errs.InvalidArgument, Message: err.Error()}
	}
	return nil
}

// submit bins the request at enqueue time and queues it. A repeated request ID from the
// same device is enqueued once.
func (s *Service) submit(ctx context.Context, deviceID, requestID string, req model.Request) (*SubmitResponse, error) {
	if err := validate.Var(deviceID, "required,max=128,printascii"); err != nil {
		return nil, &errs.Error{Code: errs.InvalidArgument, Message: "invalid device ID"}
	}

	now := s.now()
	key, err := binning.Bin(req, now, s.cfg.BinWidth)
	if err != nil {
		return nil, &errs.Error{Code: errs.InvalidArgument, Message: err.Error()}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &errs.Error{Code: errs.InvalidArgument, Message: "request cannot be encoded"}
	}

	item := &model.QueuedDeviceRequest{
		ID:         uuid.NewString(),
		DeviceID:   deviceID,
		Domain:     req.Domain(),
		Request:    body,
		EnqueuedAt: now,
	}
	var dedupKey string
	if requestID != "" {
		dedupKey = deviceID + "/" + requestID
	}

	if err := s.queue.Enqueue(ctx, item, dedupKey); err != nil {
		rlog.Error("failed to enqueue device request", "device_id", deviceID, "domain", item.Domain, "error", err)
		return nil, &errs.Error{Code: errs.Unavailable, Message: "failed to accept request"}
	}

	rlog.Info("device request accepted", "id", item.ID, "device_id", deviceID, "domain", item.Domain, "key", key)
	return &SubmitResponse{
		ID:         item.ID,
		Domain:     item.Domain,
		Key:        key,
		EnqueuedAt: item.EnqueuedAt,
	}, nil
}
