// Package dedup suppresses device retries of a submission the service already accepted.
// A device that sends the same X-Request-Id again within Window gets the original
// response back instead of a second enqueue.
package dedup

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"

	"encore.dev/beta/errs"
	"encore.dev/middleware"
	"encore.dev/rlog"
	"encore.dev/storage/cache"

	"encore.app/locator/model"
)

const RequestIDHeader = "X-Request-Id"

//encore:middleware target=tag:dedup
func DedupMiddleware(req middleware.Request, next middleware.Next) middleware.Response {
	requestID := extractRequestID(req)
	if requestID == "" {
		// submissions without an id are not deduplicated
		return next(req)
	}

	ctx := req.Context()
	key := model.DedupKey{Route: req.Data().Path, RequestID: requestID}
	bodyHash := generateBodyHash(req)

	err := entries.SetIfNotExists(ctx, key, model.DedupEntry{
		Status:    model.DedupProcessing,
		BodyHash:  bodyHash,
		CreatedAt: time.Now(),
	})
	switch {
	case err == nil:
		return process(ctx, req, next, key, bodyHash)
	case errors.Is(err, cache.KeyExists):
	default:
		rlog.Error("dedup mark failed", "request_id", requestID, "error", err)
		return middleware.Response{Err: &errs.Error{Code: errs.Unavailable, Message: "failed to check request id"}}
	}

	entry, err := entries.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.Miss) {
			// expired between the two calls
			return next(req)
		}
		rlog.Error("dedup lookup failed", "request_id", requestID, "error", err)
		return middleware.Response{Err: &errs.Error{Code: errs.Unavailable, Message: "failed to check request id"}}
	}
	return handleExistingEntry(req, next, entry, bodyHash, requestID)
}

func extractRequestID(req middleware.Request) string {
	if headers := req.Data().Headers; headers != nil {
		return strings.TrimSpace(headers.Get(RequestIDHeader))
	}
	return ""
}

func generateBodyHash(req middleware.Request) string {
	payload := req.Data().Payload
	if payload == nil {
		return ""
	}
	body, err := json.Marshal(payload)
	if err != nil {
		rlog.Error("failed to marshal request body", "error", err)
		return ""
	}
	return hashing(body)
}

func process(ctx context.Context, req middleware.Request, next middleware.Next, key model.DedupKey, bodyHash string) middleware.Response {
	resp := next(req)
	if resp.Err != nil {
		// let the device retry a failed submission
		if _, err := entries.Delete(ctx, key); err != nil {
			rlog.Error("failed to clear dedup entry", "request_id", key.RequestID, "error", err)
		}
		return resp
	}
	markAsCompleted(ctx, key, bodyHash, resp)
	return resp
}

func handleExistingEntry(req middleware.Request, next middleware.Next, entry model.DedupEntry, bodyHash, requestID string) middleware.Response {
	if bodyHash != "" && entry.BodyHash != "" && bodyHash != entry.BodyHash {
		return middleware.Response{Err: &errs.Error{Code: errs.InvalidArgument, Message: "request id reused with a different body"}}
	}

	switch entry.Status {
	case model.DedupProcessing:
		rlog.Info("concurrent submission detected", "request_id", requestID)
		return middleware.Response{Err: &errs.Error{Code: errs.Aborted, Message: "request is already being processed"}}
	case model.DedupCompleted:
		if resp, ok := cachedResponse(req, entry); ok {
			rlog.Info("returning original acceptance", "request_id", requestID)
			return resp
		}
	default:
		rlog.Warn("unknown dedup status", "request_id", requestID, "status", entry.Status)
	}
	return next(req)
}

func cachedResponse(req middleware.Request, entry model.DedupEntry) (middleware.Response, bool) {
	api := req.Data().API
	if len(entry.Response) == 0 || api == nil || api.ResponseType == nil {
		return middleware.Response{}, false
	}
	payload, err := decodeResponse(api.ResponseType, entry.Response)
	if err != nil {
		rlog.Error("failed to decode cached response", "error", err)
		return middleware.Response{}, false
	}
	return middleware.Response{Payload: payload}, true
}

// decodeResponse unmarshals raw into a new value of the pointer type t.
func decodeResponse(t reflect.Type, raw json.RawMessage) (any, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	v := reflect.New(t).Interface()
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, err
	}
	return v, nil
}

func markAsCompleted(ctx context.Context, key model.DedupKey, bodyHash string, resp middleware.Response) {
	completed := model.DedupEntry{
		Status:    model.DedupCompleted,
		BodyHash:  bodyHash,
		UpdatedAt: time.Now(),
	}
	if resp.Payload != nil {
		body, err := json.Marshal(resp.Payload)
		if err != nil {
			rlog.Error("failed to marshal response for dedup", "error", err)
			return
		}
		completed.Response = body
	}
	if err := entries.Set(ctx, key, completed); err != nil {
		rlog.Error("failed to record completed submission", "request_id", key.RequestID, "error", err)
	}
}

func hashing(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}
