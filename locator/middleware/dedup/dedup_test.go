package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"encore.dev"
	"encore.dev/beta/errs"
	"encore.dev/middleware"
	"encore.dev/storage/cache"

	"encore.app/locator/model"
)

type accepted struct {
	ID string `json:"id"`
}

type submission struct {
	MCC int `json:"mcc"`
}

type fakeEntries struct {
	mu      sync.Mutex
	entries map[model.DedupKey]model.DedupEntry
	err     error
}

func (f *fakeEntries) Get(_ context.Context, key model.DedupKey) (model.DedupEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.DedupEntry{}, f.err
	}
	e, ok := f.entries[key]
	if !ok {
		return model.DedupEntry{}, cache.Miss
	}
	return e, nil
}

func (f *fakeEntries) Set(_ context.Context, key model.DedupKey, val model.DedupEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries[key] = val
	return nil
}

func (f *fakeEntries) SetIfNotExists(_ context.Context, key model.DedupKey, val model.DedupEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.entries[key]; ok {
		return cache.KeyExists
	}
	f.entries[key] = val
	return nil
}

func (f *fakeEntries) Delete(_ context.Context, keys ...model.DedupKey) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range keys {
		if _, ok := f.entries[k]; ok {
			delete(f.entries, k)
			n++
		}
	}
	return n, nil
}

func useFakeEntries(t *testing.T) *fakeEntries {
	t.Helper()
	fake := &fakeEntries{entries: make(map[model.DedupKey]model.DedupEntry)}
	prev := entries
	entries = fake
	t.Cleanup(func() { entries = prev })
	return fake
}

const path = "/v1/devices/nrf-352656100000001/cell"

func newRequest(requestID string, payload any) middleware.Request {
	headers := http.Header{}
	if requestID != "" {
		headers.Set(RequestIDHeader, requestID)
	}
	return middleware.NewRequest(context.Background(), &encore.Request{
		Path:    path,
		Headers: headers,
		Payload: payload,
		API:     &encore.APIDesc{ResponseType: reflect.TypeOf(&accepted{})},
	})
}

func bodyHashOf(t *testing.T, payload any) string {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return hashing(body)
}

func TestDedupMiddleware(t *testing.T) {
	body := &submission{MCC: 242}
	key := model.DedupKey{Route: path, RequestID: "req-1"}

	testCases := []struct {
		name          string
		requestID     string
		seed          *model.DedupEntry
		handlerErr    error
		expectedCalls int
		expectedCode  errs.ErrCode
		expectedID    string
		expectedEntry *model.DedupStatus
	}{
		{
			name:          "no_request_id_passes_through",
			expectedCalls: 1,
			expectedID:    "q-new",
		},
		{
			name:          "first_submission_is_recorded",
			requestID:     "req-1",
			expectedCalls: 1,
			expectedID:    "q-new",
			expectedEntry: ptr(model.DedupCompleted),
		},
		{
			name:      "retry_returns_original_acceptance",
			requestID: "req-1",
			seed: &model.DedupEntry{
				Status:   model.DedupCompleted,
				BodyHash: bodyHashOf(t, body),
				Response: json.RawMessage(`{"id":"q-original"}`),
			},
			expectedID:    "q-original",
			expectedEntry: ptr(model.DedupCompleted),
		},
		{
			name:      "reused_id_with_other_body_conflicts",
			requestID: "req-1",
			seed: &model.DedupEntry{
				Status:   model.DedupCompleted,
				BodyHash: "0123",
				Response: json.RawMessage(`{"id":"q-original"}`),
			},
			expectedCode:  errs.InvalidArgument,
			expectedEntry: ptr(model.DedupCompleted),
		},
		{
			name:      "concurrent_submission_is_aborted",
			requestID: "req-1",
			seed: &model.DedupEntry{
				Status:   model.DedupProcessing,
				BodyHash: bodyHashOf(t, body),
			},
			expectedCode:  errs.Aborted,
			expectedEntry: ptr(model.DedupProcessing),
		},
		{
			name:          "failed_submission_can_be_retried",
			requestID:     "req-1",
			handlerErr:    &errs.Error{Code: errs.Unavailable, Message: "queue down"},
			expectedCalls: 1,
			expectedCode:  errs.Unavailable,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fake := useFakeEntries(t)
			if tc.seed != nil {
				fake.entries[key] = *tc.seed
			}
			calls := 0
			next := func(middleware.Request) middleware.Response {
				calls++
				if tc.handlerErr != nil {
					return middleware.Response{Err: tc.handlerErr}
				}
				return middleware.Response{Payload: &accepted{ID: "q-new"}}
			}

			resp := DedupMiddleware(newRequest(tc.requestID, body), next)

			assert.Equal(t, tc.expectedCalls, calls)
			if tc.expectedCode != errs.OK {
				require.Error(t, resp.Err)
				assert.Equal(t, tc.expectedCode, errs.Code(resp.Err))
			} else {
				require.NoError(t, resp.Err)
				assert.Equal(t, &accepted{ID: tc.expectedID}, resp.Payload)
			}

			entry, ok := fake.entries[key]
			if tc.expectedEntry == nil {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, *tc.expectedEntry, entry.Status)
		})
	}
}

func TestDedupMiddleware_RecordsResponse(t *testing.T) {
	fake := useFakeEntries(t)
	next := func(middleware.Request) middleware.Response {
		return middleware.Response{Payload: &accepted{ID: "q-7"}}
	}

	DedupMiddleware(newRequest("req-7", &submission{MCC: 242}), next)

	entry := fake.entries[model.DedupKey{Route: path, RequestID: "req-7"}]
	assert.JSONEq(t, `{"id":"q-7"}`, string(entry.Response))
	assert.Equal(t, bodyHashOf(t, &submission{MCC: 242}), entry.BodyHash)
}

func TestDedupMiddleware_CacheUnavailable(t *testing.T) {
	fake := useFakeEntries(t)
	fake.err = errors.New("connection refused")
	called := false
	next := func(middleware.Request) middleware.Response {
		called = true
		return middleware.Response{}
	}

	resp := DedupMiddleware(newRequest("req-1", &submission{MCC: 242}), next)

	assert.False(t, called)
	assert.Equal(t, errs.Unavailable, errs.Code(resp.Err))
}

func TestExtractRequestID(t *testing.T) {
	testCases := []struct {
		name     string
		headers  http.Header
		expected string
	}{
		{name: "present", headers: http.Header{RequestIDHeader: []string{"abc-123"}}, expected: "abc-123"},
		{name: "whitespace_only", headers: http.Header{RequestIDHeader: []string{"   "}}},
		{name: "missing", headers: http.Header{}},
		{name: "first_value_wins", headers: http.Header{RequestIDHeader: []string{"first", "second"}}, expected: "first"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := middleware.NewRequest(context.Background(), &encore.Request{Path: path, Headers: tc.headers})
			assert.Equal(t, tc.expected, extractRequestID(req))
		})
	}
}

func TestDecodeResponse(t *testing.T) {
	v, err := decodeResponse(reflect.TypeOf(&accepted{}), json.RawMessage(`{"id":"q-1"}`))
	require.NoError(t, err)
	assert.Equal(t, &accepted{ID: "q-1"}, v)

	_, err = decodeResponse(reflect.TypeOf(&accepted{}), json.RawMessage(`{`))
	assert.Error(t, err)
}

func ptr[T any](v T) *T { return &v }
