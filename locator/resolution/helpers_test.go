package resolution

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"encore.app/locator/model"
	"encore.app/locator/resolver"
)

const cellRequestJSON = `{"mcc":242,"mnc":1,"cell":21626624,"area":30401}`

// bin14 is an instant inside the 2023-05-17T14 hour bin.
var bin14 = time.Date(2023, 5, 17, 14, 20, 0, 0, time.UTC)

const cellKey14 = "242-1-21626624-30401-2023-05-17T14"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// runSync makes best-effort notifications synchronous for the duration of a test.
func runSync(t *testing.T) {
	t.Helper()
	prev := runAsync
	runAsync = func(_ string, fn func(ctx context.Context) error) {
		_ = fn(context.Background())
	}
	t.Cleanup(func() { runAsync = prev })
}

// cellEngine is a cell-domain engine backed by fn that counts its calls.
type cellEngine struct {
	calls atomic.Int32
	fn    func(ctx context.Context, req model.CellRequest) (resolver.Result[model.Location], error)
}

func (e *cellEngine) registry() *resolver.Registry {
	r := resolver.Func[model.CellRequest, model.Location](func(ctx context.Context, req model.CellRequest) (resolver.Result[model.Location], error) {
		e.calls.Add(1)
		return e.fn(ctx, req)
	})
	return resolver.NewRegistry(resolver.NewAdapter[model.CellRequest, model.Location](model.DomainCell, r))
}

func noData(context.Context, model.CellRequest) (resolver.Result[model.Location], error) {
	return resolver.NoData[model.Location](), nil
}

func found(context.Context, model.CellRequest) (resolver.Result[model.Location], error) {
	return resolver.Found(model.Location{Lat: 63.42, Lng: 10.43, Accuracy: 440, Source: "SCELL"}), nil
}

// recordingNotifier keeps every response it is handed.
type recordingNotifier struct {
	mu        sync.Mutex
	responses []model.DeviceResponse
}

func (n *recordingNotifier) Publish(_ context.Context, _, _ string, resp model.DeviceResponse) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.responses = append(n.responses, resp)
	return nil
}

func (n *recordingNotifier) all() []model.DeviceResponse {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.DeviceResponse(nil), n.responses...)
}

func cellInput(deadline time.Time) model.ResolutionInput {
	return model.ResolutionInput{
		Domain:   model.DomainCell,
		Key:      cellKey14,
		Request:  json.RawMessage(cellRequestJSON),
		Deadline: deadline,
	}
}
