package resolution

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"encore.dev/rlog"

	"encore.app/locator/model"
)

//go:generate mockgen -source=starter.go -destination=../mocks/resolution/starter/starter.go -package=starter

// Starter launches a resolution execution unless one already exists for the input's
// execution ID. It never waits for the execution to finish.
type Starter interface {
	StartIfAbsent(ctx context.Context, input model.ResolutionInput) (model.StartResult, error)
}

// LocalStarter runs executions as goroutines of this process. Its compare-and-swap on
// the execution ID covers one process; the cache placeholder covers the rest.
type LocalStarter struct {
	workflow *Workflow

	running sync.Map // execution ID -> owner token
	wg      sync.WaitGroup

	base   context.Context
	cancel context.CancelFunc
}

// NewLocalStarter returns a starter whose executions outlive the caller's context.
func NewLocalStarter(workflow *Workflow) *LocalStarter {
	base, cancel := context.WithCancel(context.Background())
	return &LocalStarter{workflow: workflow, base: base, cancel: cancel}
}

func (s *LocalStarter) StartIfAbsent(ctx context.Context, input model.ResolutionInput) (model.StartResult, error) {
	id := input.ExecutionID()
	owner := uuid.NewString()
	if _, loaded := s.running.LoadOrStore(id, owner); loaded {
		rlog.Debug("resolution already running", "execution_id", id)
		return model.AlreadyExists, nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Delete(id)

		if _, err := s.workflow.Run(s.base, input, owner); err != nil {
			rlog.Warn("local resolution ended without a terminal write", "execution_id", id, "error", err)
		}
	}()

	rlog.Info("resolution started", "execution_id", id, "owner", owner)
	return model.Started, nil
}

// Running reports whether an execution with id is in flight.
func (s *LocalStarter) Running(id string) bool {
	_, ok := s.running.Load(id)
	return ok
}

// Wait blocks until every started execution has returned.
func (s *LocalStarter) Wait() {
	s.wg.Wait()
}

// Close cancels in-flight executions and waits for them.
func (s *LocalStarter) Close() {
	s.cancel()
	s.wg.Wait()
}
