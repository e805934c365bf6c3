// Package service contains the job dispatcher: it consumes inbound job
// messages in delivery order and runs each job in its own goroutine so
// consumption is never blocked by execution latency.
package service

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"boxrunner/internal/common/mq"
	"boxrunner/internal/runner/engine"
	"boxrunner/internal/runner/model"
	"boxrunner/internal/runner/repository"
	"boxrunner/internal/runner/workspace"
	appErr "boxrunner/pkg/errors"
	"boxrunner/pkg/utils/logger"
)

// Service dispatches inbound jobs to isolated execution pipelines.
type Service struct {
	workspaces *workspace.Manager
	engine     engine.Engine
	publisher  repository.ResultPublisher
	sem        chan struct{}

	wg       sync.WaitGroup
	inFlight atomic.Int64
	done     atomic.Int64
	dropped  atomic.Int64
}

// Config holds service dependencies and settings.
type Config struct {
	Workspaces *workspace.Manager
	Engine     engine.Engine
	Publisher  repository.ResultPublisher
	// WorkerPoolSize bounds the number of in-flight jobs. Saturation
	// blocks new dispatch; it never drops a message, since the inbound
	// stream is the only durable record of the request.
	WorkerPoolSize int
}

// NewService creates a new runner service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Workspaces == nil {
		return nil, appErr.ValidationError("workspaces", "required")
	}
	if cfg.Engine == nil {
		return nil, appErr.ValidationError("engine", "required")
	}
	if cfg.Publisher == nil {
		return nil, appErr.ValidationError("publisher", "required")
	}
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	return &Service{
		workspaces: cfg.Workspaces,
		engine:     cfg.Engine,
		publisher:  cfg.Publisher,
		sem:        make(chan struct{}, poolSize),
	}, nil
}

// HandleMessage processes one inbound job message. It is invoked strictly
// in delivery order and must stay cheap: parse, admit, dispatch. All
// blocking work happens in the per-job goroutine. The returned error is
// informational only; the message is consumed either way, so every
// failure path here is a dropped job.
func (s *Service) HandleMessage(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("message is nil")
	}
	job, err := model.ParseJob(msg.Body)
	if err != nil {
		s.dropped.Add(1)
		logger.Error(ctx, "job dropped: malformed message",
			zap.Int("body_bytes", len(msg.Body)),
			zap.Error(err))
		return err
	}

	// Admission control: wait for a worker slot. Blocking here holds up
	// consumption, which is the intended backpressure.
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		s.dropped.Add(1)
		logger.Error(ctx, "job dropped: shutdown during admission",
			zap.String("submit_id", job.SubmitID))
		return ctx.Err()
	}

	// An admitted job must outlive the consumer: stopping the
	// subscription cancels the handler context, but in-flight jobs still
	// finish and publish before Wait returns. Context values (trace
	// fields) carry over.
	jobCtx := context.WithoutCancel(ctx)

	s.wg.Add(1)
	s.inFlight.Add(1)
	go func() {
		defer func() {
			<-s.sem
			s.inFlight.Add(-1)
			s.wg.Done()
		}()
		s.execute(jobCtx, job)
	}()
	return nil
}

// execute runs the full pipeline for one job: stage, write commands,
// invoke the isolation runtime, read results, publish. Any failure drops
// the job; the submit_id is always logged so the silent-to-the-caller
// drop stays visible to operators.
func (s *Service) execute(ctx context.Context, job model.Job) {
	jobLog := logger.WithFields(ctx, zap.String("submit_id", job.SubmitID), zap.String("profile", job.Profile))

	handle, err := s.workspaces.Stage(job.SubmitID)
	if err != nil {
		s.dropped.Add(1)
		jobLog.Error("job dropped: stage workspace failed", zap.Error(err))
		return
	}
	defer s.workspaces.Release(handle)

	if err := s.workspaces.WriteCommands(handle, job.Commands); err != nil {
		s.dropped.Add(1)
		jobLog.Error("job dropped: write commands failed", zap.Error(err))
		return
	}

	if err := s.engine.Execute(ctx, handle.Dir, job.Profile); err != nil {
		s.dropped.Add(1)
		jobLog.Error("job dropped: isolation runtime invocation failed", zap.Error(err))
		return
	}

	results, err := s.workspaces.ReadResult(handle)
	if err != nil {
		s.dropped.Add(1)
		jobLog.Error("job dropped: read result failed", zap.Error(err))
		return
	}

	// One result per command, in command order. A mismatch means the
	// isolation runtime violated its contract; the result cannot be
	// trusted and is never published.
	if len(results) != len(job.Commands) {
		s.dropped.Add(1)
		jobLog.Error("job dropped: result count mismatch",
			zap.Int("commands", len(job.Commands)),
			zap.Int("results", len(results)))
		return
	}

	jobResult := model.JobResult{
		Results:  results,
		SubmitID: job.SubmitID,
	}
	if err := s.publisher.Publish(ctx, jobResult); err != nil {
		s.dropped.Add(1)
		jobLog.Error("job result lost: publish failed", zap.Error(err))
		return
	}

	s.done.Add(1)
	jobLog.Info("job result published", zap.Int("commands", len(job.Commands)))
}

// InFlight returns the number of jobs currently executing.
func (s *Service) InFlight() int64 {
	return s.inFlight.Load()
}

// Stats returns completed and dropped job counts since startup.
func (s *Service) Stats() (done, dropped int64) {
	return s.done.Load(), s.dropped.Load()
}

// Wait blocks until all in-flight jobs finish. Called during shutdown
// after the consumer has stopped.
func (s *Service) Wait() {
	s.wg.Wait()
}
