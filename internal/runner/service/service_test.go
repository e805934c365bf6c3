package service_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"boxrunner/internal/common/mq"
	"boxrunner/internal/runner/model"
	"boxrunner/internal/runner/service"
	"boxrunner/internal/runner/workspace"
	pkgerrors "boxrunner/pkg/errors"
)

// fakeEngine stands in for the container runtime: it writes a result
// file into the workspace the way the real runtime would.
type fakeEngine struct {
	mu       sync.Mutex
	workDirs []string

	// resultCount is how many command results to write; -1 writes no
	// result file at all.
	resultCount int
	err         error
	block       chan struct{}
}

func (f *fakeEngine) Execute(ctx context.Context, workDir, profile string) error {
	f.mu.Lock()
	f.workDirs = append(f.workDirs, workDir)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.err != nil {
		return f.err
	}
	if f.resultCount < 0 {
		return nil
	}

	var sb strings.Builder
	for i := 0; i < f.resultCount; i++ {
		fmt.Fprintf(&sb, "- state: Success\n  stdout: \"step %d\"\n  stderr: \"\"\n  time: 1\n  memory: 1024\n", i)
	}
	return os.WriteFile(filepath.Join(workDir, workspace.ResultsFile), []byte(sb.String()), 0644)
}

func (f *fakeEngine) lastWorkDir() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.workDirs) == 0 {
		return ""
	}
	return f.workDirs[len(f.workDirs)-1]
}

type fakePublisher struct {
	published chan model.JobResult
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{published: make(chan model.JobResult, 16)}
}

func (f *fakePublisher) Publish(ctx context.Context, result model.JobResult) error {
	f.published <- result
	return nil
}

func newManager(t *testing.T) *workspace.Manager {
	t.Helper()
	templateDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(templateDir, "sandbox"), []byte("#!/bin/sh\n"), 0755); err != nil {
		t.Fatalf("write template: %v", err)
	}
	m, err := workspace.NewManager(templateDir, t.TempDir())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func newService(t *testing.T, eng *fakeEngine, pub *fakePublisher, poolSize int) *service.Service {
	t.Helper()
	svc, err := service.NewService(service.Config{
		Workspaces:     newManager(t),
		Engine:         eng,
		Publisher:      pub,
		WorkerPoolSize: poolSize,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func jobMessage(t *testing.T, submitID string, commandCount int) *mq.Message {
	t.Helper()
	commands := make([]model.Command, commandCount)
	for i := range commands {
		commands[i] = model.Command{
			Command: "sh",
			Args:    []string{"-c", fmt.Sprintf("echo step %d", i)},
			Budget:  model.Budget{TimeLimit: 1, MemoryLimit: 256000},
		}
	}
	job := model.Job{Commands: commands, Profile: "gcc14", SubmitID: submitID}
	body, err := job.Encode()
	if err != nil {
		t.Fatalf("encode job: %v", err)
	}
	msg := mq.NewMessage(body)
	msg.ID = submitID
	return msg
}

func waitResult(t *testing.T, pub *fakePublisher) model.JobResult {
	t.Helper()
	select {
	case result := <-pub.published:
		return result
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for published result")
		return model.JobResult{}
	}
}

func TestJobExecutedAndPublished(t *testing.T) {
	eng := &fakeEngine{resultCount: 3}
	pub := newFakePublisher()
	svc := newService(t, eng, pub, 2)

	if err := svc.HandleMessage(context.Background(), jobMessage(t, "sub-1", 3)); err != nil {
		t.Fatalf("handle message: %v", err)
	}

	result := waitResult(t, pub)
	if result.SubmitID != "sub-1" {
		t.Fatalf("unexpected submit id %q", result.SubmitID)
	}
	if len(result.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(result.Results))
	}
	for i, r := range result.Results {
		if r.Outcome != model.OutcomeSuccess {
			t.Fatalf("result %d: unexpected outcome %s", i, r.Outcome)
		}
		if want := fmt.Sprintf("step %d", i); r.Stdout != want {
			t.Fatalf("result %d out of order: stdout %q", i, r.Stdout)
		}
	}

	svc.Wait()
	if dir := eng.lastWorkDir(); dir != "" {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Fatalf("expected workspace released, stat err: %v", err)
		}
	}
	done, dropped := svc.Stats()
	if done != 1 || dropped != 0 {
		t.Fatalf("expected 1 done 0 dropped, got %d/%d", done, dropped)
	}
}

func TestMalformedMessageDroppedConsumptionContinues(t *testing.T) {
	eng := &fakeEngine{resultCount: 1}
	pub := newFakePublisher()
	svc := newService(t, eng, pub, 2)

	bad := mq.NewMessage([]byte("commands: [not, a, job"))
	err := svc.HandleMessage(context.Background(), bad)
	if err == nil {
		t.Fatal("expected error for malformed message")
	}
	if pkgerrors.GetCode(err) != pkgerrors.JobMalformed {
		t.Fatalf("expected JobMalformed, got %d", pkgerrors.GetCode(err))
	}

	// The bad message is dropped; the next one still runs.
	if err := svc.HandleMessage(context.Background(), jobMessage(t, "sub-2", 1)); err != nil {
		t.Fatalf("handle message after drop: %v", err)
	}
	result := waitResult(t, pub)
	if result.SubmitID != "sub-2" {
		t.Fatalf("unexpected submit id %q", result.SubmitID)
	}

	svc.Wait()
	done, dropped := svc.Stats()
	if done != 1 || dropped != 1 {
		t.Fatalf("expected 1 done 1 dropped, got %d/%d", done, dropped)
	}
}

func TestEngineFailureDropsJob(t *testing.T) {
	eng := &fakeEngine{err: pkgerrors.New(pkgerrors.RuntimeLaunchFailed)}
	pub := newFakePublisher()
	svc := newService(t, eng, pub, 2)

	if err := svc.HandleMessage(context.Background(), jobMessage(t, "sub-3", 1)); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	svc.Wait()

	select {
	case result := <-pub.published:
		t.Fatalf("expected no published result, got %+v", result)
	default:
	}
	done, dropped := svc.Stats()
	if done != 0 || dropped != 1 {
		t.Fatalf("expected 0 done 1 dropped, got %d/%d", done, dropped)
	}
}

func TestMissingResultDropsJob(t *testing.T) {
	eng := &fakeEngine{resultCount: -1}
	pub := newFakePublisher()
	svc := newService(t, eng, pub, 2)

	if err := svc.HandleMessage(context.Background(), jobMessage(t, "sub-4", 1)); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	svc.Wait()

	select {
	case result := <-pub.published:
		t.Fatalf("expected no published result, got %+v", result)
	default:
	}
	_, dropped := svc.Stats()
	if dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", dropped)
	}
}

func TestResultCountMismatchDropsJob(t *testing.T) {
	// Two commands in, one result out: the runtime broke its contract and
	// the result must never be published.
	eng := &fakeEngine{resultCount: 1}
	pub := newFakePublisher()
	svc := newService(t, eng, pub, 2)

	if err := svc.HandleMessage(context.Background(), jobMessage(t, "sub-5", 2)); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	svc.Wait()

	select {
	case result := <-pub.published:
		t.Fatalf("expected no published result, got %+v", result)
	default:
	}
	_, dropped := svc.Stats()
	if dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", dropped)
	}
}

func TestShutdownDrainsInFlightJob(t *testing.T) {
	eng := &fakeEngine{resultCount: 1, block: make(chan struct{})}
	pub := newFakePublisher()
	svc := newService(t, eng, pub, 1)

	handlerCtx, cancel := context.WithCancel(context.Background())
	if err := svc.HandleMessage(handlerCtx, jobMessage(t, "sub-8", 1)); err != nil {
		t.Fatalf("handle message: %v", err)
	}

	// Consumer teardown cancels the handler context while the job is
	// still running; the admitted job must finish and publish anyway.
	cancel()
	close(eng.block)
	svc.Wait()

	result := waitResult(t, pub)
	if result.SubmitID != "sub-8" {
		t.Fatalf("unexpected submit id %q", result.SubmitID)
	}
	done, dropped := svc.Stats()
	if done != 1 || dropped != 0 {
		t.Fatalf("expected 1 done 0 dropped, got %d/%d", done, dropped)
	}
}

func TestPoolSaturationBlocksDispatch(t *testing.T) {
	eng := &fakeEngine{resultCount: 1, block: make(chan struct{})}
	pub := newFakePublisher()
	svc := newService(t, eng, pub, 1)

	if err := svc.HandleMessage(context.Background(), jobMessage(t, "sub-6", 1)); err != nil {
		t.Fatalf("handle first message: %v", err)
	}

	secondAdmitted := make(chan struct{})
	go func() {
		_ = svc.HandleMessage(context.Background(), jobMessage(t, "sub-7", 1))
		close(secondAdmitted)
	}()

	// With a single worker slot occupied, the second dispatch must block
	// rather than drop.
	select {
	case <-secondAdmitted:
		t.Fatal("expected second dispatch to block while pool is saturated")
	case <-time.After(100 * time.Millisecond):
	}

	close(eng.block)
	select {
	case <-secondAdmitted:
	case <-time.After(5 * time.Second):
		t.Fatal("second dispatch never admitted after slot freed")
	}

	if got := waitResult(t, pub).SubmitID; got != "sub-6" {
		t.Fatalf("expected sub-6 first, got %q", got)
	}
	if got := waitResult(t, pub).SubmitID; got != "sub-7" {
		t.Fatalf("expected sub-7 second, got %q", got)
	}
	svc.Wait()
}
