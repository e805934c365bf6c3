// Package engine invokes the external isolation runtime against a staged
// workspace. The runtime enforces all resource budgets and writes the
// result file; this adapter only launches it and classifies launch-level
// failures.
package engine

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"

	appErr "boxrunner/pkg/errors"
	"boxrunner/pkg/utils/logger"
)

// Engine launches the isolation runtime for one job and blocks until it
// exits. The runtime's exit code is never interpreted as job success or
// failure; job outcomes come exclusively from the result file.
type Engine interface {
	Execute(ctx context.Context, workDir, profile string) error
}

// Config holds container runtime invocation settings.
type Config struct {
	// RuntimeBinary is the container runtime executable, default "docker".
	RuntimeBinary string
	// MountTarget is where the workspace is mounted inside the container.
	MountTarget string
	// Entrypoint is the relative path of the baseline-image runner
	// executable inside the workspace.
	Entrypoint string
}

type containerEngine struct {
	cfg      Config
	resolver ImageResolver
}

// NewEngine creates a container-backed isolation runtime adapter.
func NewEngine(cfg Config, resolver ImageResolver) (Engine, error) {
	if resolver == nil {
		return nil, appErr.ValidationError("resolver", "required")
	}
	if cfg.RuntimeBinary == "" {
		cfg.RuntimeBinary = "docker"
	}
	if cfg.MountTarget == "" {
		cfg.MountTarget = "/sandbox"
	}
	if cfg.Entrypoint == "" {
		cfg.Entrypoint = "sandbox"
	}
	return &containerEngine{cfg: cfg, resolver: resolver}, nil
}

// Execute runs the isolation runtime bound to the workspace directory.
// A failure to launch the runtime at all is a RuntimeLaunchFailed error,
// handled by the caller as a job-level failure; a nonzero runtime exit is
// not an error here.
func (e *containerEngine) Execute(ctx context.Context, workDir, profile string) error {
	if workDir == "" {
		return appErr.ValidationError("work_dir", "required")
	}
	image, err := e.resolver.Resolve(profile)
	if err != nil {
		return err
	}
	absDir, err := filepath.Abs(workDir)
	if err != nil {
		return appErr.Wrapf(err, appErr.RuntimeLaunchFailed, "resolve workspace path failed")
	}

	cmd := exec.CommandContext(ctx, e.cfg.RuntimeBinary,
		"run", "--rm",
		"-v", absDir+":"+e.cfg.MountTarget,
		"-w", e.cfg.MountTarget,
		image,
		"./"+e.cfg.Entrypoint,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return appErr.Wrapf(err, appErr.RuntimeLaunchFailed, "start isolation runtime failed")
	}

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return appErr.Wrapf(ctx.Err(), appErr.Timeout, "isolation runtime interrupted")
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			// Per-command failures are reported through the result
			// file, not through the runtime's exit code.
			logger.Debug(ctx, "isolation runtime exited nonzero",
				zap.Int("exit_code", exitErr.ExitCode()),
				zap.String("stderr", stderr.String()))
			return nil
		}
		return appErr.Wrapf(waitErr, appErr.RuntimeLaunchFailed, "wait isolation runtime failed")
	}
	return nil
}
