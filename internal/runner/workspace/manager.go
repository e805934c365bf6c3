// Package workspace stages isolated per-job execution directories.
//
// Isolation between concurrent jobs is by construction: every workspace
// lives under a uuid-v4 name, so disjoint paths replace any cross-job
// locking.
package workspace

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"boxrunner/internal/runner/model"
	appErr "boxrunner/pkg/errors"
)

const (
	// CommandsFile is the well-known name the isolation runtime reads
	// the serialized command list from.
	CommandsFile = "commands.yaml"
	// ResultsFile is the well-known name the isolation runtime writes
	// the serialized result list to.
	ResultsFile = "results.yaml"
)

// Handle identifies one staged workspace.
type Handle struct {
	ID  string
	Dir string
}

// Manager stages and releases per-job workspaces under a fixed root,
// seeding each from a baseline template directory.
type Manager struct {
	templateDir string
	rootDir     string
}

// NewManager creates a workspace manager. A missing template directory is
// a configuration error and fails construction; it is never recoverable
// per job.
func NewManager(templateDir, rootDir string) (*Manager, error) {
	if templateDir == "" {
		return nil, appErr.ValidationError("template_dir", "required")
	}
	if rootDir == "" {
		return nil, appErr.ValidationError("root_dir", "required")
	}
	info, err := os.Stat(templateDir)
	if err != nil || !info.IsDir() {
		return nil, appErr.Newf(appErr.TemplateMissing, "workspace template %q is missing", templateDir)
	}
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "create workspace root failed")
	}
	return &Manager{templateDir: templateDir, rootDir: rootDir}, nil
}

// Stage creates a fresh uniquely-named workspace and copies the baseline
// template into it. The directory is world-writable because the isolation
// runtime executes the payload as an arbitrary uid inside the container.
func (m *Manager) Stage(jobID string) (*Handle, error) {
	if jobID == "" {
		return nil, appErr.ValidationError("job_id", "required")
	}
	id := uuid.NewString()
	dir := filepath.Join(m.rootDir, id)
	if err := os.Mkdir(dir, 0777); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "create workspace failed")
	}
	if err := os.Chmod(dir, 0777); err != nil {
		_ = os.RemoveAll(dir)
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "chmod workspace failed")
	}
	if err := copyTree(m.templateDir, dir); err != nil {
		_ = os.RemoveAll(dir)
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "copy workspace template failed")
	}
	return &Handle{ID: id, Dir: dir}, nil
}

// WriteCommands serializes the ordered command list into the workspace.
func (m *Manager) WriteCommands(h *Handle, commands []model.Command) error {
	if h == nil {
		return appErr.ValidationError("handle", "required")
	}
	data, err := model.EncodeCommands(commands)
	if err != nil {
		return err
	}
	path := filepath.Join(h.Dir, CommandsFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return appErr.Wrapf(err, appErr.WorkspaceError, "write commands file failed")
	}
	return nil
}

// ReadResult reads and parses the result file the isolation runtime left
// in the workspace. An absent file means the runtime never produced
// output (e.g. it crashed before writing).
func (m *Manager) ReadResult(h *Handle) ([]model.CommandResult, error) {
	if h == nil {
		return nil, appErr.ValidationError("handle", "required")
	}
	path := filepath.Join(h.Dir, ResultsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, appErr.Wrapf(err, appErr.ResultMissing, "result file not found")
		}
		return nil, appErr.Wrapf(err, appErr.WorkspaceError, "read result file failed")
	}
	return model.ParseResults(data)
}

// Release deletes the workspace. It is idempotent and nil-safe; callers
// defer it on every exit path, so a leftover workspace is always a defect
// of the manager, never of the caller.
func (m *Manager) Release(h *Handle) {
	if h == nil || h.Dir == "" {
		return
	}
	_ = os.RemoveAll(h.Dir)
}

// copyTree recursively copies the template tree, preserving file modes.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(dst, rel)
		info, err := entry.Info()
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, mode os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return err
	}
	return dstFile.Chmod(mode)
}
