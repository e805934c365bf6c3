// Package model defines the job schema shared by message bodies and
// workspace files. The YAML tags are the wire format.
package model

import (
	"gopkg.in/yaml.v3"

	appErr "boxrunner/pkg/errors"
)

// Budget is the per-command resource ceiling. All values are opaque
// non-negative integers forwarded to the isolation runtime untouched;
// the orchestrator never interprets their units.
type Budget struct {
	TimeLimit      uint64 `yaml:"time_limit"`
	TimeReserved   uint64 `yaml:"time_reserved"`
	MemoryLimit    uint64 `yaml:"memory_limit"`
	MemoryReserved uint64 `yaml:"memory_reserved"`
	LargeStack     bool   `yaml:"large_stack"`
	// OutputLimit of 0 means unlimited.
	OutputLimit uint64 `yaml:"output_limit"`
	// ProcessLimit of 0 means unlimited.
	ProcessLimit uint64 `yaml:"process_limit"`
}

// Command is one step of a submission. Later commands see the filesystem
// state left by earlier ones, so order is execution order.
type Command struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Input   string   `yaml:"input"`
	Budget  Budget   `yaml:"budget"`
}

// Job is one submission: an ordered command sequence, the isolation
// profile selecting the runtime image, and the caller-assigned submission
// identifier used only for result correlation.
type Job struct {
	Commands []Command `yaml:"commands"`
	Profile  string    `yaml:"profile"`
	SubmitID string    `yaml:"submit_id"`
}

// ParseJob deserializes and validates a Job from a message body.
func ParseJob(data []byte) (Job, error) {
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return Job{}, appErr.Wrapf(err, appErr.JobMalformed, "decode job failed")
	}
	if err := job.Validate(); err != nil {
		return Job{}, err
	}
	return job, nil
}

// Validate checks the fields the orchestrator depends on. Budget values
// are not validated beyond their types; they belong to the runtime.
func (j Job) Validate() error {
	if j.SubmitID == "" {
		return appErr.ValidationError("submit_id", "required")
	}
	if j.Profile == "" {
		return appErr.ValidationError("profile", "required")
	}
	if len(j.Commands) == 0 {
		return appErr.ValidationError("commands", "required")
	}
	for _, cmd := range j.Commands {
		if cmd.Command == "" {
			return appErr.ValidationError("command", "required")
		}
	}
	return nil
}

// Encode serializes the Job for a message body.
func (j Job) Encode() ([]byte, error) {
	data, err := yaml.Marshal(j)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalError, "encode job failed")
	}
	return data, nil
}

// EncodeCommands serializes the ordered command list for the workspace
// commands file.
func EncodeCommands(commands []Command) ([]byte, error) {
	data, err := yaml.Marshal(commands)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalError, "encode commands failed")
	}
	return data, nil
}
