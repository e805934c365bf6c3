package model

import (
	"gopkg.in/yaml.v3"

	appErr "boxrunner/pkg/errors"
)

// Outcome is the closed classification of one command's execution.
// The set is closed on purpose: every consumer must handle all five
// states, and nothing outside the set ever enters the system.
type Outcome string

const (
	OutcomeSuccess             Outcome = "Success"
	OutcomeRuntimeError        Outcome = "RuntimeError"
	OutcomeTimeLimitExceeded   Outcome = "TimeLimitExceeded"
	OutcomeMemoryLimitExceeded Outcome = "MemoryLimitExceeded"
	// OutcomeOtherError means the isolation runtime itself failed to
	// execute the command (launch failure, unsupported instruction).
	OutcomeOtherError Outcome = "OtherError"
)

// Valid reports whether the outcome is a member of the closed set.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeRuntimeError, OutcomeTimeLimitExceeded,
		OutcomeMemoryLimitExceeded, OutcomeOtherError:
		return true
	}
	return false
}

// UnmarshalYAML rejects any value outside the closed outcome set.
func (o *Outcome) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return appErr.Wrapf(err, appErr.OutcomeUnknown, "decode outcome failed")
	}
	parsed := Outcome(raw)
	if !parsed.Valid() {
		return appErr.Newf(appErr.OutcomeUnknown, "unknown outcome: %q", raw)
	}
	*o = parsed
	return nil
}

// CommandResult is the terminal result of exactly one Command.
// Time and Memory units mirror the Budget units; the orchestrator
// forwards them without interpretation.
type CommandResult struct {
	Outcome Outcome `yaml:"state"`
	Stdout  string  `yaml:"stdout"`
	Stderr  string  `yaml:"stderr"`
	Time    uint64  `yaml:"time"`
	Memory  uint64  `yaml:"memory"`
}

// JobResult is the unit published back to the caller: one CommandResult
// per Command, in command order, correlated by the submission identifier.
type JobResult struct {
	Results  []CommandResult `yaml:"results"`
	SubmitID string          `yaml:"submit_id"`
}

// ParseResults deserializes the ordered result list written by the
// isolation runtime.
func ParseResults(data []byte) ([]CommandResult, error) {
	var results []CommandResult
	if err := yaml.Unmarshal(data, &results); err != nil {
		return nil, appErr.Wrapf(err, appErr.ResultMalformed, "decode results failed")
	}
	return results, nil
}

// Encode serializes the JobResult for a message body.
func (r JobResult) Encode() ([]byte, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalError, "encode job result failed")
	}
	return data, nil
}

// ParseJobResult deserializes a JobResult from a message body.
func ParseJobResult(data []byte) (JobResult, error) {
	var result JobResult
	if err := yaml.Unmarshal(data, &result); err != nil {
		return JobResult{}, appErr.Wrapf(err, appErr.ResultMalformed, "decode job result failed")
	}
	return result, nil
}
