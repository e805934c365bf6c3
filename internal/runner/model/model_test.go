package model_test

import (
	"reflect"
	"strings"
	"testing"

	"boxrunner/internal/runner/model"
	pkgerrors "boxrunner/pkg/errors"
)

func sampleJob() model.Job {
	return model.Job{
		Commands: []model.Command{
			{
				Command: "sh",
				Args:    []string{"-c", "echo hi > greeting.txt"},
				Budget: model.Budget{
					TimeLimit:      1,
					TimeReserved:   1,
					MemoryLimit:    256000,
					MemoryReserved: 4096000,
				},
			},
			{
				Command: "cat",
				Args:    []string{"greeting.txt"},
				Input:   "unused",
				Budget: model.Budget{
					TimeLimit:      2,
					TimeReserved:   1,
					MemoryLimit:    512000,
					MemoryReserved: 4096000,
					LargeStack:     true,
					OutputLimit:    4096,
					ProcessLimit:   8,
				},
			},
		},
		Profile:  "gcc14",
		SubmitID: "sub-42",
	}
}

func TestJobRoundTrip(t *testing.T) {
	job := sampleJob()
	data, err := job.Encode()
	if err != nil {
		t.Fatalf("encode job: %v", err)
	}
	parsed, err := model.ParseJob(data)
	if err != nil {
		t.Fatalf("parse job: %v", err)
	}
	if !reflect.DeepEqual(job, parsed) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", job, parsed)
	}
}

func TestParseJobMalformed(t *testing.T) {
	_, err := model.ParseJob([]byte("commands: [not, a, job"))
	if err == nil {
		t.Fatal("expected parse error for malformed yaml")
	}
	if pkgerrors.GetCode(err) != pkgerrors.JobMalformed {
		t.Fatalf("expected JobMalformed, got %d", pkgerrors.GetCode(err))
	}
}

func TestParseJobValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.Job)
	}{
		{"missing submit id", func(j *model.Job) { j.SubmitID = "" }},
		{"missing profile", func(j *model.Job) { j.Profile = "" }},
		{"no commands", func(j *model.Job) { j.Commands = nil }},
		{"empty command", func(j *model.Job) { j.Commands[0].Command = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := sampleJob()
			tc.mutate(&job)
			data, err := job.Encode()
			if err != nil {
				t.Fatalf("encode job: %v", err)
			}
			if _, err := model.ParseJob(data); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestOutcomeClosedSet(t *testing.T) {
	valid := `- state: Success
  stdout: "ok"
  stderr: ""
  time: 1
  memory: 2048
- state: TimeLimitExceeded
  stdout: ""
  stderr: ""
  time: 1
  memory: 0
`
	results, err := model.ParseResults([]byte(valid))
	if err != nil {
		t.Fatalf("parse results: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Outcome != model.OutcomeSuccess {
		t.Fatalf("expected Success, got %s", results[0].Outcome)
	}
	if results[1].Outcome != model.OutcomeTimeLimitExceeded {
		t.Fatalf("expected TimeLimitExceeded, got %s", results[1].Outcome)
	}

	unknown := strings.Replace(valid, "Success", "Exploded", 1)
	if _, err := model.ParseResults([]byte(unknown)); err == nil {
		t.Fatal("expected error for unknown outcome")
	}
}

func TestOutcomeValid(t *testing.T) {
	for _, o := range []model.Outcome{
		model.OutcomeSuccess,
		model.OutcomeRuntimeError,
		model.OutcomeTimeLimitExceeded,
		model.OutcomeMemoryLimitExceeded,
		model.OutcomeOtherError,
	} {
		if !o.Valid() {
			t.Fatalf("expected %s to be valid", o)
		}
	}
	if model.Outcome("Pending").Valid() {
		t.Fatal("expected Pending to be invalid")
	}
}

func TestJobResultRoundTrip(t *testing.T) {
	result := model.JobResult{
		Results: []model.CommandResult{
			{Outcome: model.OutcomeSuccess, Stdout: "gcc (GCC) 14.2.0\n", Time: 1, Memory: 1024},
			{Outcome: model.OutcomeRuntimeError, Stderr: "segfault", Time: 2, Memory: 2048},
			{Outcome: model.OutcomeOtherError, Stderr: "Error occurred"},
		},
		SubmitID: "sub-42",
	}
	data, err := result.Encode()
	if err != nil {
		t.Fatalf("encode result: %v", err)
	}
	parsed, err := model.ParseJobResult(data)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if !reflect.DeepEqual(result, parsed) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", result, parsed)
	}
}

func TestEncodeCommandsMatchesCommandsFileFormat(t *testing.T) {
	job := sampleJob()
	data, err := model.EncodeCommands(job.Commands)
	if err != nil {
		t.Fatalf("encode commands: %v", err)
	}
	if !strings.Contains(string(data), "command: sh") {
		t.Fatalf("expected command field in output, got:\n%s", data)
	}
	if !strings.Contains(string(data), "time_limit: 1") {
		t.Fatalf("expected budget fields in output, got:\n%s", data)
	}
}
