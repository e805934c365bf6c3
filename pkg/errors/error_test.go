package errors_test

import (
	stderrors "errors"
	"testing"

	"boxrunner/pkg/errors"
)

func TestNewAndMessage(t *testing.T) {
	err := errors.New(errors.JobMalformed)
	if err.Code != errors.JobMalformed {
		t.Fatalf("unexpected code %d", err.Code)
	}
	if err.Error() != errors.JobMalformed.Message() {
		t.Fatalf("unexpected message %q", err.Error())
	}

	custom := errors.Newf(errors.ProfileUnknown, "no image for %q", "python3")
	if custom.Error() != `no image for "python3"` {
		t.Fatalf("unexpected message %q", custom.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := errors.Wrapf(cause, errors.WorkspaceError, "stage workspace failed")

	if errors.GetCode(err) != errors.WorkspaceError {
		t.Fatalf("unexpected code %d", errors.GetCode(err))
	}
	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped error to match its cause")
	}
	if errors.Wrap(nil, errors.WorkspaceError) != nil {
		t.Fatal("expected nil wrap of nil error")
	}
}

func TestGetCodeFallback(t *testing.T) {
	if errors.GetCode(nil) != errors.Success {
		t.Fatal("expected Success for nil error")
	}
	if errors.GetCode(stderrors.New("plain")) != errors.InternalError {
		t.Fatal("expected InternalError for foreign error")
	}
}

func TestIs(t *testing.T) {
	err := errors.New(errors.ResultMissing)
	if !errors.Is(err, errors.ResultMissing) {
		t.Fatal("expected code match")
	}
	if errors.Is(err, errors.ResultMalformed) {
		t.Fatal("expected code mismatch")
	}
	if errors.Is(nil, errors.ResultMissing) {
		t.Fatal("expected false for nil error")
	}
}

func TestValidationError(t *testing.T) {
	err := errors.ValidationError("profile", "required")
	if err.Code != errors.ValidationFailed {
		t.Fatalf("unexpected code %d", err.Code)
	}
	if err.Details["field"] != "profile" || err.Details["reason"] != "required" {
		t.Fatalf("unexpected details %v", err.Details)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		code errors.ErrorCode
		want int
	}{
		{errors.Success, 200},
		{errors.JobMalformed, 400},
		{errors.ValidationFailed, 400},
		{errors.NotFound, 404},
		{errors.TransportUnavailable, 503},
		{errors.RuntimeLaunchFailed, 500},
	}
	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("code %d: expected status %d, got %d", tc.code, tc.want, got)
		}
	}
}
