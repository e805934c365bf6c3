package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10099: System & Common errors
// 10100-10199: Transport errors
// 10200-10299: Job schema errors
// 10300-10399: Workspace errors
// 10400-10499: Isolation runtime errors

const (
	// ========== System & Common Errors (10000-10099) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors
	InternalError      ErrorCode = 10001
	InvalidParams      ErrorCode = 10002
	NotFound           ErrorCode = 10003
	ServiceUnavailable ErrorCode = 10004
	Timeout            ErrorCode = 10005

	// Validation errors
	ValidationFailed   ErrorCode = 10030
	RequiredFieldEmpty ErrorCode = 10031

	// ========== Transport Errors (10100-10199) ==========

	TransportUnavailable ErrorCode = 10100
	PublishFailed        ErrorCode = 10101
	ConsumeFailed        ErrorCode = 10102

	// ========== Job Schema Errors (10200-10299) ==========

	JobMalformed     ErrorCode = 10200
	ResultMissing    ErrorCode = 10201
	ResultMalformed  ErrorCode = 10202
	ResultCountWrong ErrorCode = 10203
	OutcomeUnknown   ErrorCode = 10204

	// ========== Workspace Errors (10300-10399) ==========

	TemplateMissing ErrorCode = 10300
	WorkspaceError  ErrorCode = 10301

	// ========== Isolation Runtime Errors (10400-10499) ==========

	RuntimeLaunchFailed ErrorCode = 10400
	ProfileUnknown      ErrorCode = 10401
)

// errorMessages maps error codes to their default messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:            "Success",
	InternalError:      "Internal error",
	InvalidParams:      "Invalid parameters",
	NotFound:           "Not found",
	ServiceUnavailable: "Service unavailable",
	Timeout:            "Operation timed out",

	// Validation
	ValidationFailed:   "Validation failed",
	RequiredFieldEmpty: "Required field is empty",

	// Transport
	TransportUnavailable: "Message transport is unavailable",
	PublishFailed:        "Failed to publish message",
	ConsumeFailed:        "Failed to consume message",

	// Job schema
	JobMalformed:     "Job payload is malformed",
	ResultMissing:    "Result file is missing",
	ResultMalformed:  "Result file is malformed",
	ResultCountWrong: "Result count does not match command count",
	OutcomeUnknown:   "Unknown outcome value",

	// Workspace
	TemplateMissing: "Workspace template directory is missing",
	WorkspaceError:  "Workspace I/O error",

	// Isolation runtime
	RuntimeLaunchFailed: "Isolation runtime failed to launch",
	ProfileUnknown:      "Unknown isolation profile",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound:
		return 404
	case c == ServiceUnavailable, c == TransportUnavailable:
		return 503
	case c >= 10030 && c < 10040:
		return 400
	case c == InvalidParams, c == JobMalformed:
		return 400
	default:
		return 500
	}
}
