package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error category.
type Code int

const (
	CodeSuccess       Code = 0
	CodeInternal      Code = 1
	CodeUsage         Code = 2
	CodeConfig        Code = 3
	CodeAuth          Code = 10
	CodeRateLimited   Code = 11
	CodeUnavailable   Code = 12
	CodeSigner        Code = 20
	CodeActionPlan    Code = 21
	CodeActionSim     Code = 22
	CodeActionTimeout Code = 23
)

// Error is a typed error that carries a stable error code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// ExitCode maps an error to a process exit status. Command-line misuse exits
// with 2; every other failure exits with 1.
func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if cliErr, ok := As(err); ok && cliErr.Code == CodeUsage {
		return int(CodeUsage)
	}
	return int(CodeInternal)
}

// TypeName returns the snake_case name of a code, used in logs.
func TypeName(code Code) string {
	switch code {
	case CodeUsage:
		return "usage_error"
	case CodeConfig:
		return "config_error"
	case CodeAuth:
		return "auth_error"
	case CodeRateLimited:
		return "rate_limited"
	case CodeUnavailable:
		return "unavailable"
	case CodeSigner:
		return "signer_error"
	case CodeActionPlan:
		return "action_plan_error"
	case CodeActionSim:
		return "action_simulation_error"
	case CodeActionTimeout:
		return "action_timeout"
	default:
		return "internal_error"
	}
}
