package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies the category of a failure so callers and tests can
// match on it without parsing messages.
type ErrorCode string

const (
	ErrUnknown ErrorCode = "UNKNOWN"

	// Discovery and descriptor errors
	ErrDescriptorRead     ErrorCode = "DESCRIPTOR_READ"
	ErrDescriptorParse    ErrorCode = "DESCRIPTOR_PARSE"
	ErrDescriptorInvalid  ErrorCode = "DESCRIPTOR_INVALID"
	ErrCapabilityNotFound ErrorCode = "CAPABILITY_NOT_FOUND"

	// Rendering
	ErrTemplate ErrorCode = "TEMPLATE"

	// External commands (package manager, setup scripts, service manager)
	ErrCommand ErrorCode = "COMMAND"

	// Filesystem and user database
	ErrFilesystem  ErrorCode = "FILESYSTEM"
	ErrOwnerLookup ErrorCode = "OWNER_LOOKUP"

	// Process-level
	ErrPrivilege         ErrorCode = "PRIVILEGE"
	ErrConfig            ErrorCode = "CONFIG"
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

// ProvisionError is what every component of a run returns on failure.
// - Code: category the CLI and tests match on.
// - Message: what was being done, e.g. "reading descriptor for capability web".
// - Wrapped: the underlying cause (a yaml, filesystem or command error).
type ProvisionError struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error renders "[CODE] message: cause", the line the CLI prints after ERROR:.
func (e *ProvisionError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the cause, e.g. an *installer.CommandError.
func (e *ProvisionError) Unwrap() error {
	return e.Wrapped
}

// Is matches another ProvisionError with the same code, so
// errors.Is(err, errors.New(ErrCommand, "")) works without comparing messages.
func (e *ProvisionError) Is(target error) bool {
	var targetErr *ProvisionError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New reports a failure that has no underlying cause, such as an unknown
// capability name or a missing privilege.
func New(code ErrorCode, message string) *ProvisionError {
	return &ProvisionError{Code: code, Message: message}
}

// Newf is New with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *ProvisionError {
	return &ProvisionError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and context to err. A nil err stays nil, so
// `return errors.Wrap(f.Close(), ...)` is safe.
func Wrap(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	return &ProvisionError{Code: code, Message: message, Wrapped: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &ProvisionError{Code: code, Message: fmt.Sprintf(format, args...), Wrapped: err}
}

// IsErrorCode reports whether any ProvisionError in err's chain carries code.
// Phase prefixes added with fmt.Errorf("%w") are looked through.
func IsErrorCode(err error, code ErrorCode) bool {
	var pe *ProvisionError
	for errors.As(err, &pe) {
		if pe.Code == code {
			return true
		}
		err = pe.Wrapped
	}
	return false
}
