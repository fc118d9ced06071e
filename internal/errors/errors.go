package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeConnection    ErrorType = "Connection"
	ErrorTypeCommand       ErrorType = "Command"
	ErrorTypeStorage       ErrorType = "Storage"
	ErrorTypePush          ErrorType = "Push"
	ErrorTypeConfiguration ErrorType = "Configuration"
)

// Sentinel errors usable with errors.Is against any *Error of the matching type.
var (
	ErrConnection           = errors.New("connection failed")
	ErrCommand              = errors.New("command failed")
	ErrStorage              = errors.New("storage operation failed")
	ErrPush                 = errors.New("push failed")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Error is a categorized error raised while polling a device.
type Error struct {
	Type      ErrorType
	Device    string
	Op        string
	Message   string
	Cause     string
	Solutions []string
	Err       error
}

// Error implements the error interface
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if e.Device != "" {
		sb.WriteString(fmt.Sprintf(" [device %s]", e.Device))
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the same category.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConnection:
		return e.Type == ErrorTypeConnection
	case ErrCommand:
		return e.Type == ErrorTypeCommand
	case ErrStorage:
		return e.Type == ErrorTypeStorage
	case ErrPush:
		return e.Type == ErrorTypePush
	case ErrInvalidConfiguration:
		return e.Type == ErrorTypeConfiguration
	}
	return false
}

// Format implements fmt.Formatter for custom formatting
func (e *Error) Format(f fmt.State, verb rune) {
	switch verb {
	case 's':
		fmt.Fprintf(f, "%s", e.Error())
	case 'v':
		if f.Flag('+') {
			fmt.Fprintf(f, "[%s/%s] %s", e.Type, e.Op, e.Error())
		} else {
			fmt.Fprintf(f, "%s", e.Error())
		}
	}
}

// New creates a new Error
func New(errType ErrorType, op, message string, err error) *Error {
	return &Error{
		Type:    errType,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// WithDevice attaches the device identifier
func (e *Error) WithDevice(device string) *Error {
	e.Device = device
	return e
}

// WithCause adds cause information
func (e *Error) WithCause(cause string) *Error {
	e.Cause = cause
	return e
}

// WithSolutions adds solution steps
func (e *Error) WithSolutions(solutions ...string) *Error {
	e.Solutions = append(e.Solutions, solutions...)
	return e
}

// ConnectionError reports a session that could not be established.
func ConnectionError(address string, err error) *Error {
	e := New(ErrorTypeConnection, "connect", fmt.Sprintf("could not connect to %s", address), err)

	if err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "unable to authenticate"):
			e.WithCause("authentication rejected by device").
				WithSolutions("Check device.username and device.password")
		case strings.Contains(msg, "knownhosts"), strings.Contains(msg, "host key"):
			e.WithCause("host key verification failed").
				WithSolutions("Add the device to device.known_hosts",
					"Or set device.insecure_ignore_host_key for lab devices")
		case strings.Contains(msg, "timeout"), strings.Contains(msg, "refused"):
			e.WithCause("device unreachable").
				WithSolutions("Verify device.host and device.port", "Check that SSH is enabled on the device")
		}
	}
	return e
}

// CommandError reports a single remote command failure.
func CommandError(command string, err error) *Error {
	return New(ErrorTypeCommand, command, fmt.Sprintf("command %q failed", command), err)
}

// StorageError reports a failed filesystem operation on path.
func StorageError(op, path string, err error) *Error {
	return New(ErrorTypeStorage, op, fmt.Sprintf("%s %s", op, path), err)
}

// PushError reports a failed version-control push.
func PushError(op string, err error) *Error {
	return New(ErrorTypePush, op, "push "+op, err)
}

// ConfigError reports an invalid configuration parameter.
func ConfigError(parameter string, value interface{}, err error) *Error {
	msg := fmt.Sprintf("configuration error for %s", parameter)
	if value != nil {
		msg = fmt.Sprintf("configuration error for %s = %v", parameter, value)
	}
	if err == nil {
		err = ErrInvalidConfiguration
	}
	return New(ErrorTypeConfiguration, parameter, msg, err)
}

// TypeOf returns the category of err, or "" when err is not categorized.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// Is reports whether target is in err's chain.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetExitCode returns appropriate exit code for error type
func GetExitCode(err error) int {
	switch TypeOf(err) {
	case ErrorTypeConfiguration:
		return 78 // EX_CONFIG
	case ErrorTypeStorage:
		return 74 // EX_IOERR
	case ErrorTypeConnection:
		return 69 // EX_UNAVAILABLE
	default:
		return 1
	}
}
