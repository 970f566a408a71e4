// Package apperrors provides chainable application errors that carry an HTTP
// status code. Packages declare their error taxonomy as derived values and
// attach per-call detail with Msg/Err without losing identity for errors.Is.
package apperrors

type Error interface {
	Error() string
	// New derives a child error. The child inherits the parent's status code
	// and matches the parent under Is.
	New(msg string) Error
	// Msg replaces the message, keeping identity.
	Msg(msg string) Error
	// MsgErr replaces the message and wraps the given causes.
	MsgErr(msg string, err ...error) Error
	// Err wraps the given causes.
	Err(err ...error) Error
	Unwrap() []error
	Is(target error) bool
	SetStatusCode(code int) Error
	StatusCode() int
}
