// Package errors provides error values that carry stack traces, an HTTP
// status code, and an optional public message that is safe to return to
// clients.
//
// It provides the type *Error which implements the standard golang error
// interface, so the package can be used interchangeably with code that
// expects a normal error return.
//
// For example:
//
//	var ErrNoSession = errors.NewC("no active session", http.StatusUnauthorized)
//
//	func Exchange() error {
//	    return errors.WithPublicMessage(ErrNoSession, "Please sign in again")
//	}
package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"net/http"
	"reflect"
	"runtime"
	"strings"
)

// The maximum number of stackframes on any error.
var MaxStackDepth = 50

// Error is an error with an attached stacktrace. It can be used
// wherever the builtin error interface is expected.
type Error struct {
	Err    error
	stack  []uintptr
	frames []StackFrame
	prefix string

	// HTTP status code to associate with an error response.
	httpStatusCode int

	// Error message to return to the client.
	publicMessage string
}

// New makes an Error from the given value. If that value is already an
// error then it will be used directly, if not, it will be passed to
// fmt.Errorf("%v"). The stacktrace will point to the line of code that
// called New.
func New(e interface{}) *Error {
	return newError(e, 1, http.StatusInternalServerError)
}

// NewC makes an Error with an HTTP status code defined.
func NewC(e interface{}, httpStatus int) *Error {
	return newError(e, 1, httpStatus)
}

// Codef creates a new error with an HTTP status code and a formatted message.
func Codef(httpStatus int, format string, a ...interface{}) *Error {
	return newError(fmt.Errorf(format, a...), 1, httpStatus)
}

func newError(e interface{}, skip int, httpStatus int) *Error {
	var err error
	switch e := e.(type) {
	case error:
		err = e
	default:
		err = fmt.Errorf("%v", e)
	}

	stack := make([]uintptr, MaxStackDepth)
	length := runtime.Callers(2+skip, stack[:])
	return &Error{
		Err:            err,
		stack:          stack[:length],
		httpStatusCode: httpStatus,
	}
}

// Wrap makes an Error from the given value. If that value is already an
// error then it will be used directly, if not, it will be passed to
// fmt.Errorf("%v"). The skip parameter indicates how far up the stack
// to start the stacktrace. 0 is from the current call, 1 from its caller, etc.
func Wrap(e interface{}, skip int) *Error {
	if e == nil {
		return nil
	}

	var err error

	switch e := e.(type) {
	case *Error:
		return e
	case error:
		err = e
	default:
		err = fmt.Errorf("%v", e)
	}

	stack := make([]uintptr, MaxStackDepth)
	length := runtime.Callers(2+skip, stack[:])
	return &Error{
		Err:            err,
		stack:          stack[:length],
		httpStatusCode: statusFromError(err),
	}
}

// WrapPrefix makes an Error from the given value. If that value is already an
// error then it will be used directly, if not, it will be passed to
// fmt.Errorf("%v"). The prefix parameter is used to add a prefix to the
// error message when calling Error(). The skip parameter indicates how far
// up the stack to start the stacktrace. 0 is from the current call,
// 1 from its caller, etc.
func WrapPrefix(e interface{}, prefix string, skip int) *Error {
	if e == nil {
		return nil
	}

	err := Wrap(e, 1+skip)

	// Keep the wrapped error in the chain so errors.Is still matches it.
	return &Error{
		Err:            err,
		stack:          err.stack,
		httpStatusCode: err.httpStatusCode,
		publicMessage:  err.publicMessage,
		prefix:         prefix,
	}
}

// Mark takes an error and sets the stack trace from the point it was called,
// overriding any previous stack trace that may have been set. The skip
// parameter indicates how far up the stack to start the stacktrace. 0 is from
// the current call, 1 from its caller, etc.
func Mark(e interface{}, skip int) *Error {
	if e == nil {
		return nil
	}
	if err, ok := e.(*Error); ok {
		stack := make([]uintptr, MaxStackDepth)
		length := runtime.Callers(2+skip, stack[:])
		// Keep the original error in the chain so errors.Is still matches it.
		return &Error{
			Err:            err,
			stack:          stack[:length],
			httpStatusCode: err.httpStatusCode,
			publicMessage:  err.publicMessage,
		}
	}

	// If the error is not an `Error`, we can just use wrap.
	return Wrap(e, 1+skip)
}

// WithPublicMessage takes an error message and adds a public message to it. If
// the error is not already an `Error`, it will be wrapped in one.
func WithPublicMessage(err error, publicMessage string) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, 1).WithPublicMessage(publicMessage)
}

// WithHTTPStatusCode takes an error and adds an explicit HTTP status code to
// it. If the error is not already an `Error`, it will be wrapped in one.
func WithHTTPStatusCode(err error, code int) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, 1).WithHTTPStatusCode(code)
}

// MaybeWrap is like Wrap but returns a plain error interface, so that a nil
// input yields a nil interface value rather than a typed nil.
func MaybeWrap(e error, skip int) error {
	if e == nil {
		return nil
	}
	return Wrap(e, 1+skip)
}

// Errorf creates a new error with the given message. You can use it
// as a drop-in replacement for fmt.Errorf() to provide descriptive
// errors in return values.
func Errorf(format string, a ...interface{}) *Error {
	return Wrap(fmt.Errorf(format, a...), 1)
}

// Error returns the underlying error's message.
func (err *Error) Error() string {
	msg := err.Err.Error()
	if err.prefix != "" {
		msg = fmt.Sprintf("%s: %s", err.prefix, msg)
	}
	return msg
}

// Append returns a copy of the error with additional detail appended to the
// message. The stack trace and any status code or public message carry over.
func (err *Error) Append(msg string) *Error {
	return &Error{
		Err:            fmt.Errorf("%w: %s", err.Err, msg),
		stack:          err.stack,
		prefix:         err.prefix,
		httpStatusCode: err.httpStatusCode,
		publicMessage:  err.publicMessage,
	}
}

// Stack returns the callstack formatted the same way that go does
// in runtime/debug.Stack()
func (err *Error) Stack() []byte {
	buf := bytes.Buffer{}

	for _, frame := range err.StackFrames() {
		buf.WriteString(frame.String())
	}

	return buf.Bytes()
}

// MinimalStack returns a compact, single-line rendition of the stack,
// suitable for inclusion as a structured log field.
func (err *Error) MinimalStack(skip, depth int) string {
	frames := err.StackFrames()
	if skip >= len(frames) {
		return ""
	}
	frames = frames[skip:]
	if depth > 0 && depth < len(frames) {
		frames = frames[:depth]
	}
	parts := make([]string, len(frames))
	for i, f := range frames {
		parts[i] = fmt.Sprintf("%s:%d", f.Name, f.LineNumber)
	}
	return strings.Join(parts, " < ")
}

// Callers returns the raw program counters, so that the stack can be read out.
func (err *Error) Callers() []uintptr {
	return err.stack
}

// ErrorStack returns a string that contains both the
// error message and the callstack.
func (err *Error) ErrorStack() string {
	return err.TypeName() + " " + err.Error() + "\n" + string(err.Stack())
}

// StackFrames returns an array of frames containing information about the
// stack.
func (err *Error) StackFrames() []StackFrame {
	if err.frames == nil {
		err.frames = make([]StackFrame, len(err.stack))

		for i, pc := range err.stack {
			err.frames[i] = NewStackFrame(pc)
		}
	}

	return err.frames
}

// TypeName returns the type this error. e.g. *errors.stringError.
func (err *Error) TypeName() string {
	return reflect.TypeOf(err.Err).String()
}

// Unwrap the error (implements api for As function).
func (err *Error) Unwrap() error {
	return err.Err
}

// HTTPStatusCode returns the HTTP status code that should be returned to the
// client.
func (err *Error) HTTPStatusCode() int {
	if err.httpStatusCode != 0 {
		return err.httpStatusCode
	}
	return http.StatusInternalServerError
}

// WithHTTPStatusCode sets the HTTP status code that should be returned to the
// client.
func (err *Error) WithHTTPStatusCode(code int) *Error {
	err.httpStatusCode = code
	return err
}

// PublicMessage returns the explicit client-safe message, or empty if none
// has been set.
func (err *Error) PublicMessage() string {
	return err.publicMessage
}

// WithPublicMessage sets the error string that should be returned to the client.
func (err *Error) WithPublicMessage(publicMessage string) *Error {
	err.publicMessage = publicMessage
	return err
}

// HTTPStatusCode returns an HTTP status code for an error. If the error is
// nil, it returns http.StatusOK. If error exposes a `HTTPStatusCode()` method,
// it is returned. Otherwise http.StatusInternalServerError is returned.
func HTTPStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var e httpError
	if stderrors.As(err, &e) {
		return e.HTTPStatusCode()
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message that should be shown to a client for the
// given error. Errors without an explicit public message render as a generic
// message based on their status code, so internal details do not leak.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	for e := err; e != nil; e = stderrors.Unwrap(e) {
		if pe, ok := e.(publicError); ok {
			if msg := pe.PublicMessage(); msg != "" {
				return msg
			}
		}
	}
	return http.StatusText(HTTPStatusCode(err))
}

// Is reports whether any error in err's tree matches target. It is a
// re-export of the standard library's errors.Is so callers don't need two
// error packages.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target. Re-exported
// from the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// statusFromError preserves the code of wrapped coded errors.
func statusFromError(err error) int {
	var e httpError
	if stderrors.As(err, &e) {
		return e.HTTPStatusCode()
	}
	return 0
}

type httpError interface {
	HTTPStatusCode() int
}

type publicError interface {
	PublicMessage() string
}
