package webcam

import (
	"errors"
	"fmt"
	"syscall"
)

// Kind classifies a failure so a capture loop can decide whether to retry,
// renegotiate, or shut down.
type Kind int

// Error kinds.
const (
	KindNone         Kind = iota
	KindIO                // descriptor, mmap, or OS-level failure
	KindDevice            // ioctl rejected by the driver
	KindFormat            // negotiation mismatch
	KindUnsupported       // device lacks a required feature
	KindTimeout           // no frame within the wait bound; safe to retry
	KindPrecondition      // operation called in the wrong state
	KindResource          // driver granted too few buffers
	KindTransform         // post-processing failed after a successful capture
)

var kindNames = map[Kind]string{
	KindNone:         "none",
	KindIO:           "io",
	KindDevice:       "device",
	KindFormat:       "format",
	KindUnsupported:  "unsupported",
	KindTimeout:      "timeout",
	KindPrecondition: "precondition",
	KindResource:     "resource",
	KindTransform:    "transform",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is matching by kind.
var (
	ErrIO           = &Error{Kind: KindIO}
	ErrDevice       = &Error{Kind: KindDevice}
	ErrFormat       = &Error{Kind: KindFormat}
	ErrUnsupported  = &Error{Kind: KindUnsupported}
	ErrTimeout      = &Error{Kind: KindTimeout}
	ErrPrecondition = &Error{Kind: KindPrecondition}
	ErrResource     = &Error{Kind: KindResource}
	ErrTransform    = &Error{Kind: KindTransform}
)

// Error is returned by every Camera operation.
type Error struct {
	Kind Kind
	Op   string // operation, e.g. "set pix format"
	Path string // device path
	Msg  string
	Err  error // underlying cause, often a syscall.Errno
}

func (e *Error) Error() string {
	s := "webcam"
	if e.Op != "" {
		s += ": " + e.Op
	}
	if e.Path != "" {
		s += " " + e.Path
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + formatCause(e.Err)
	}
	if e.Op == "" && e.Msg == "" && e.Err == nil {
		s += ": " + e.Kind.String() + " error"
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a sentinel carrying only a Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" && t.Path == "" && t.Msg == "" && t.Err == nil {
		return e.Kind == t.Kind
	}
	return e == t
}

// KindOf returns the kind of err, or KindNone when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

// IsRecoverable reports whether the same call may simply be retried.
func IsRecoverable(err error) bool {
	return KindOf(err) == KindTimeout
}

// IsFatal reports whether the device should be torn down and reopened.
func IsFatal(err error) bool {
	switch KindOf(err) {
	case KindIO, KindDevice:
		return true
	}
	return false
}

func newError(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

// formatCause renders errno values with their number so logs match kernel docs.
func formatCause(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return fmt.Sprintf("%s (errno %d)", err.Error(), int(errno))
	}
	return err.Error()
}
