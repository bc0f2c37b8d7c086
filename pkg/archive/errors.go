package archive

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinels matched by the typed errors below through errors.Is.
var (
	ErrFormat          = errors.New("unexpected format")
	ErrBufferBounds    = errors.New("read past end of buffer")
	ErrVersionMismatch = errors.New("version mismatch")
)

// FormatError reports bytes that do not match the layout being decoded.
type FormatError struct {
	Name     string // stream name, e.g. "T_Rock.uasset"
	Offset   int
	Field    string
	Expected any
	Actual   any
	Msg      string
}

func (e *FormatError) Error() string {
	where := fmt.Sprintf("%s at 0x%x", e.Name, e.Offset)
	if e.Msg != "" {
		if e.Field != "" {
			return fmt.Sprintf("%s: %s: %s", where, e.Field, e.Msg)
		}
		return fmt.Sprintf("%s: %s", where, e.Msg)
	}
	return fmt.Sprintf("%s: unexpected %s: expected %v, got %v", where, e.Field, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrFormat) hold.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// BufferBoundsError reports a sized read that runs past the end of the stream.
type BufferBoundsError struct {
	Name      string
	Offset    int
	Size      int
	Available int
}

func (e *BufferBoundsError) Error() string {
	return fmt.Sprintf("%s at 0x%x: need %d bytes, only %d left", e.Name, e.Offset, e.Size, e.Available)
}

// Is makes errors.Is(err, ErrBufferBounds) hold.
func (e *BufferBoundsError) Is(target error) bool { return target == ErrBufferBounds }

// VersionMismatchError reports files that do not fit the declared engine version.
type VersionMismatchError struct {
	Version string
	Msg     string
	Err     error
}

func (e *VersionMismatchError) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s (version %s). The declared engine version may be wrong", msg, e.Version)
}

// Unwrap returns the parse error this mismatch surfaced through, if any.
func (e *VersionMismatchError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrVersionMismatch) hold.
func (e *VersionMismatchError) Is(target error) bool { return target == ErrVersionMismatch }
