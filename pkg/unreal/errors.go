package unreal

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrConstraint is matched by every ConstraintError through errors.Is.
var ErrConstraint = errors.New("constraint violated")

// ConstraintError reports an edit that the texture cannot accept. The
// texture is left untouched when one is returned.
type ConstraintError struct {
	Op  string
	Msg string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

// Is makes errors.Is(err, ErrConstraint) hold.
func (e *ConstraintError) Is(target error) bool { return target == ErrConstraint }

func constraintf(op, format string, args ...any) error {
	return &ConstraintError{Op: op, Msg: fmt.Sprintf(format, args...)}
}
