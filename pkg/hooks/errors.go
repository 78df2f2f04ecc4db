package hooks

import (
	"github.com/glorpus-work/mcbundle/pkg/errors"
)

// ErrUnsupportedPhase is returned when a hook names an unknown phase.
func ErrUnsupportedPhase(phase string) error {
	return errors.Wrapf(errors.ErrHookLoad, "unsupported hook phase: %q", phase)
}
