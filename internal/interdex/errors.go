package interdex

import "errors"

// Fatal error kinds. A run aborts entirely on any of these; there is no
// partial-success mode.
var (
	// ErrStructuralViolation marks a broken invariant in the marker walk or
	// container layout: unterminated/nested region markers, a primary
	// container that overflows a single container, or more than
	// maxContainers non-primary containers with canaries enabled.
	ErrStructuralViolation = errors.New("structural violation")

	// ErrPluginConflict marks a plugin vetoing a class the driver already
	// placed, or contributing references after a flush without
	// restamping — a broken plugin contract, always fatal.
	ErrPluginConflict = errors.New("plugin conflict")
)

// ErrOversizedClass reports that a single class cannot fit in an otherwise
// empty container, which is always fatal (no smaller container exists).
var ErrOversizedClass = errors.New("class exceeds container capacity on its own")
