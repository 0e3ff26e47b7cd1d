package frame

import (
	"fmt"
	"strings"
)

// MissingColumnError reports a column the schema contract requires but
// the data does not carry. This is a structural failure, not a
// data-quality gap.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("required column %q is missing", e.Column)
}

// SchemaValidationError carries every constraint violated by a frame,
// not just the first.
type SchemaValidationError struct {
	Schema     string
	Violations []string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("schema %q: %d violation(s): %s", e.Schema, len(e.Violations), strings.Join(e.Violations, "; "))
}
