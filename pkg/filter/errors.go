package filter

import (
	"errors"
	"fmt"

	"dashcore/pkg/table"
)

// ErrUnknownControl reports an event or lookup naming no registered control.
var ErrUnknownControl = errors.New("filter: unknown control")

// InvalidRangeError reports a range event whose low bound exceeds its high
// bound.
type InvalidRangeError struct {
	ControlID string
	Low       table.Value
	High      table.Value
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("filter: range %s invalid: low %s > high %s", e.ControlID, e.Low, e.High)
}
