package filter

import "dashcore/pkg/table"

// Event is one discrete UI interaction. The set is closed.
type Event interface {
	EventName() string
	event()
}

// RangeChanged moves both bounds of a range control. A missing bound leaves
// that end open at the dataset bound.
type RangeChanged struct {
	ControlID string
	Low       table.Value
	High      table.Value
}

// ToggleActivated flips a toggle control.
type ToggleActivated struct {
	ControlID string
}

// SelectionChanged sets a select or cross-filter control; an empty Value
// clears it.
type SelectionChanged struct {
	ControlID string
	Value     string
}

// ResetRequested restores every control to its default.
type ResetRequested struct{}

func (RangeChanged) EventName() string     { return "range" }
func (ToggleActivated) EventName() string  { return "toggle" }
func (SelectionChanged) EventName() string { return "select" }
func (ResetRequested) EventName() string   { return "reset" }

func (RangeChanged) event()     {}
func (ToggleActivated) event()  {}
func (SelectionChanged) event() {}
func (ResetRequested) event()   {}
