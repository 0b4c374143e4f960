package engine

import (
	"errors"
	"fmt"
	"strings"

	"dashcore/pkg/filter"
)

// Request is the wire form of an event, shared by the HTTP API and event
// replay files. Type is one of range, toggle, select, reset or click.
type Request struct {
	Type    string `json:"type" yaml:"type"`
	Control string `json:"control,omitempty" yaml:"control,omitempty"`
	Low     string `json:"low,omitempty" yaml:"low,omitempty"`
	High    string `json:"high,omitempty" yaml:"high,omitempty"`
	Value   string `json:"value,omitempty" yaml:"value,omitempty"`
	Chart   string `json:"chart,omitempty" yaml:"chart,omitempty"`
	Label   string `json:"label,omitempty" yaml:"label,omitempty"`
}

// ErrBadRequest wraps every Decode failure.
var ErrBadRequest = errors.New("engine: bad request")

// Decode turns req into an event for this engine's controls.
func (e *Engine) Decode(req Request) (filter.Event, error) {
	switch strings.ToLower(strings.TrimSpace(req.Type)) {
	case "range":
		ev, err := e.reg.ParseRange(req.Control, req.Low, req.High)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		return ev, nil
	case "toggle":
		if req.Control == "" {
			return nil, fmt.Errorf("%w: toggle needs a control", ErrBadRequest)
		}
		return filter.ToggleActivated{ControlID: req.Control}, nil
	case "select":
		if req.Control == "" {
			return nil, fmt.Errorf("%w: select needs a control", ErrBadRequest)
		}
		return filter.SelectionChanged{ControlID: req.Control, Value: req.Value}, nil
	case "reset":
		return filter.ResetRequested{}, nil
	case "click":
		ev, err := e.ClickEvent(req.Chart, req.Label)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrBadRequest, req.Type)
	}
}
