package table

import (
	"errors"
	"fmt"
)

// ErrColumnMissing marks a lookup of a column the dataset does not carry.
var ErrColumnMissing = errors.New("table: column missing")

// LoadError reports a dataset that could not be read: the source was
// unreachable or malformed, or a required column is absent.
type LoadError struct {
	Dataset string
	Column  string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("table: load %s: column %s: %v", e.Dataset, e.Column, e.Err)
	}
	return fmt.Sprintf("table: load %s: %v", e.Dataset, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// DerivationError reports a required column that has no coercible value.
type DerivationError struct {
	Dataset string
	Column  string
	Reason  string
	Err     error
}

func (e *DerivationError) Error() string {
	msg := fmt.Sprintf("table: derive %s: column %s: %s", e.Dataset, e.Column, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DerivationError) Unwrap() error { return e.Err }

// EmptyDatasetError reports a dataset with zero rows.
type EmptyDatasetError struct {
	Dataset string
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("table: dataset %s has no rows", e.Dataset)
}
