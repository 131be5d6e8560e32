package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingReference marks a foreign key that does not resolve.
	ErrMissingReference = errors.New("missing reference")
	// ErrInvalidInputShape marks a raw record with a missing or mistyped field.
	ErrInvalidInputShape = errors.New("invalid input shape")
)

// Collection names used in record errors, logs and metric labels.
const (
	CollectionFarms     = "farms"
	CollectionCrops     = "crops"
	CollectionVarieties = "crop_varieties"
	CollectionLocations = "locations"
	CollectionCountries = "countries"
)

// RecordError describes one record that was left out of a derived structure.
type RecordError struct {
	Collection string
	Key        string
	Field      string
	Err        error
}

func (e *RecordError) Error() string {
	key := e.Key
	if key == "" {
		key = "?"
	}
	if e.Field != "" {
		return fmt.Sprintf("%s[%s].%s: %v", e.Collection, key, e.Field, e.Err)
	}
	return fmt.Sprintf("%s[%s]: %v", e.Collection, key, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

func missingRef(collection, key, field string) *RecordError {
	return &RecordError{Collection: collection, Key: key, Field: field, Err: ErrMissingReference}
}

func invalidShape(collection, key, field string, cause error) *RecordError {
	err := ErrInvalidInputShape
	if cause != nil {
		err = fmt.Errorf("%w: %v", ErrInvalidInputShape, cause)
	}
	return &RecordError{Collection: collection, Key: key, Field: field, Err: err}
}

// LoadReport collects every record skipped during ingest and index
// construction. Skips never abort the batch.
type LoadReport struct {
	Skipped []*RecordError
}

// Add records one skipped record.
func (r *LoadReport) Add(e *RecordError) {
	r.Skipped = append(r.Skipped, e)
}

// Count returns how many skipped records wrap target.
func (r *LoadReport) Count(target error) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, e := range r.Skipped {
		if errors.Is(e, target) {
			n++
		}
	}
	return n
}

// Merge appends other's entries to r.
func (r *LoadReport) Merge(other *LoadReport) {
	if other == nil {
		return
	}
	r.Skipped = append(r.Skipped, other.Skipped...)
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingReference):
		return "missing_reference"
	case errors.Is(err, ErrInvalidInputShape):
		return "invalid_input_shape"
	default:
		return "other"
	}
}
