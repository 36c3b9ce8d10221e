package domain

import (
	"fmt"
	"strings"
)

// ValidationError reports duplicate names, unknown population or gate
// references and structurally invalid gate definitions. Operations that
// return it commit no partial mutation.
type ValidationError struct {
	Op     string
	Name   string
	Reason string
	// Missing lists required strategy parameters absent from a gate
	// definition. A non-empty list is retryable: the caller may resubmit the
	// gate with corrected parameters.
	Missing []string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Name != "" {
		fmt.Fprintf(&b, " %q", e.Name)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing parameters %s", strings.Join(e.Missing, ", "))
	}
	return b.String()
}

// GeometryError reports a geometry missing a field its kind requires. It is
// surfaced before any index is computed.
type GeometryError struct {
	Kind  GeometryKind
	Field string
}

func (e *GeometryError) Error() string {
	kind := string(e.Kind)
	if kind == "" {
		kind = "untyped"
	}
	return fmt.Sprintf("%s geometry missing required field %q", kind, e.Field)
}

// ConsistencyError reports incompatible inputs to a merge: mismatched axes or
// transforms, mismatched thresholds, or regions required to overlap that do
// not.
type ConsistencyError struct {
	Op     string
	Left   string
	Right  string
	Reason string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%s %q/%q: %s", e.Op, e.Left, e.Right, e.Reason)
}

// MissingDataError reports that a control projection needed an externally
// supplied axis profile that was not provided. It is surfaced per population
// and leaves the control cache intact.
type MissingDataError struct {
	Population string
	Control    string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("population %q is supervised-ML derived; control %q projection requires an axis profile", e.Population, e.Control)
}

// StaleIndexError reports that a persisted population index differs from the
// in-memory index and overwrite was not requested. Existing data is left
// untouched.
type StaleIndexError struct {
	Population string
}

func (e *StaleIndexError) Error() string {
	return fmt.Sprintf("index for population %q has changed; pass overwrite to replace persisted data (persisted cluster annotations will be voided)", e.Population)
}
