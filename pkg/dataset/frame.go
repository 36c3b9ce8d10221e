// Package dataset provides the tabular event-data container consumed by the
// gating engine. A Frame holds single-cell events as rows (keyed by a stable
// event identifier) and measurement channels as columns. Frames are produced
// by DatasetProvider implementations and treated as immutable by the engine.
package dataset

import (
	"fmt"
	"math/rand"
)

// Frame is an immutable table of event measurements. Rows are keyed by event
// identifier; columns by channel name. Row order is preserved from ingestion.
type Frame struct {
	columns  []string
	colIndex map[string]int
	ids      []int64
	rowIndex map[int64]int
	values   [][]float64
}

// NewFrame constructs a Frame from column names, event identifiers and
// row-major values. Every row must have one value per column and event
// identifiers must be unique.
func NewFrame(columns []string, ids []int64, values [][]float64) (*Frame, error) {
	if len(ids) != len(values) {
		return nil, fmt.Errorf("dataset: %d ids for %d rows", len(ids), len(values))
	}
	colIndex := make(map[string]int, len(columns))
	for i, c := range columns {
		if c == "" {
			return nil, fmt.Errorf("dataset: empty column name at position %d", i)
		}
		if _, dup := colIndex[c]; dup {
			return nil, fmt.Errorf("dataset: duplicate column %q", c)
		}
		colIndex[c] = i
	}
	rowIndex := make(map[int64]int, len(ids))
	for i, id := range ids {
		if _, dup := rowIndex[id]; dup {
			return nil, fmt.Errorf("dataset: duplicate event id %d", id)
		}
		if len(values[i]) != len(columns) {
			return nil, fmt.Errorf("dataset: row %d has %d values for %d columns", i, len(values[i]), len(columns))
		}
		rowIndex[id] = i
	}
	f := &Frame{
		columns:  append([]string(nil), columns...),
		colIndex: colIndex,
		ids:      append([]int64(nil), ids...),
		rowIndex: rowIndex,
		values:   values,
	}
	return f, nil
}

// NumRows returns the number of events in the frame.
func (f *Frame) NumRows() int { return len(f.ids) }

// Columns returns the channel names in column order.
func (f *Frame) Columns() []string { return append([]string(nil), f.columns...) }

// HasColumn reports whether the named channel exists.
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.colIndex[name]
	return ok
}

// EventIDs returns the event identifiers in row order.
func (f *Frame) EventIDs() []int64 { return append([]int64(nil), f.ids...) }

// Contains reports whether the frame holds a row for the given event id.
func (f *Frame) Contains(id int64) bool {
	_, ok := f.rowIndex[id]
	return ok
}

// Column returns all values for the named channel in row order.
func (f *Frame) Column(name string) ([]float64, error) {
	ci, ok := f.colIndex[name]
	if !ok {
		return nil, fmt.Errorf("dataset: unknown column %q", name)
	}
	out := make([]float64, len(f.values))
	for i, row := range f.values {
		out[i] = row[ci]
	}
	return out, nil
}

// Value returns the measurement for one event on one channel.
func (f *Frame) Value(id int64, column string) (float64, error) {
	ri, ok := f.rowIndex[id]
	if !ok {
		return 0, fmt.Errorf("dataset: unknown event id %d", id)
	}
	ci, ok := f.colIndex[column]
	if !ok {
		return 0, fmt.Errorf("dataset: unknown column %q", column)
	}
	return f.values[ri][ci], nil
}

// Select returns a new frame restricted to the given event ids, preserving the
// receiver's row order. Unknown ids are an error: a population index must
// always resolve against its dataset.
func (f *Frame) Select(ids []int64) (*Frame, error) {
	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := f.rowIndex[id]; !ok {
			return nil, fmt.Errorf("dataset: unknown event id %d", id)
		}
		want[id] = struct{}{}
	}
	outIDs := make([]int64, 0, len(want))
	outValues := make([][]float64, 0, len(want))
	for i, id := range f.ids {
		if _, ok := want[id]; !ok {
			continue
		}
		outIDs = append(outIDs, id)
		outValues = append(outValues, f.values[i])
	}
	return &Frame{
		columns:  f.columns,
		colIndex: f.colIndex,
		ids:      outIDs,
		rowIndex: buildRowIndex(outIDs),
		values:   outValues,
	}, nil
}

// Project extracts two channels as paired coordinates in row order, returning
// the event ids alongside so callers can map predictions back to events.
func (f *Frame) Project(x, y string) ([]int64, [][2]float64, error) {
	xi, ok := f.colIndex[x]
	if !ok {
		return nil, nil, fmt.Errorf("dataset: unknown column %q", x)
	}
	yi, ok := f.colIndex[y]
	if !ok {
		return nil, nil, fmt.Errorf("dataset: unknown column %q", y)
	}
	points := make([][2]float64, len(f.values))
	for i, row := range f.values {
		points[i] = [2]float64{row[xi], row[yi]}
	}
	return append([]int64(nil), f.ids...), points, nil
}

// Sample returns a frame of at most n rows drawn without replacement using the
// provided source. When the frame already fits, the receiver is returned.
func (f *Frame) Sample(n int, rng *rand.Rand) *Frame {
	if n <= 0 || len(f.ids) <= n {
		return f
	}
	perm := rng.Perm(len(f.ids))[:n]
	outIDs := make([]int64, 0, n)
	outValues := make([][]float64, 0, n)
	for _, i := range perm {
		outIDs = append(outIDs, f.ids[i])
		outValues = append(outValues, f.values[i])
	}
	return &Frame{
		columns:  f.columns,
		colIndex: f.colIndex,
		ids:      outIDs,
		rowIndex: buildRowIndex(outIDs),
		values:   outValues,
	}
}

func buildRowIndex(ids []int64) map[int64]int {
	idx := make(map[int64]int, len(ids))
	for i, id := range ids {
		idx[id] = i
	}
	return idx
}
