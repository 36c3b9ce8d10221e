// Package export materializes gating results as artifacts in a blob store:
// population dataframes as CSV or JSON, gate templates, and plain-text tree
// reports.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"cytogate/internal/blob"
	"cytogate/internal/engine"
	"cytogate/pkg/dataset"
)

// Exporter writes engine artifacts to a blob store under
// <sample>/<category>/<name> keys.
type Exporter struct {
	store blob.Store
}

// NewExporter constructs an exporter over the given store.
func NewExporter(store blob.Store) *Exporter {
	return &Exporter{store: store}
}

// PopulationCSV writes the named population's dataframe as a CSV artifact.
// The first column carries the event id.
func (x *Exporter) PopulationCSV(ctx context.Context, eng *engine.Engine, population string) (blob.Info, error) {
	frame, err := eng.PopulationDataframe(population)
	if err != nil {
		return blob.Info{}, err
	}
	payload, err := frameCSV(frame)
	if err != nil {
		return blob.Info{}, err
	}
	key := fmt.Sprintf("%s/populations/%s.csv", eng.SampleID(), population)
	return x.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: "text/csv"})
}

// PopulationJSON writes the named population's dataframe as a JSON artifact:
// one object per event keyed by channel name plus "event_id".
func (x *Exporter) PopulationJSON(ctx context.Context, eng *engine.Engine, population string) (blob.Info, error) {
	frame, err := eng.PopulationDataframe(population)
	if err != nil {
		return blob.Info{}, err
	}
	rows, err := frameRows(frame)
	if err != nil {
		return blob.Info{}, err
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return blob.Info{}, err
	}
	key := fmt.Sprintf("%s/populations/%s.json", eng.SampleID(), population)
	return x.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: "application/json"})
}

// Template writes the engine's gate definitions as a reusable JSON template.
func (x *Exporter) Template(ctx context.Context, eng *engine.Engine, name string) (blob.Info, error) {
	payload, err := json.MarshalIndent(eng.ExportTemplate(name), "", "  ")
	if err != nil {
		return blob.Info{}, err
	}
	key := fmt.Sprintf("templates/%s.json", name)
	return x.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: "application/json"})
}

// TreeReport writes the population hierarchy as a plain-text artifact.
func (x *Exporter) TreeReport(ctx context.Context, eng *engine.Engine) (blob.Info, error) {
	key := fmt.Sprintf("%s/reports/tree.txt", eng.SampleID())
	return x.store.Put(ctx, key, strings.NewReader(eng.RenderTree()), blob.PutOptions{ContentType: "text/plain"})
}

func frameCSV(frame *dataset.Frame) ([]byte, error) {
	columns := frame.Columns()
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(append([]string{"event_id"}, columns...)); err != nil {
		return nil, err
	}
	series := make([][]float64, len(columns))
	for i, col := range columns {
		values, err := frame.Column(col)
		if err != nil {
			return nil, err
		}
		series[i] = values
	}
	for row, id := range frame.EventIDs() {
		record := make([]string, 0, len(columns)+1)
		record = append(record, strconv.FormatInt(id, 10))
		for _, values := range series {
			record = append(record, strconv.FormatFloat(values[row], 'g', -1, 64))
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func frameRows(frame *dataset.Frame) ([]map[string]any, error) {
	columns := frame.Columns()
	series := make([][]float64, len(columns))
	for i, col := range columns {
		values, err := frame.Column(col)
		if err != nil {
			return nil, err
		}
		series[i] = values
	}
	rows := make([]map[string]any, frame.NumRows())
	for row, id := range frame.EventIDs() {
		record := make(map[string]any, len(columns)+1)
		record["event_id"] = id
		for i, col := range columns {
			record[col] = series[i][row]
		}
		rows[row] = record
	}
	return rows, nil
}
