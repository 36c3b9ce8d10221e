// Package density implements density-based threshold gating: the threshold is
// placed in the valley between the two dominant modes of a channel's smoothed
// histogram. When the distribution is unimodal the threshold falls back to
// the upper tail and a warning is reported.
package density

import (
	"fmt"

	"cytogate/internal/engine"
	"cytogate/pkg/dataset"
	"cytogate/pkg/domain"
	"cytogate/pkg/strategyapi"
)

const (
	defaultBins = 100
	// smoothingPasses is the number of moving-average sweeps applied to the
	// histogram before peak detection.
	smoothingPasses = 3
)

// Strategy finds thresholds between density modes.
type Strategy struct{}

// New constructs the density strategy.
func New() *Strategy { return &Strategy{} }

// Name implements strategyapi.Strategy.
func (*Strategy) Name() string { return "density" }

// Methods implements strategyapi.Strategy.
func (*Strategy) Methods() map[string]strategyapi.MethodSpec {
	return map[string]strategyapi.MethodSpec{
		"threshold": {
			Required: []string{"x", "children"},
			Optional: []string{"bins", "transform_x"},
		},
		"threshold_2d": {
			Required: []string{"x", "y", "children"},
			Optional: []string{"bins", "transform_x", "transform_y"},
		},
	}
}

// Gate implements strategyapi.Strategy.
func (s *Strategy) Gate(method string, frame *dataset.Frame, params strategyapi.Parameters) (strategyapi.Output, error) {
	bins := defaultBins
	if b, ok := params.Float("bins"); ok && b > 0 {
		bins = int(b)
	}
	x, _ := params.String("x")
	tx, _ := params.String("transform_x")
	base := domain.Geometry{X: x, TransformX: tx}
	var warnings []string
	switch method {
	case "threshold":
		threshold, warn, err := channelThreshold(frame, x, bins)
		if err != nil {
			return strategyapi.Output{}, err
		}
		warnings = append(warnings, warn...)
		base.Kind = domain.KindThreshold
		base.Threshold = domain.Float(threshold)
	case "threshold_2d":
		y, _ := params.String("y")
		ty, _ := params.String("transform_y")
		thresholdX, warnX, err := channelThreshold(frame, x, bins)
		if err != nil {
			return strategyapi.Output{}, err
		}
		thresholdY, warnY, err := channelThreshold(frame, y, bins)
		if err != nil {
			return strategyapi.Output{}, err
		}
		warnings = append(warnings, warnX...)
		warnings = append(warnings, warnY...)
		base.Kind = domain.KindThreshold2D
		base.Y = y
		base.TransformY = ty
		base.ThresholdX = domain.Float(thresholdX)
		base.ThresholdY = domain.Float(thresholdY)
	default:
		return strategyapi.Output{}, &domain.ValidationError{Op: "density gate", Reason: "unknown method " + method}
	}

	children, ok := params.Children()
	if !ok || len(children) == 0 {
		return strategyapi.Output{}, &domain.ValidationError{Op: "density gate", Reason: "no child populations declared"}
	}
	output := strategyapi.Output{Warnings: warnings}
	for _, child := range children {
		geometry := base.Clone()
		geometry.Definition = child.Definition
		index, err := engine.EvaluateRegion(geometry, frame)
		if err != nil {
			return strategyapi.Output{}, err
		}
		output.Results = append(output.Results, strategyapi.Result{
			Name:     child.Name,
			Geometry: geometry,
			Index:    index,
		})
	}
	return output, nil
}

// channelThreshold histograms a channel, smooths it, and returns the value at
// the deepest valley between the two tallest peaks.
func channelThreshold(frame *dataset.Frame, column string, bins int) (float64, []string, error) {
	values, err := frame.Column(column)
	if err != nil {
		return 0, nil, err
	}
	if len(values) == 0 {
		return 0, nil, &domain.ValidationError{Op: "density gate", Reason: "parent dataset is empty"}
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo == hi {
		return lo, []string{fmt.Sprintf("channel %s is constant; threshold placed at its value", column)}, nil
	}
	counts := make([]float64, bins)
	width := (hi - lo) / float64(bins)
	for _, v := range values {
		bin := int((v - lo) / width)
		if bin >= bins {
			bin = bins - 1
		}
		counts[bin]++
	}
	for pass := 0; pass < smoothingPasses; pass++ {
		counts = smooth(counts)
	}
	peaks := localMaxima(counts)
	if len(peaks) < 2 {
		// Unimodal channel: place the threshold at the 95th percentile bin so
		// the positive child captures the bright tail.
		warn := fmt.Sprintf("channel %s is unimodal; threshold placed at the upper tail", column)
		return lo + width*float64(bins)*0.95, []string{warn}, nil
	}
	first, second := topTwo(counts, peaks)
	if first > second {
		first, second = second, first
	}
	valley := first
	for i := first; i <= second; i++ {
		if counts[i] < counts[valley] {
			valley = i
		}
	}
	return lo + width*(float64(valley)+0.5), nil, nil
}

func smooth(counts []float64) []float64 {
	out := make([]float64, len(counts))
	for i := range counts {
		sum, n := counts[i], 1.0
		if i > 0 {
			sum += counts[i-1]
			n++
		}
		if i < len(counts)-1 {
			sum += counts[i+1]
			n++
		}
		out[i] = sum / n
	}
	return out
}

func localMaxima(counts []float64) []int {
	var peaks []int
	for i := 1; i < len(counts)-1; i++ {
		if counts[i] > counts[i-1] && counts[i] >= counts[i+1] {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// topTwo returns the two peaks with the highest counts.
func topTwo(counts []float64, peaks []int) (int, int) {
	first, second := peaks[0], peaks[1]
	if counts[second] > counts[first] {
		first, second = second, first
	}
	for _, p := range peaks[2:] {
		switch {
		case counts[p] > counts[first]:
			second = first
			first = p
		case counts[p] > counts[second]:
			second = p
		}
	}
	return first, second
}

var _ strategyapi.Strategy = (*Strategy)(nil)
