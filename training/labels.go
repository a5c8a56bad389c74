package training

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// LabelEncoding describes how ground truth rows are laid out
type LabelEncoding int

const (
	EncodingBinary LabelEncoding = iota // one column holding 0 or 1
	EncodingOneHot                      // K columns, exactly one of them set to 1
)

// String returns human-readable label encoding name
func (le LabelEncoding) String() string {
	switch le {
	case EncodingBinary:
		return "Binary"
	case EncodingOneHot:
		return "OneHot"
	default:
		return fmt.Sprintf("Unknown(%d)", int(le))
	}
}

// LabelSet is validated ground truth reduced to one class index per sample.
// Binary and two-column one-hot labels both end up with two classes where
// class 1 is the positive class.
type LabelSet struct {
	encoding   LabelEncoding
	classes    []int
	numClasses int
}

// NewLabelSet validates label rows and converts them to class indices.
// Rows must all have the same width; every value must be exactly 0 or 1.
func NewLabelSet(rows [][]float64) (*LabelSet, error) {
	if len(rows) == 0 {
		return nil, invalidInput("labels", "no samples")
	}

	width := len(rows[0])
	if width == 0 {
		return nil, invalidInput("labels", "row 0 is empty")
	}

	classes := make([]int, len(rows))
	for i, row := range rows {
		if len(row) != width {
			return nil, invalidInput("labels", "row %d has width %d, expected %d", i, len(row), width)
		}
		for j, v := range row {
			if v != 0 && v != 1 {
				return nil, invalidInput("labels", "value %v at [%d][%d] is outside {0, 1}", v, i, j)
			}
		}

		if width == 1 {
			classes[i] = int(row[0])
			continue
		}

		if floats.Sum(row) != 1 {
			return nil, invalidInput("labels", "row %d is not one-hot", i)
		}
		// MaxIdx returns the first maximum, which is the only 1 in a one-hot row
		classes[i] = floats.MaxIdx(row)
	}

	ls := &LabelSet{classes: classes}
	if width == 1 {
		ls.encoding = EncodingBinary
		ls.numClasses = 2
	} else {
		ls.encoding = EncodingOneHot
		ls.numClasses = width
	}
	return ls, nil
}

// NewBinaryLabelSet builds a label set from 0/1 class indices.
func NewBinaryLabelSet(labels []int) (*LabelSet, error) {
	if len(labels) == 0 {
		return nil, invalidInput("labels", "no samples")
	}
	classes := make([]int, len(labels))
	for i, v := range labels {
		if v != 0 && v != 1 {
			return nil, invalidInput("labels", "value %d at %d is outside {0, 1}", v, i)
		}
		classes[i] = v
	}
	return &LabelSet{encoding: EncodingBinary, classes: classes, numClasses: 2}, nil
}

// Size returns the number of samples
func (ls *LabelSet) Size() int {
	return len(ls.classes)
}

// NumClasses returns 2 for binary labels and the row width for one-hot labels
func (ls *LabelSet) NumClasses() int {
	return ls.numClasses
}

// OneVsRest returns 1 for samples of the given class and 0 otherwise.
func (ls *LabelSet) OneVsRest(class int) []int {
	out := make([]int, len(ls.classes))
	for i, c := range ls.classes {
		if c == class {
			out[i] = 1
		}
	}
	return out
}

// PredictionSet holds model outputs for a validation set: either one score
// per sample or one probability per class per sample.
type PredictionSet struct {
	rows  [][]float64
	width int
}

// NewPredictionSet validates that rows are rectangular, non-empty and finite.
// The rows are copied so later mutation by the framework cannot leak in.
func NewPredictionSet(rows [][]float64) (*PredictionSet, error) {
	if len(rows) == 0 {
		return nil, invalidInput("predictions", "no samples")
	}

	width := len(rows[0])
	if width == 0 {
		return nil, invalidInput("predictions", "row 0 is empty")
	}

	copied := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != width {
			return nil, invalidInput("predictions", "row %d has width %d, expected %d", i, len(row), width)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, invalidInput("predictions", "value at [%d][%d] is not finite", i, j)
			}
		}
		copied[i] = append([]float64(nil), row...)
	}

	return &PredictionSet{rows: copied, width: width}, nil
}

// NewScorePredictionSet wraps a flat slice of positive-class scores.
func NewScorePredictionSet(scores []float64) (*PredictionSet, error) {
	rows := make([][]float64, len(scores))
	for i, s := range scores {
		rows[i] = []float64{s}
	}
	return NewPredictionSet(rows)
}

// Size returns the number of samples
func (ps *PredictionSet) Size() int {
	return len(ps.rows)
}

// Width returns the number of values per sample
func (ps *PredictionSet) Width() int {
	return ps.width
}

// Column returns the values of one output column
func (ps *PredictionSet) Column(c int) []float64 {
	out := make([]float64, len(ps.rows))
	for i, row := range ps.rows {
		out[i] = row[c]
	}
	return out
}

// PositiveScores returns the score of the positive class for binary problems.
// Single-column outputs are used as-is; two-column outputs use column 1.
func (ps *PredictionSet) PositiveScores() ([]float64, error) {
	switch ps.width {
	case 1:
		return ps.Column(0), nil
	case 2:
		return ps.Column(1), nil
	default:
		return nil, invalidInput("predictions", "width %d has no single positive-class score", ps.width)
	}
}

// checkCompatible verifies that predictions can be scored against labels.
func checkCompatible(preds *PredictionSet, labels *LabelSet) error {
	if preds.Size() != labels.Size() {
		return invalidInput("predictions", "length %d does not match labels length %d", preds.Size(), labels.Size())
	}
	if labels.NumClasses() == 2 {
		if preds.Width() > 2 {
			return invalidInput("predictions", "width %d for %s labels with 2 classes", preds.Width(), labels.encoding)
		}
		return nil
	}
	if preds.Width() != labels.NumClasses() {
		return invalidInput("predictions", "width %d does not match %d label classes", preds.Width(), labels.NumClasses())
	}
	return nil
}
