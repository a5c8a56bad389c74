package training

import (
	"errors"
	"math"
	"testing"
)

// TestLabelEncodingString tests the string representation of LabelEncoding
func TestLabelEncodingString(t *testing.T) {
	tests := []struct {
		encoding LabelEncoding
		expected string
	}{
		{EncodingBinary, "Binary"},
		{EncodingOneHot, "OneHot"},
		{LabelEncoding(7), "Unknown(7)"},
	}

	for _, test := range tests {
		if got := test.encoding.String(); got != test.expected {
			t.Errorf("LabelEncoding(%d).String() = %s, expected %s", test.encoding, got, test.expected)
		}
	}
}

// TestNewLabelSet tests binary and one-hot label parsing
func TestNewLabelSet(t *testing.T) {
	tests := []struct {
		name       string
		rows       [][]float64
		encoding   LabelEncoding
		numClasses int
		classes    []int
	}{
		{
			name:       "binary column",
			rows:       [][]float64{{0}, {1}, {1}},
			encoding:   EncodingBinary,
			numClasses: 2,
			classes:    []int{0, 1, 1},
		},
		{
			name:       "two-column one-hot",
			rows:       [][]float64{{1, 0}, {0, 1}},
			encoding:   EncodingOneHot,
			numClasses: 2,
			classes:    []int{0, 1},
		},
		{
			name:       "three-class one-hot",
			rows:       [][]float64{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
			encoding:   EncodingOneHot,
			numClasses: 3,
			classes:    []int{2, 0, 1},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			ls, err := NewLabelSet(test.rows)
			if err != nil {
				t.Fatalf("NewLabelSet failed: %v", err)
			}
			if ls.encoding != test.encoding {
				t.Errorf("Encoding = %s, expected %s", ls.encoding, test.encoding)
			}
			if ls.NumClasses() != test.numClasses {
				t.Errorf("NumClasses = %d, expected %d", ls.NumClasses(), test.numClasses)
			}
			if ls.Size() != len(test.rows) {
				t.Errorf("Size = %d, expected %d", ls.Size(), len(test.rows))
			}
			classes := ls.classes
			for i := range test.classes {
				if classes[i] != test.classes[i] {
					t.Errorf("Class %d = %d, expected %d", i, classes[i], test.classes[i])
				}
			}
		})
	}
}

// TestNewLabelSetInvalid tests that malformed labels yield InvalidInputError
func TestNewLabelSetInvalid(t *testing.T) {
	tests := []struct {
		name string
		rows [][]float64
	}{
		{"empty", nil},
		{"empty row", [][]float64{{}}},
		{"ragged", [][]float64{{0}, {1, 0}}},
		{"value outside 0/1", [][]float64{{0}, {0.5}}},
		{"negative", [][]float64{{-1}, {1}}},
		{"not one-hot", [][]float64{{1, 1}, {0, 1}}},
		{"all zero row", [][]float64{{0, 0, 0}, {0, 1, 0}}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewLabelSet(test.rows)
			var invalid *InvalidInputError
			if !errors.As(err, &invalid) {
				t.Fatalf("Expected InvalidInputError, got %v", err)
			}
			if invalid.Field != "labels" {
				t.Errorf("Field = %q, expected labels", invalid.Field)
			}
		})
	}
}

// TestNewBinaryLabelSet tests construction from class indices
func TestNewBinaryLabelSet(t *testing.T) {
	ls, err := NewBinaryLabelSet([]int{1, 0, 1})
	if err != nil {
		t.Fatalf("NewBinaryLabelSet failed: %v", err)
	}
	if ls.NumClasses() != 2 || ls.Size() != 3 {
		t.Errorf("Unexpected label set: %d classes, %d samples", ls.NumClasses(), ls.Size())
	}

	if _, err := NewBinaryLabelSet([]int{0, 3}); err == nil {
		t.Error("Expected error for label 3")
	}
	if _, err := NewBinaryLabelSet(nil); err == nil {
		t.Error("Expected error for empty labels")
	}
}

// TestOneVsRest tests per-class binarization
func TestOneVsRest(t *testing.T) {
	ls, err := NewLabelSet([][]float64{{0, 0, 1}, {1, 0, 0}, {0, 0, 1}})
	if err != nil {
		t.Fatal(err)
	}

	got := ls.OneVsRest(2)
	expected := []int{1, 0, 1}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("OneVsRest(2)[%d] = %d, expected %d", i, got[i], expected[i])
		}
	}
}

// TestNewPredictionSet tests validation and copying of prediction rows
func TestNewPredictionSet(t *testing.T) {
	rows := [][]float64{{0.2, 0.8}, {0.6, 0.4}}
	ps, err := NewPredictionSet(rows)
	if err != nil {
		t.Fatalf("NewPredictionSet failed: %v", err)
	}

	rows[0][1] = 42
	if ps.rows[0][1] != 0.8 {
		t.Error("Prediction set should not alias the caller's rows")
	}

	if ps.Size() != 2 || ps.Width() != 2 {
		t.Errorf("Size/Width = %d/%d, expected 2/2", ps.Size(), ps.Width())
	}

	scores, err := ps.PositiveScores()
	if err != nil {
		t.Fatal(err)
	}
	if scores[0] != 0.8 || scores[1] != 0.4 {
		t.Errorf("PositiveScores = %v, expected column 1", scores)
	}
}

// TestNewPredictionSetInvalid tests that malformed predictions are rejected
func TestNewPredictionSetInvalid(t *testing.T) {
	tests := []struct {
		name string
		rows [][]float64
	}{
		{"empty", nil},
		{"empty row", [][]float64{{}}},
		{"ragged", [][]float64{{0.1}, {0.2, 0.3}}},
		{"nan", [][]float64{{math.NaN()}}},
		{"inf", [][]float64{{0.1}, {math.Inf(1)}}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewPredictionSet(test.rows)
			var invalid *InvalidInputError
			if !errors.As(err, &invalid) {
				t.Fatalf("Expected InvalidInputError, got %v", err)
			}
			if invalid.Field != "predictions" {
				t.Errorf("Field = %q, expected predictions", invalid.Field)
			}
		})
	}
}

// TestPositiveScoresWidth tests which column is used as the positive score
func TestPositiveScoresWidth(t *testing.T) {
	single, _ := NewScorePredictionSet([]float64{0.3, 0.7})
	scores, err := single.PositiveScores()
	if err != nil || scores[1] != 0.7 {
		t.Errorf("Single column scores = %v, err = %v", scores, err)
	}

	wide, _ := NewPredictionSet([][]float64{{0.2, 0.3, 0.5}})
	if _, err := wide.PositiveScores(); err == nil {
		t.Error("Expected error for three-column predictions")
	}
}

// TestInvalidInputErrorMessage tests the error text
func TestInvalidInputErrorMessage(t *testing.T) {
	err := &InvalidInputError{Field: "labels", Reason: "no samples"}
	if err.Error() != "invalid input: labels: no samples" {
		t.Errorf("Unexpected message: %s", err.Error())
	}

	bare := &InvalidInputError{Reason: "bad"}
	if bare.Error() != "invalid input: bad" {
		t.Errorf("Unexpected message: %s", bare.Error())
	}
}
