package training

import (
	"errors"
	"math"
	"testing"
)

func TestEvaluateBinary(t *testing.T) {
	eval, err := Evaluate(predictionsWithAUC(1.0), binaryLabels)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if eval.AUC != 1.0 {
		t.Errorf("AUC = %f, expected 1.0", eval.AUC)
	}
	if eval.Accuracy != 1.0 {
		t.Errorf("Accuracy = %f, expected 1.0", eval.Accuracy)
	}
	expectedLoss := -(2*math.Log(0.9) + 2*math.Log(0.8)) / 4
	if math.Abs(eval.LogLoss-expectedLoss) > 1e-9 {
		t.Errorf("LogLoss = %f, expected %f", eval.LogLoss, expectedLoss)
	}
	if eval.ROC == nil || len(eval.ROC.FPR) == 0 {
		t.Error("Binary evaluation should carry a ROC curve")
	}
}

func TestEvaluateMultiClass(t *testing.T) {
	labels := [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 0, 0}}
	preds := [][]float64{
		{0.8, 0.1, 0.1},
		{0.2, 0.7, 0.1},
		{0.1, 0.2, 0.7},
		{0.6, 0.3, 0.1},
	}

	eval, err := Evaluate(preds, labels)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if eval.AUC != 1.0 || eval.Accuracy != 1.0 {
		t.Errorf("Expected perfect scores, got auc=%f acc=%f", eval.AUC, eval.Accuracy)
	}
	if eval.ROC != nil {
		t.Error("Multi-class evaluation should not carry a ROC curve")
	}
}

func TestEvaluateInvalid(t *testing.T) {
	tests := []struct {
		name   string
		preds  [][]float64
		labels [][]float64
	}{
		{"length mismatch", column(0.1, 0.9), binaryLabels},
		{"single class", column(0.1, 0.2), [][]float64{{1}, {1}}},
		{"bad labels", column(0.1, 0.2), [][]float64{{2}, {0}}},
		{"no predictions", nil, binaryLabels},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Evaluate(test.preds, test.labels)
			var invalid *InvalidInputError
			if !errors.As(err, &invalid) {
				t.Errorf("Expected InvalidInputError, got %v", err)
			}
		})
	}
}
