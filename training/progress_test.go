package training

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

// TestEpochReporterFormat tests the per-epoch summary lines
func TestEpochReporterFormat(t *testing.T) {
	acc := 0.875
	tests := []struct {
		name      string
		numEpochs int
		rec       EpochRecord
		expected  string
	}{
		{
			name:      "validated new best",
			numEpochs: 10,
			rec: EpochRecord{
				Epoch: 0, TrainLoss: 0.5, TrainAccuracy: &acc,
				Validated: true, ValLoss: 0.25, ValAccuracy: 0.75, Score: 0.9, NewBest: true,
				Rates: ThresholdMetrics{Sensitivity: 0.5, Specificity: 1},
			},
			expected: "Epoch 1/10: train loss = 0.500000, test loss = 0.250000\n\tacc = 0.875000, test acc = 0.750000\n\tsens = 0.500000, spec = 1.000000\n\tauc = 0.900000 (best)",
		},
		{
			name: "validated unknown total",
			rec: EpochRecord{
				Epoch: 4, TrainLoss: 0.5, Validated: true, ValLoss: 0.25, ValAccuracy: 0.75, Score: 0.6,
			},
			expected: "Epoch 5/?: train loss = 0.500000, test loss = 0.250000\n\tacc = n/a, test acc = 0.750000\n\tsens = 0.000000, spec = 0.000000\n\tauc = 0.600000",
		},
		{
			name:      "training only",
			numEpochs: 3,
			rec:       EpochRecord{Epoch: 2, TrainLoss: 0.125, TrainAccuracy: &acc},
			expected:  "Epoch 3/3 results: train loss = 0.125000\n\t\t\tacc = 0.875000",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := NewEpochReporter(nil, test.numEpochs)
			if got := r.Format(test.rec); got != test.expected {
				t.Errorf("Format =\n%q\nexpected\n%q", got, test.expected)
			}
		})
	}
}

// TestEpochReporterReport tests that Report logs the formatted line at info level
func TestEpochReporterReport(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r := NewEpochReporter(logger, 2)

	r.Report(EpochRecord{Epoch: 1, TrainLoss: 1})

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("Expected a log entry")
	}
	if !strings.HasPrefix(entry.Message, "Epoch 2/2 results:") {
		t.Errorf("Unexpected message: %q", entry.Message)
	}
}

// TestProgressBar tests rendering of the progress line
func TestProgressBar(t *testing.T) {
	var buf bytes.Buffer
	pb := NewProgressBar(&buf, "Training", 10)

	pb.Update(5, map[string]float64{"loss": 0.25, "acc": 0.5})
	line := buf.String()

	if !strings.HasPrefix(line, "\rTraining:  50%|") {
		t.Errorf("Unexpected prefix: %q", line)
	}
	if !strings.Contains(line, strings.Repeat("█", 20)+strings.Repeat(" ", 20)+"| 5/10") {
		t.Errorf("Unexpected bar: %q", line)
	}
	if !strings.HasSuffix(line, ", acc=0.5000, loss=0.2500]") {
		t.Errorf("Metrics should be sorted by name: %q", line)
	}

	buf.Reset()
	pb.Finish()
	if !strings.Contains(buf.String(), "100%") || !strings.HasSuffix(buf.String(), "]\n") {
		t.Errorf("Unexpected finish output: %q", buf.String())
	}
}

// TestProgressBarZeroTotal tests that an empty bar does not divide by zero
func TestProgressBarZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	pb := NewProgressBar(&buf, "Empty", 0)
	pb.Update(3, nil)

	if !strings.Contains(buf.String(), "  0%") {
		t.Errorf("Unexpected output: %q", buf.String())
	}
}

func TestFormatDuration(t *testing.T) {
	if got := formatDuration(0); got != "00:00" {
		t.Errorf("formatDuration(0) = %s", got)
	}
	if got := formatDuration(125e9); got != "02:05" {
		t.Errorf("formatDuration(125s) = %s", got)
	}
}
