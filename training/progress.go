package training

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// EpochReporter logs a human-readable summary of every epoch
type EpochReporter struct {
	logger    logrus.FieldLogger
	numEpochs int
}

// NewEpochReporter creates a reporter; numEpochs is only used in the
// "Epoch i/N" prefix and may be 0 when unknown.
func NewEpochReporter(logger logrus.FieldLogger, numEpochs int) *EpochReporter {
	return &EpochReporter{
		logger:    logger,
		numEpochs: numEpochs,
	}
}

// Report logs rec. Epochs are shown 1-based.
func (r *EpochReporter) Report(rec EpochRecord) {
	r.logger.Info(r.Format(rec))
}

// Format renders rec the way Report logs it
func (r *EpochReporter) Format(rec EpochRecord) string {
	total := "?"
	if r.numEpochs > 0 {
		total = fmt.Sprintf("%d", r.numEpochs)
	}

	if !rec.Validated {
		return fmt.Sprintf("Epoch %d/%s results: train loss = %.6f\n\t\t\tacc = %s",
			rec.Epoch+1, total, rec.TrainLoss, formatOptional(rec.TrainAccuracy))
	}

	line := fmt.Sprintf("Epoch %d/%s: train loss = %.6f, test loss = %.6f\n\tacc = %s, test acc = %.6f\n\tsens = %.6f, spec = %.6f\n\tauc = %.6f",
		rec.Epoch+1, total, rec.TrainLoss, rec.ValLoss,
		formatOptional(rec.TrainAccuracy), rec.ValAccuracy,
		rec.Rates.Sensitivity, rec.Rates.Specificity, rec.Score)
	if rec.NewBest {
		line += " (best)"
	}
	return line
}

func formatOptional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.6f", *v)
}

// ProgressBar renders a single-line progress indicator to a writer
type ProgressBar struct {
	out         io.Writer
	description string
	total       int
	current     int
	startTime   time.Time
	width       int
	showETA     bool
	metrics     map[string]float64
}

// NewProgressBar creates a new progress bar
func NewProgressBar(out io.Writer, description string, total int) *ProgressBar {
	return &ProgressBar{
		out:         out,
		description: description,
		total:       total,
		startTime:   time.Now(),
		width:       40, // Character width of progress bar
		showETA:     true,
		metrics:     make(map[string]float64),
	}
}

// Update advances the progress bar
func (pb *ProgressBar) Update(step int, metrics map[string]float64) {
	pb.current = step
	pb.metrics = metrics
	pb.render()
}

// Finish completes the progress bar
func (pb *ProgressBar) Finish() {
	pb.current = pb.total
	pb.render()
	fmt.Fprintln(pb.out)
}

// render draws the progress bar
func (pb *ProgressBar) render() {
	fmt.Fprint(pb.out, pb.line())
}

func (pb *ProgressBar) line() string {
	percentage := 0.0
	if pb.total > 0 {
		percentage = float64(pb.current) / float64(pb.total)
	}
	if percentage > 1.0 {
		percentage = 1.0
	}

	filled := int(percentage * float64(pb.width))
	bar := strings.Repeat("█", filled) + strings.Repeat(" ", pb.width-filled)

	elapsed := time.Since(pb.startTime)
	var eta time.Duration
	if percentage > 0 {
		totalTime := time.Duration(float64(elapsed) / percentage)
		eta = totalTime - elapsed
	}

	line := fmt.Sprintf("\r%s: %3.0f%%|%s| %d/%d", pb.description, percentage*100, bar, pb.current, pb.total)

	if pb.showETA && eta > 0 {
		line += fmt.Sprintf(" [%s<%s", formatDuration(elapsed), formatDuration(eta))
	} else {
		line += fmt.Sprintf(" [%s<00:00", formatDuration(elapsed))
	}

	// Sorted for stable output
	keys := make([]string, 0, len(pb.metrics))
	for k := range pb.metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		line += fmt.Sprintf(", %s=%.4f", key, pb.metrics[key])
	}

	return line + "]"
}

// formatDuration formats duration as MM:SS
func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
