package training

import (
	"bufio"
	"fmt"
	"io"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SubjectSummary holds the best values one subject reached during training
type SubjectSummary struct {
	Subject      string  `json:"subject" yaml:"subject"`
	MaxAUC       float64 `json:"max_auc" yaml:"max_auc"`
	MaxAUCEpoch  int     `json:"max_auc_epoch" yaml:"max_auc_epoch"`
	MinLoss      float64 `json:"min_loss" yaml:"min_loss"`
	MinLossEpoch int     `json:"min_loss_epoch" yaml:"min_loss_epoch"`
}

// SummarizeSubject finds the highest AUC and lowest loss in records. The
// earliest epoch wins ties. records must not be empty.
func SummarizeSubject(records []SubjectRecord) SubjectSummary {
	aucs := make([]float64, len(records))
	losses := make([]float64, len(records))
	for i, r := range records {
		aucs[i] = r.AUC
		losses[i] = r.Loss
	}

	maxIdx := floats.MaxIdx(aucs)
	minIdx := floats.MinIdx(losses)

	return SubjectSummary{
		Subject:      records[0].Subject,
		MaxAUC:       aucs[maxIdx],
		MaxAUCEpoch:  records[maxIdx].Epoch,
		MinLoss:      losses[minIdx],
		MinLossEpoch: records[minIdx].Epoch,
	}
}

// SubjectReport lists every subject's summary and the mean of their best AUCs
type SubjectReport struct {
	Subjects []SubjectSummary `json:"subjects" yaml:"subjects"`
	MeanAUC  float64          `json:"mean_auc" yaml:"mean_auc"`
}

// NewSubjectReport summarizes per-subject histories in SortSubjects order.
// Subjects without records are skipped.
func NewSubjectReport(history map[string][]SubjectRecord) SubjectReport {
	names := make([]string, 0, len(history))
	for name, recs := range history {
		if len(recs) > 0 {
			names = append(names, name)
		}
	}
	SortSubjects(names)

	var report SubjectReport
	if len(names) == 0 {
		return report
	}

	best := make([]float64, len(names))
	for i, name := range names {
		summary := SummarizeSubject(history[name])
		report.Subjects = append(report.Subjects, summary)
		best[i] = summary.MaxAUC
	}
	report.MeanAUC = stat.Mean(best, nil)

	return report
}

// WriteTo writes one "<subject> <max auc>" line per subject followed by
// the mean AUC line.
func (r SubjectReport) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64

	for _, s := range r.Subjects {
		n, err := fmt.Fprintf(bw, "%s %f\n", s.Subject, s.MaxAUC)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	n, err := fmt.Fprintf(bw, "Mean AUC %f\n", r.MeanAUC)
	total += int64(n)
	if err != nil {
		return total, err
	}

	return total, bw.Flush()
}
