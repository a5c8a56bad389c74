package training

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/sirupsen/logrus"
)

// SubjectRecord is one subject's validation result for one epoch
type SubjectRecord struct {
	Subject string  `json:"subject" yaml:"subject"`
	Epoch   int     `json:"epoch" yaml:"epoch"`
	AUC     float64 `json:"auc" yaml:"auc"`
	Loss    float64 `json:"loss" yaml:"loss"`
}

// SubjectAUCHistory evaluates the model on each subject's held-out data
// separately after every epoch.
type SubjectAUCHistory struct {
	model    Predictor
	subjects map[string]ValidationData
	order    []string
	logger   logrus.FieldLogger
	history  map[string][]SubjectRecord
}

// SortSubjects orders subject names in place. Names that parse as integers
// compare numerically and come before other names, so "2" precedes "10".
func SortSubjects(names []string) {
	sort.Slice(names, func(i, j int) bool {
		return subjectLess(names[i], names[j])
	})
}

func subjectLess(a, b string) bool {
	x, errA := strconv.Atoi(a)
	y, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil && x != y:
		return x < y
	case errA == nil && errB != nil:
		return true
	case errA != nil && errB == nil:
		return false
	}
	return a < b
}

// NewSubjectAUCHistory creates the callback for the given subjects
func NewSubjectAUCHistory(model Predictor, subjects map[string]ValidationData, logger logrus.FieldLogger) *SubjectAUCHistory {
	if logger == nil {
		logger = DiscardLogger()
	}

	order := make([]string, 0, len(subjects))
	for name := range subjects {
		order = append(order, name)
	}
	SortSubjects(order)

	return &SubjectAUCHistory{
		model:    model,
		subjects: subjects,
		order:    order,
		logger:   logger,
		history:  make(map[string][]SubjectRecord),
	}
}

// OnTrainBegin clears the per-subject history
func (sh *SubjectAUCHistory) OnTrainBegin(ctx context.Context) error {
	sh.history = make(map[string][]SubjectRecord)
	return nil
}

// OnEpochEnd scores every subject in name order
func (sh *SubjectAUCHistory) OnEpochEnd(ctx context.Context, epoch int, logs Logs) error {
	for _, name := range sh.order {
		data := sh.subjects[name]

		preds, err := sh.model.Predict(ctx, data.Inputs)
		if err != nil {
			return fmt.Errorf("predicting subject %s for epoch %d: %w", name, epoch, err)
		}

		eval, err := Evaluate(preds, data.Labels)
		if err != nil {
			return fmt.Errorf("subject %s: %w", name, err)
		}

		sh.history[name] = append(sh.history[name], SubjectRecord{
			Subject: name,
			Epoch:   epoch,
			AUC:     eval.AUC,
			Loss:    eval.LogLoss,
		})

		sh.logger.WithFields(logrus.Fields{
			"subject": name,
			"epoch":   epoch,
			"auc":     eval.AUC,
			"loss":    eval.LogLoss,
		}).Debug("subject scored")
	}
	return nil
}

// OnTrainEnd is a no-op
func (sh *SubjectAUCHistory) OnTrainEnd(ctx context.Context) error {
	return nil
}

// Subjects returns subject names in evaluation order
func (sh *SubjectAUCHistory) Subjects() []string {
	return append([]string(nil), sh.order...)
}

// Records returns one subject's per-epoch results
func (sh *SubjectAUCHistory) Records(subject string) []SubjectRecord {
	return append([]SubjectRecord(nil), sh.history[subject]...)
}

// All returns a copy of every subject's results
func (sh *SubjectAUCHistory) All() map[string][]SubjectRecord {
	out := make(map[string][]SubjectRecord, len(sh.history))
	for name, recs := range sh.history {
		out[name] = append([]SubjectRecord(nil), recs...)
	}
	return out
}

// Report summarizes the collected results
func (sh *SubjectAUCHistory) Report() SubjectReport {
	return NewSubjectReport(sh.history)
}
