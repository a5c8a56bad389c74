package training

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// BestListener is called with the record that raised the best score. It is
// where the caller persists model state.
type BestListener func(EpochRecord) error

// Tracker scores each epoch's validation predictions, appends the result to
// the history and keeps the running best score. It is driven once per epoch
// by a single goroutine and is not safe for concurrent use.
type Tracker struct {
	logger  logrus.FieldLogger
	onBest  BestListener
	history History
	best    BestTracker
}

// TrackerOption configures a Tracker
type TrackerOption func(*Tracker)

// WithLogger sets the logger used for per-epoch debug output
func WithLogger(logger logrus.FieldLogger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithBestListener registers the save-best hook
func WithBestListener(fn BestListener) TrackerOption {
	return func(t *Tracker) {
		t.onBest = fn
	}
}

// NewTracker creates an empty tracker
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		logger: DiscardLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Update scores predictions against labels for the given epoch and appends
// the record. When the score strictly beats the running best the record is
// marked NewBest and the best listener runs before anything is committed.
// Invalid input or a failing listener leaves the tracker untouched, so the
// same epoch can be submitted again.
func (t *Tracker) Update(epoch int, logs Logs, predictions, labels [][]float64) (EpochRecord, error) {
	rec, err := t.Prepare(epoch, logs, predictions, labels)
	if err != nil {
		return EpochRecord{}, err
	}
	return t.notifyAndCommit(rec)
}

// UpdateEvaluation appends a record for an evaluation computed elsewhere.
func (t *Tracker) UpdateEvaluation(epoch int, logs Logs, eval Evaluation) (EpochRecord, error) {
	if err := t.checkEpoch(epoch); err != nil {
		return EpochRecord{}, err
	}
	return t.notifyAndCommit(t.newRecord(epoch, logs, eval))
}

// Prepare scores predictions for epoch without changing the tracker. NewBest
// on the result reports whether committing it would raise the best score.
func (t *Tracker) Prepare(epoch int, logs Logs, predictions, labels [][]float64) (EpochRecord, error) {
	if err := t.checkEpoch(epoch); err != nil {
		return EpochRecord{}, err
	}

	eval, err := Evaluate(predictions, labels)
	if err != nil {
		return EpochRecord{}, err
	}

	return t.newRecord(epoch, logs, eval), nil
}

// Commit appends a prepared record and updates the running best. The
// listener is not called.
func (t *Tracker) Commit(rec EpochRecord) (EpochRecord, error) {
	if err := t.checkEpoch(rec.Epoch); err != nil {
		return EpochRecord{}, err
	}

	rec.NewBest = rec.Validated && t.best.offer(rec.Epoch, rec.Score)
	t.history.append(rec)

	t.logger.WithFields(logrus.Fields{
		"epoch":    rec.Epoch,
		"score":    rec.Score,
		"val_loss": rec.ValLoss,
		"new_best": rec.NewBest,
	}).Debug("epoch scored")

	return rec, nil
}

// RecordTrainingOnly appends a record for an epoch without validation data.
// It never changes the best score.
func (t *Tracker) RecordTrainingOnly(epoch int, logs Logs) (EpochRecord, error) {
	if err := t.checkEpoch(epoch); err != nil {
		return EpochRecord{}, err
	}

	rec := EpochRecord{
		Epoch:         epoch,
		TrainLoss:     logs.Loss,
		TrainAccuracy: logs.Accuracy,
	}
	t.history.append(rec)

	t.logger.WithFields(logrus.Fields{
		"epoch":      epoch,
		"train_loss": logs.Loss,
	}).Debug("epoch recorded without validation")

	return rec, nil
}

func (t *Tracker) newRecord(epoch int, logs Logs, eval Evaluation) EpochRecord {
	rec := EpochRecord{
		Epoch:         epoch,
		TrainLoss:     logs.Loss,
		TrainAccuracy: logs.Accuracy,
		Validated:     true,
		ValLoss:       eval.LogLoss,
		ValAccuracy:   eval.Accuracy,
		Score:         eval.AUC,
		Rates:         eval.Rates,
		ROC:           eval.ROC,
	}
	if logs.ValLoss != nil {
		rec.ValLoss = *logs.ValLoss
	}
	if logs.ValAccuracy != nil {
		rec.ValAccuracy = *logs.ValAccuracy
	}
	rec.NewBest = t.best.beats(rec.Score)
	return rec
}

func (t *Tracker) notifyAndCommit(rec EpochRecord) (EpochRecord, error) {
	if rec.NewBest && t.onBest != nil {
		if err := t.onBest(rec); err != nil {
			return EpochRecord{}, fmt.Errorf("best listener for epoch %d: %w", rec.Epoch, err)
		}
	}
	return t.Commit(rec)
}

func (t *Tracker) checkEpoch(epoch int) error {
	if epoch < 0 {
		return invalidInput("epoch", "index %d is negative", epoch)
	}
	if last, ok := t.history.Last(); ok && epoch <= last.Epoch {
		return invalidInput("epoch", "index %d does not follow %d", epoch, last.Epoch)
	}
	return nil
}

// History returns the records appended so far
func (t *Tracker) History() History {
	return NewHistory(t.history.records)
}

// Best returns the running best score and its epoch
func (t *Tracker) Best() BestTracker {
	return t.best
}

// Len returns the number of recorded epochs
func (t *Tracker) Len() int {
	return t.history.Len()
}

// Reset clears history and best score, as at the start of a new training run
func (t *Tracker) Reset() {
	t.history = History{}
	t.best = BestTracker{}
}
