package training

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Predictor runs inference on a batch of input rows and returns one output
// row per input.
type Predictor interface {
	Predict(ctx context.Context, inputs [][]float64) ([][]float64, error)
}

// ModelSaver persists the current model state to path. Serialization
// format is up to the training framework.
type ModelSaver interface {
	Save(ctx context.Context, path string) error
}

// Model is the part of the training framework the callbacks talk to
type Model interface {
	Predictor
	ModelSaver
}

// ValidationData is a held-out set evaluated after every epoch
type ValidationData struct {
	Inputs [][]float64
	Labels [][]float64
}

// Callback hooks into a training loop. The loop calls OnTrainBegin once,
// OnEpochEnd after each epoch's training step, and OnTrainEnd once.
type Callback interface {
	OnTrainBegin(ctx context.Context) error
	OnEpochEnd(ctx context.Context, epoch int, logs Logs) error
	OnTrainEnd(ctx context.Context) error
}

// Checkpointer decides where model state goes when a new best epoch is found
// and when training ends.
type Checkpointer interface {
	SaveBest(ctx context.Context, model ModelSaver, rec EpochRecord) error
	SaveLast(ctx context.Context, model ModelSaver, rec EpochRecord) error
}

// EpochCheckpointer is implemented by checkpointers that also save on a
// fixed epoch schedule. SaveEpoch runs after every epoch.
type EpochCheckpointer interface {
	SaveEpoch(ctx context.Context, model ModelSaver, rec EpochRecord) error
}

// PathCheckpointer saves to fixed best and last paths. Empty paths skip
// the save.
type PathCheckpointer struct {
	BestPath string
	LastPath string
}

// SaveBest overwrites BestPath with the current model
func (pc PathCheckpointer) SaveBest(ctx context.Context, model ModelSaver, rec EpochRecord) error {
	if pc.BestPath == "" {
		return nil
	}
	return model.Save(ctx, pc.BestPath)
}

// SaveLast writes the final model to LastPath
func (pc PathCheckpointer) SaveLast(ctx context.Context, model ModelSaver, rec EpochRecord) error {
	if pc.LastPath == "" {
		return nil
	}
	return model.Save(ctx, pc.LastPath)
}

// MetricHistoryConfig configures a MetricHistory callback
type MetricHistoryConfig struct {
	NumEpochs  int             // Total epochs, for log output only
	Verbose    int             // 0 = silent, >0 = log every epoch
	Patience   int             // Epochs without AUC improvement before StopTraining (0 = disabled)
	Validation *ValidationData // nil logs training values only
}

// MetricHistory scores the validation set after every epoch, keeps the
// loss/AUC history and saves the best and last model.
type MetricHistory struct {
	config       MetricHistoryConfig
	model        Model
	checkpointer Checkpointer
	logger       logrus.FieldLogger
	reporter     *EpochReporter
	tracker      *Tracker
	plateau      *PlateauMonitor

	scores *Scores
	stop   bool
}

// NewMetricHistory creates the callback. A nil checkpointer disables saving.
func NewMetricHistory(model Model, checkpointer Checkpointer, config MetricHistoryConfig, logger logrus.FieldLogger) *MetricHistory {
	if logger == nil {
		logger = DiscardLogger()
	}
	mh := &MetricHistory{
		config:       config,
		model:        model,
		checkpointer: checkpointer,
		logger:       logger,
		reporter:     NewEpochReporter(logger, config.NumEpochs),
		tracker:      NewTracker(WithLogger(logger)),
	}
	if config.Patience > 0 {
		mh.plateau = NewPlateauMonitor(config.Patience, 0, "max")
	}
	return mh
}

// OnTrainBegin resets all collected state
func (mh *MetricHistory) OnTrainBegin(ctx context.Context) error {
	if mh.config.Verbose > 0 {
		mh.logger.Info("Training began")
	}
	mh.tracker.Reset()
	if mh.plateau != nil {
		mh.plateau.Reset()
	}
	mh.scores = nil
	mh.stop = false
	return nil
}

// OnEpochEnd records the epoch and, with validation data, scores it and
// saves the model when the AUC beats every earlier epoch.
func (mh *MetricHistory) OnEpochEnd(ctx context.Context, epoch int, logs Logs) error {
	if mh.config.Validation == nil {
		rec, err := mh.tracker.RecordTrainingOnly(epoch, logs)
		if err != nil {
			return err
		}
		if mh.config.Verbose > 0 {
			mh.reporter.Report(rec)
		}
		return nil
	}

	preds, err := mh.model.Predict(ctx, mh.config.Validation.Inputs)
	if err != nil {
		return fmt.Errorf("predicting validation set for epoch %d: %w", epoch, err)
	}

	rec, err := mh.tracker.Prepare(epoch, logs, preds, mh.config.Validation.Labels)
	if err != nil {
		return err
	}

	// The epoch is committed only once the best model is on disk
	if rec.NewBest && mh.checkpointer != nil {
		if err := mh.checkpointer.SaveBest(ctx, mh.model, rec); err != nil {
			return fmt.Errorf("saving best model for epoch %d: %w", epoch, err)
		}
	}
	if rec, err = mh.tracker.Commit(rec); err != nil {
		return err
	}
	if ec, ok := mh.checkpointer.(EpochCheckpointer); ok {
		if err := ec.SaveEpoch(ctx, mh.model, rec); err != nil {
			return fmt.Errorf("saving model for epoch %d: %w", epoch, err)
		}
	}

	if mh.plateau != nil && mh.plateau.Step(rec.Score) {
		mh.stop = true
		mh.logger.WithFields(logrus.Fields{
			"epoch":      epoch,
			"best_epoch": mh.tracker.Best().Epoch,
			"patience":   mh.config.Patience,
		}).Info("validation AUC stopped improving")
	}

	if mh.config.Verbose > 0 {
		mh.reporter.Report(rec)
	}
	return nil
}

// OnTrainEnd aggregates the per-epoch scores and saves the last model
func (mh *MetricHistory) OnTrainEnd(ctx context.Context) error {
	history := mh.tracker.History()
	if mh.config.Validation != nil {
		scores := ScoresFromHistory(history)
		mh.scores = &scores
	}

	if mh.config.Verbose > 0 {
		best := mh.tracker.Best()
		entry := mh.logger.WithField("epochs", history.Len())
		if best.Set {
			entry = entry.WithFields(logrus.Fields{"best_epoch": best.Epoch, "best_auc": best.Score})
		}
		entry.Info("Training finished")
	}

	last, ok := history.Last()
	if !ok || mh.checkpointer == nil {
		return nil
	}
	if err := mh.checkpointer.SaveLast(ctx, mh.model, last); err != nil {
		return fmt.Errorf("saving last model: %w", err)
	}
	return nil
}

// StopTraining reports whether the AUC has plateaued for Patience epochs
func (mh *MetricHistory) StopTraining() bool {
	return mh.stop
}

// History returns the per-epoch records collected so far
func (mh *MetricHistory) History() History {
	return mh.tracker.History()
}

// Best returns the best AUC and its epoch
func (mh *MetricHistory) Best() BestTracker {
	return mh.tracker.Best()
}

// Scores returns the aggregate computed at train end, or nil before that or
// when training ran without validation data.
func (mh *MetricHistory) Scores() *Scores {
	return mh.scores
}

// Scores aggregates validation results per epoch, in epoch order
type Scores struct {
	AUC         []float64   `json:"auc" yaml:"auc"`
	Accuracy    []float64   `json:"acc" yaml:"acc"`
	Sensitivity [][]float64 `json:"sens" yaml:"sens"`
	Specificity [][]float64 `json:"spc" yaml:"spc"`
	Thresholds  [][]float64 `json:"thresholds" yaml:"thresholds"`
}

// ScoresFromHistory collects the validated records of h. Multi-class
// epochs have no ROC curve and contribute empty curve entries.
func ScoresFromHistory(h History) Scores {
	var s Scores
	for _, r := range h.Validated() {
		s.AUC = append(s.AUC, r.Score)
		s.Accuracy = append(s.Accuracy, r.ValAccuracy)
		if r.ROC != nil {
			s.Sensitivity = append(s.Sensitivity, r.ROC.Sensitivity())
			s.Specificity = append(s.Specificity, r.ROC.Specificity())
			s.Thresholds = append(s.Thresholds, append([]float64(nil), r.ROC.Thresholds...))
		} else {
			s.Sensitivity = append(s.Sensitivity, nil)
			s.Specificity = append(s.Specificity, nil)
			s.Thresholds = append(s.Thresholds, nil)
		}
	}
	return s
}

// CallbackList runs several callbacks in order and stops at the first error
type CallbackList []Callback

// OnTrainBegin calls every callback's OnTrainBegin
func (cl CallbackList) OnTrainBegin(ctx context.Context) error {
	for _, cb := range cl {
		if err := cb.OnTrainBegin(ctx); err != nil {
			return err
		}
	}
	return nil
}

// OnEpochEnd calls every callback's OnEpochEnd
func (cl CallbackList) OnEpochEnd(ctx context.Context, epoch int, logs Logs) error {
	for _, cb := range cl {
		if err := cb.OnEpochEnd(ctx, epoch, logs); err != nil {
			return err
		}
	}
	return nil
}

// OnTrainEnd calls every callback's OnTrainEnd
func (cl CallbackList) OnTrainEnd(ctx context.Context) error {
	for _, cb := range cl {
		if err := cb.OnTrainEnd(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StopTraining reports whether any callback asked to stop
func (cl CallbackList) StopTraining() bool {
	for _, cb := range cl {
		if s, ok := cb.(interface{ StopTraining() bool }); ok && s.StopTraining() {
			return true
		}
	}
	return false
}
