package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tsawler/epochwatch/checkpoints"
	"github.com/tsawler/epochwatch/config"
	"github.com/tsawler/epochwatch/training"
)

// ReplayFile holds predictions dumped by a training run, one entry per epoch.
// Labels are shared by every epoch; a nil Labels replays training-only logs.
type ReplayFile struct {
	Labels   [][]float64            `json:"labels,omitempty"`
	Subjects map[string][][]float64 `json:"subjects,omitempty"` // per-subject labels
	Epochs   []ReplayEpoch          `json:"epochs"`
}

// ReplayEpoch is one epoch of a ReplayFile
type ReplayEpoch struct {
	Epoch       int                    `json:"epoch"`
	Logs        training.Logs          `json:"logs"`
	Predictions [][]float64            `json:"predictions,omitempty"`
	Subjects    map[string][][]float64 `json:"subjects,omitempty"` // per-subject predictions
}

// LoadReplayFile reads a JSON replay file
func LoadReplayFile(path string) (*ReplayFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading epochs file %s: %w", path, err)
	}
	var rf ReplayFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing epochs file %s: %w", path, err)
	}
	return &rf, nil
}

// ReplayResult is everything a replay produced
type ReplayResult struct {
	Snapshot *checkpoints.Snapshot
	Report   *training.SubjectReport
	Stopped  bool // early stop fired before the last recorded epoch

	Checkpoints []string // epoch files left in the checkpoint directory
}

// recordedModel answers Predict with the predictions recorded for the current
// epoch. Each input row is a sample key {set, index}: set 0 is the shared
// validation set, set k is the k-th subject in SortSubjects order.
type recordedModel struct {
	sets  [][][]float64
	epoch int
}

func (m *recordedModel) Predict(ctx context.Context, inputs [][]float64) ([][]float64, error) {
	out := make([][]float64, len(inputs))
	for i, key := range inputs {
		if len(key) != 2 {
			return nil, fmt.Errorf("epoch %d: malformed sample key %v", m.epoch, key)
		}
		set, idx := int(key[0]), int(key[1])
		if set >= len(m.sets) || idx >= len(m.sets[set]) {
			return nil, fmt.Errorf("epoch %d: no recorded prediction for set %d sample %d", m.epoch, set, idx)
		}
		out[i] = m.sets[set][idx]
	}
	return out, nil
}

// Save writes the recorded predictions of the current epoch, standing in for
// model weights.
func (m *recordedModel) Save(ctx context.Context, path string) error {
	data, err := json.Marshal(map[string]interface{}{
		"epoch":       m.epoch,
		"predictions": m.sets,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (m *recordedModel) load(rf *ReplayFile, subjects []string, e ReplayEpoch) error {
	m.epoch = e.Epoch
	m.sets = m.sets[:0]

	if rf.Labels != nil && len(e.Predictions) != len(rf.Labels) {
		return fmt.Errorf("epoch %d: %d predictions for %d labels", e.Epoch, len(e.Predictions), len(rf.Labels))
	}
	m.sets = append(m.sets, e.Predictions)

	for _, name := range subjects {
		preds, ok := e.Subjects[name]
		if !ok {
			return fmt.Errorf("epoch %d: no predictions for subject %s", e.Epoch, name)
		}
		m.sets = append(m.sets, preds)
	}
	return nil
}

func sampleKeys(set, n int) [][]float64 {
	keys := make([][]float64, n)
	for i := range keys {
		keys[i] = []float64{float64(set), float64(i)}
	}
	return keys
}

// Replay feeds a recorded run through the metric callbacks as if it were
// training live, honoring the configured checkpoints and early stop. A
// non-nil progress writer gets a progress bar advanced once per epoch.
func Replay(ctx context.Context, cfg config.Config, rf *ReplayFile, logger logrus.FieldLogger, progress io.Writer) (*ReplayResult, error) {
	subjects := make([]string, 0, len(rf.Subjects))
	for name := range rf.Subjects {
		subjects = append(subjects, name)
	}
	training.SortSubjects(subjects)

	model := &recordedModel{}
	manager := checkpoints.NewManager(cfg.Checkpoints, logger)

	numEpochs := cfg.NumEpochs
	if numEpochs == 0 {
		numEpochs = len(rf.Epochs)
	}

	mhConfig := training.MetricHistoryConfig{
		NumEpochs: numEpochs,
		Verbose:   cfg.Verbose,
		Patience:  cfg.Patience,
	}
	if rf.Labels != nil {
		mhConfig.Validation = &training.ValidationData{
			Inputs: sampleKeys(0, len(rf.Labels)),
			Labels: rf.Labels,
		}
	}
	metrics := training.NewMetricHistory(model, manager, mhConfig, logger)
	callbacks := training.CallbackList{metrics}

	var perSubject *training.SubjectAUCHistory
	if len(subjects) > 0 {
		data := make(map[string]training.ValidationData, len(subjects))
		for i, name := range subjects {
			data[name] = training.ValidationData{
				Inputs: sampleKeys(i+1, len(rf.Subjects[name])),
				Labels: rf.Subjects[name],
			}
		}
		perSubject = training.NewSubjectAUCHistory(model, data, logger)
		callbacks = append(callbacks, perSubject)
	}

	result := &ReplayResult{}

	var bar *training.ProgressBar
	if progress != nil {
		bar = training.NewProgressBar(progress, cfg.ModelName, len(rf.Epochs))
	}

	if err := callbacks.OnTrainBegin(ctx); err != nil {
		return nil, err
	}
	for i, e := range rf.Epochs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := model.load(rf, subjects, e); err != nil {
			return nil, err
		}
		if err := callbacks.OnEpochEnd(ctx, e.Epoch, e.Logs); err != nil {
			return nil, err
		}
		if bar != nil {
			bar.Update(i+1, progressMetrics(metrics.History()))
		}
		if callbacks.StopTraining() {
			result.Stopped = i < len(rf.Epochs)-1
			break
		}
	}
	if bar != nil {
		bar.Finish()
	}
	if err := callbacks.OnTrainEnd(ctx); err != nil {
		return nil, err
	}

	if cfg.Checkpoints.KeepBestOnly && metrics.History().Best().Set {
		removed, err := manager.CleanNonBest()
		if err != nil {
			return nil, err
		}
		logger.WithFields(logrus.Fields{
			"removed": len(removed),
			"kept":    manager.SavedFiles(),
		}).Info("non-best checkpoints removed")
	}
	result.Checkpoints = manager.SavedFiles()

	snapshot := checkpoints.NewSnapshot(cfg.ModelName, metrics.History())
	snapshot.Scores = metrics.Scores()
	snapshot.Metadata.Description = cfg.Title
	if perSubject != nil {
		snapshot.Subjects = perSubject.All()
		report := perSubject.Report()
		result.Report = &report
	}
	if cfg.Snapshot.HostMetadata {
		host, err := checkpoints.CollectHostInfo(ctx)
		if err != nil {
			logger.WithError(err).Warn("host metadata unavailable")
		}
		snapshot.Metadata.Host = host
	}
	result.Snapshot = snapshot

	return result, nil
}

// progressMetrics is the loss and, for validated epochs, the AUC of the
// latest record.
func progressMetrics(h training.History) map[string]float64 {
	last, ok := h.Last()
	if !ok {
		return nil
	}
	stats := map[string]float64{"loss": last.TrainLoss}
	if last.Validated {
		stats["auc"] = last.Score
	}
	return stats
}

func newReplayCmd() *cobra.Command {
	var (
		configPath string
		epochsPath string
		outPath    string
	)

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay dumped per-epoch predictions through the metric tracker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}
			// --log-level wins over the config file
			if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
				level, err := logrus.ParseLevel(cfg.LogLevel)
				if err != nil {
					return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
				}
				logrus.SetLevel(level)
			}

			format, err := checkpoints.ParseFormat(cfg.Snapshot.Format)
			if err != nil {
				return err
			}
			if outPath != "" {
				cfg.Snapshot.Path = outPath
				format = checkpoints.FormatFromPath(outPath)
			}

			rf, err := LoadReplayFile(epochsPath)
			if err != nil {
				return err
			}

			logger := logrus.StandardLogger()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			var progress io.Writer
			if cfg.Progress {
				progress = cmd.ErrOrStderr()
			}

			result, err := Replay(ctx, cfg, rf, logger, progress)
			if err != nil {
				return err
			}

			if err := checkpoints.NewSnapshotSaver(format).SaveSnapshot(result.Snapshot, cfg.Snapshot.Path); err != nil {
				return err
			}

			best := result.Snapshot.Best
			entry := logger.WithFields(logrus.Fields{
				"snapshot": cfg.Snapshot.Path,
				"epochs":   len(result.Snapshot.Records),
			})
			if best.Set {
				entry = entry.WithFields(logrus.Fields{"best_epoch": best.Epoch, "best_auc": best.Score})
			}
			entry.Info("replay finished")

			if result.Report != nil && cfg.Report != "" {
				if err := writeReport(cfg.Report, *result.Report); err != nil {
					return err
				}
			}

			if cfg.Plotting.Enabled {
				return sendPlots(ctx, cfg.Plotting.Service, cfg.ModelName, cfg.Title, result.Snapshot, logger)
			}
			return nil
		},
	}

	replayCmd.Flags().StringVar(&configPath, "config", "", "YAML run configuration")
	replayCmd.Flags().StringVar(&epochsPath, "epochs", "", "JSON file of recorded per-epoch predictions")
	replayCmd.Flags().StringVar(&outPath, "out", "", "Snapshot output path (overrides config; .pb selects protobuf)")
	_ = replayCmd.MarkFlagRequired("epochs")

	return replayCmd
}

func writeReport(path string, report training.SubjectReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report %s: %w", path, err)
	}
	if _, err := report.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return f.Close()
}
