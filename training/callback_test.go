package training

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// scriptedModel returns one prepared prediction set per epoch and records saves
type scriptedModel struct {
	epochs [][][]float64
	epoch  int
	saves  []string
	err    error
}

func (m *scriptedModel) Predict(ctx context.Context, inputs [][]float64) ([][]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.epochs[m.epoch], nil
}

func (m *scriptedModel) Save(ctx context.Context, path string) error {
	m.saves = append(m.saves, path)
	return nil
}

// recordingCheckpointer notes which epochs were saved
type recordingCheckpointer struct {
	best     []int
	last     []int
	every    []int
	failBest error // returned once by the next SaveBest
}

func (c *recordingCheckpointer) SaveBest(ctx context.Context, model ModelSaver, rec EpochRecord) error {
	if err := c.failBest; err != nil {
		c.failBest = nil
		return err
	}
	c.best = append(c.best, rec.Epoch)
	return model.Save(ctx, "best")
}

func (c *recordingCheckpointer) SaveLast(ctx context.Context, model ModelSaver, rec EpochRecord) error {
	c.last = append(c.last, rec.Epoch)
	return model.Save(ctx, "last")
}

func (c *recordingCheckpointer) SaveEpoch(ctx context.Context, model ModelSaver, rec EpochRecord) error {
	c.every = append(c.every, rec.Epoch)
	return nil
}

func runEpochs(t *testing.T, cb Callback, model *scriptedModel, n int) {
	t.Helper()
	ctx := context.Background()
	if err := cb.OnTrainBegin(ctx); err != nil {
		t.Fatalf("OnTrainBegin failed: %v", err)
	}
	for epoch := 0; epoch < n; epoch++ {
		model.epoch = epoch
		if err := cb.OnEpochEnd(ctx, epoch, Logs{Loss: 1.0 / float64(epoch+1)}); err != nil {
			t.Fatalf("OnEpochEnd(%d) failed: %v", epoch, err)
		}
	}
	if err := cb.OnTrainEnd(ctx); err != nil {
		t.Fatalf("OnTrainEnd failed: %v", err)
	}
}

// TestMetricHistorySavesBestAndLast tests checkpointing during a run
func TestMetricHistorySavesBestAndLast(t *testing.T) {
	logger, hook := test.NewNullLogger()
	model := &scriptedModel{epochs: [][][]float64{
		predictionsWithAUC(0.75),
		predictionsWithAUC(0.5),
		predictionsWithAUC(1.0),
		predictionsWithAUC(1.0),
	}}
	ckpt := &recordingCheckpointer{}

	mh := NewMetricHistory(model, ckpt, MetricHistoryConfig{
		NumEpochs:  4,
		Verbose:    1,
		Validation: &ValidationData{Inputs: column(1, 2, 3, 4), Labels: binaryLabels},
	}, logger)

	runEpochs(t, mh, model, 4)

	if len(ckpt.best) != 2 || ckpt.best[0] != 0 || ckpt.best[1] != 2 {
		t.Errorf("SaveBest epochs = %v, expected [0 2]", ckpt.best)
	}
	if len(ckpt.last) != 1 || ckpt.last[0] != 3 {
		t.Errorf("SaveLast epochs = %v, expected [3]", ckpt.last)
	}
	if len(ckpt.every) != 4 {
		t.Errorf("SaveEpoch calls = %v, expected one per epoch", ckpt.every)
	}
	if strings.Join(model.saves, ",") != "best,best,last" {
		t.Errorf("Model saves = %v", model.saves)
	}

	if best := mh.Best(); best.Epoch != 2 || best.Score != 1.0 {
		t.Errorf("Best = %+v, expected epoch 2", best)
	}

	scores := mh.Scores()
	if scores == nil {
		t.Fatal("Scores should be set after OnTrainEnd")
	}
	if len(scores.AUC) != 4 || len(scores.Sensitivity) != 4 || len(scores.Thresholds) != 4 {
		t.Errorf("Unexpected score lengths: %+v", scores)
	}

	var sawBegin, sawFinish, sawEpoch bool
	for _, entry := range hook.AllEntries() {
		switch {
		case entry.Message == "Training began":
			sawBegin = true
		case entry.Message == "Training finished":
			sawFinish = true
			if entry.Data["best_epoch"] != 2 {
				t.Errorf("Finish entry best_epoch = %v", entry.Data["best_epoch"])
			}
		case strings.HasPrefix(entry.Message, "Epoch 3/4: "):
			sawEpoch = true
			if !strings.HasSuffix(entry.Message, "(best)") {
				t.Errorf("Epoch 3 should be marked best: %q", entry.Message)
			}
		}
	}
	if !sawBegin || !sawFinish || !sawEpoch {
		t.Errorf("Missing verbose log lines: begin=%v finish=%v epoch=%v", sawBegin, sawFinish, sawEpoch)
	}
}

// TestMetricHistoryWithoutValidation tests degradation to training-only logging
func TestMetricHistoryWithoutValidation(t *testing.T) {
	logger, hook := test.NewNullLogger()
	model := &scriptedModel{err: errors.New("predict must not be called")}
	ckpt := &recordingCheckpointer{}

	mh := NewMetricHistory(model, ckpt, MetricHistoryConfig{Verbose: 1}, logger)
	runEpochs(t, mh, model, 3)

	if mh.History().Len() != 3 {
		t.Errorf("History len = %d, expected 3", mh.History().Len())
	}
	if mh.Best().Set {
		t.Error("Best should stay unset without validation")
	}
	if mh.Scores() != nil {
		t.Error("Scores should be nil without validation")
	}
	if len(ckpt.best) != 0 || len(ckpt.last) != 1 {
		t.Errorf("Expected only the last save, got best=%v last=%v", ckpt.best, ckpt.last)
	}

	found := false
	for _, entry := range hook.AllEntries() {
		if strings.HasPrefix(entry.Message, "Epoch 1/? results: train loss = 1.000000") {
			found = true
		}
	}
	if !found {
		t.Error("Expected a training-only epoch line")
	}
}

// TestMetricHistoryEarlyStop tests the patience option
func TestMetricHistoryEarlyStop(t *testing.T) {
	logger, _ := test.NewNullLogger()
	model := &scriptedModel{epochs: [][][]float64{
		predictionsWithAUC(0.75),
		predictionsWithAUC(0.5),
		predictionsWithAUC(0.75),
	}}

	mh := NewMetricHistory(model, nil, MetricHistoryConfig{
		Patience:   2,
		Validation: &ValidationData{Inputs: column(1, 2, 3, 4), Labels: binaryLabels},
	}, logger)

	ctx := context.Background()
	if err := mh.OnTrainBegin(ctx); err != nil {
		t.Fatal(err)
	}
	for epoch := 0; epoch < 3; epoch++ {
		model.epoch = epoch
		if err := mh.OnEpochEnd(ctx, epoch, Logs{}); err != nil {
			t.Fatal(err)
		}
		if stop := mh.StopTraining(); stop != (epoch == 2) {
			t.Errorf("epoch %d: StopTraining = %v", epoch, stop)
		}
	}

	if err := mh.OnTrainBegin(ctx); err != nil {
		t.Fatal(err)
	}
	if mh.StopTraining() || mh.History().Len() != 0 {
		t.Error("OnTrainBegin should reset stop flag and history")
	}
}

// TestMetricHistoryErrors tests error propagation
func TestMetricHistoryErrors(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ctx := context.Background()

	boom := errors.New("gpu lost")
	model := &scriptedModel{err: boom}
	mh := NewMetricHistory(model, nil, MetricHistoryConfig{
		Validation: &ValidationData{Inputs: column(1, 2, 3, 4), Labels: binaryLabels},
	}, logger)
	if err := mh.OnEpochEnd(ctx, 0, Logs{}); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped predict error, got %v", err)
	}

	model = &scriptedModel{epochs: [][][]float64{column(0.1, 0.2)}}
	mh = NewMetricHistory(model, nil, MetricHistoryConfig{
		Validation: &ValidationData{Inputs: column(1, 2, 3, 4), Labels: binaryLabels},
	}, logger)
	var invalid *InvalidInputError
	if err := mh.OnEpochEnd(ctx, 0, Logs{}); !errors.As(err, &invalid) {
		t.Errorf("Expected InvalidInputError, got %v", err)
	}
}

// TestPathCheckpointer tests fixed-path saving
func TestPathCheckpointer(t *testing.T) {
	model := &scriptedModel{}
	ctx := context.Background()

	pc := PathCheckpointer{BestPath: "weights/best.hdf5"}
	if err := pc.SaveBest(ctx, model, EpochRecord{}); err != nil {
		t.Fatal(err)
	}
	if err := pc.SaveLast(ctx, model, EpochRecord{}); err != nil {
		t.Fatal(err)
	}
	if len(model.saves) != 1 || model.saves[0] != "weights/best.hdf5" {
		t.Errorf("Saves = %v, expected only the best path", model.saves)
	}
}

// TestSubjectAUCHistory tests per-subject scoring
func TestSubjectAUCHistory(t *testing.T) {
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	model := &scriptedModel{epochs: [][][]float64{
		predictionsWithAUC(0.5),
		predictionsWithAUC(1.0),
		predictionsWithAUC(0.75),
	}}
	subjects := map[string]ValidationData{
		"s2": {Inputs: column(1, 2, 3, 4), Labels: binaryLabels},
		"s1": {Inputs: column(1, 2, 3, 4), Labels: binaryLabels},
	}

	sh := NewSubjectAUCHistory(model, subjects, logger)
	runEpochs(t, sh, model, 3)

	if names := sh.Subjects(); len(names) != 2 || names[0] != "s1" || names[1] != "s2" {
		t.Errorf("Subjects = %v, expected sorted names", names)
	}

	recs := sh.Records("s1")
	if len(recs) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(recs))
	}
	if recs[1].AUC != 1.0 || recs[1].Epoch != 1 || recs[1].Subject != "s1" {
		t.Errorf("Unexpected record: %+v", recs[1])
	}

	report := sh.Report()
	if len(report.Subjects) != 2 || report.Subjects[0].MaxAUCEpoch != 1 {
		t.Errorf("Unexpected report: %+v", report)
	}
	if report.MeanAUC != 1.0 {
		t.Errorf("MeanAUC = %f, expected 1.0", report.MeanAUC)
	}

	all := sh.All()
	all["s1"][0].AUC = 42
	if sh.Records("s1")[0].AUC == 42 {
		t.Error("All should return copies")
	}
}

// TestCallbackList tests ordering, error short-circuit and stop propagation
func TestCallbackList(t *testing.T) {
	logger, _ := test.NewNullLogger()
	model := &scriptedModel{epochs: [][][]float64{
		predictionsWithAUC(1.0),
		predictionsWithAUC(0.5),
	}}
	mh := NewMetricHistory(model, nil, MetricHistoryConfig{
		Patience:   1,
		Validation: &ValidationData{Inputs: column(1, 2, 3, 4), Labels: binaryLabels},
	}, logger)
	sh := NewSubjectAUCHistory(model, map[string]ValidationData{
		"s1": {Inputs: column(1, 2, 3, 4), Labels: binaryLabels},
	}, logger)

	list := CallbackList{mh, sh}
	runEpochs(t, list, model, 2)

	if !list.StopTraining() {
		t.Error("List should report the metric history's stop request")
	}
	if len(sh.Records("s1")) != 2 {
		t.Error("Every callback should run each epoch")
	}

	model.err = errors.New("boom")
	if err := list.OnEpochEnd(context.Background(), 2, Logs{}); err == nil {
		t.Error("Expected error to propagate")
	}
	if len(sh.Records("s1")) != 2 {
		t.Error("Callbacks after a failing one should not run")
	}
}

// TestMetricHistorySaveBestFailure tests that an epoch whose best model could
// not be saved is not recorded and can be replayed
func TestMetricHistorySaveBestFailure(t *testing.T) {
	logger, _ := test.NewNullLogger()
	model := &scriptedModel{epochs: [][][]float64{predictionsWithAUC(1.0)}}
	ckpt := &recordingCheckpointer{failBest: errors.New("disk full")}

	mh := NewMetricHistory(model, ckpt, MetricHistoryConfig{
		Validation: &ValidationData{Inputs: column(1, 2, 3, 4), Labels: binaryLabels},
	}, logger)
	ctx := context.Background()

	if err := mh.OnEpochEnd(ctx, 0, Logs{}); err == nil {
		t.Fatal("Expected save failure")
	}
	if mh.History().Len() != 0 || mh.Best().Set {
		t.Errorf("Failed epoch should not be recorded: len=%d best=%+v", mh.History().Len(), mh.Best())
	}

	if err := mh.OnEpochEnd(ctx, 0, Logs{}); err != nil {
		t.Fatalf("Retry failed: %v", err)
	}
	if len(ckpt.best) != 1 || ckpt.best[0] != 0 || !mh.Best().Set {
		t.Errorf("Retry should save the best model: best=%v", ckpt.best)
	}
}
