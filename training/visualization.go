package training

import (
	"encoding/json"
	"fmt"
	"time"
)

// PlotType represents different types of plots that can be generated
type PlotType string

const (
	TrainingCurves PlotType = "training_curves"
	ROCCurve       PlotType = "roc_curve"
	SubjectCurves  PlotType = "subject_curves"
)

// PlotData represents the universal JSON format for the sidecar plotting service
type PlotData struct {
	// Metadata
	PlotType  PlotType  `json:"plot_type"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	ModelName string    `json:"model_name"`

	// Data series
	Series []SeriesData `json:"series"`

	// Plot configuration
	Config PlotConfig `json:"config"`

	// Metrics metadata
	Metrics map[string]interface{} `json:"metrics,omitempty"`
}

// SeriesData represents a single data series in a plot
type SeriesData struct {
	Name  string                 `json:"name"`
	Type  string                 `json:"type"` // "line", "scatter"
	Data  []DataPoint            `json:"data"`
	Style map[string]interface{} `json:"style,omitempty"`
}

// DataPoint represents a single data point
type DataPoint struct {
	X     interface{} `json:"x"`
	Y     interface{} `json:"y"`
	Label string      `json:"label,omitempty"`
}

// PlotConfig contains plot-specific configuration
type PlotConfig struct {
	XAxisLabel    string                 `json:"x_axis_label"`
	YAxisLabel    string                 `json:"y_axis_label"`
	XAxisScale    string                 `json:"x_axis_scale"` // "linear", "log"
	YAxisScale    string                 `json:"y_axis_scale"` // "linear", "log"
	ShowLegend    bool                   `json:"show_legend"`
	ShowGrid      bool                   `json:"show_grid"`
	Width         int                    `json:"width"`
	Height        int                    `json:"height"`
	Interactive   bool                   `json:"interactive"`
	CustomOptions map[string]interface{} `json:"custom_options,omitempty"`
}

// Two-panel layout: losses on the left, AUC on the right
const (
	lossPanel = 1
	aucPanel  = 2
)

func lineSeries(name, color string, panel int, dashed bool) SeriesData {
	style := map[string]interface{}{
		"color":      color,
		"line_width": 2,
		"subplot":    panel,
	}
	if dashed {
		style["line_style"] = "dashed"
	}
	return SeriesData{Name: name, Type: "line", Style: style}
}

func twoPanelConfig(xLabel string) PlotConfig {
	return PlotConfig{
		XAxisLabel:  xLabel,
		YAxisLabel:  "Loss / AUC",
		XAxisScale:  "linear",
		YAxisScale:  "linear",
		ShowLegend:  true,
		ShowGrid:    true,
		Width:       1200,
		Height:      1200,
		Interactive: true,
		CustomOptions: map[string]interface{}{
			"subplots": 2,
		},
	}
}

// TrainingCurvesPlot builds the loss and validation AUC curves of a run.
// The title carries the best AUC and its epoch when validation ran.
func TrainingCurvesPlot(modelName, title string, h History) PlotData {
	trainLoss := lineSeries("train loss", "#FF6B6B", lossPanel, false)
	valLoss := lineSeries("val loss", "#FF9F43", lossPanel, true)
	valAUC := lineSeries("val auc", "#5F27CD", aucPanel, false)

	for _, rec := range h.Records() {
		trainLoss.Data = append(trainLoss.Data, DataPoint{X: rec.Epoch, Y: rec.TrainLoss})
		if rec.Validated {
			valLoss.Data = append(valLoss.Data, DataPoint{X: rec.Epoch, Y: rec.ValLoss})
			valAUC.Data = append(valAUC.Data, DataPoint{X: rec.Epoch, Y: rec.Score})
		}
	}

	series := []SeriesData{trainLoss}
	metrics := map[string]interface{}{}
	if len(valAUC.Data) > 0 {
		series = append(series, valLoss, valAUC)

		best := h.Best()
		title = fmt.Sprintf("%s_max_auc_%.3f_epoch%d", title, best.Score, best.Epoch)
		metrics["max_auc"] = best.Score
		metrics["max_auc_epoch"] = best.Epoch
	}

	return PlotData{
		PlotType:  TrainingCurves,
		Title:     title,
		Timestamp: time.Now(),
		ModelName: modelName,
		Series:    series,
		Config:    twoPanelConfig("Epoch"),
		Metrics:   metrics,
	}
}

// ROCCurvePlot builds the ROC curve of one validated epoch
func ROCCurvePlot(modelName string, rec EpochRecord) (PlotData, error) {
	if rec.ROC == nil {
		return PlotData{}, fmt.Errorf("epoch %d has no ROC curve", rec.Epoch)
	}

	curve := SeriesData{
		Name: "ROC Curve",
		Type: "line",
		Data: make([]DataPoint, 0, len(rec.ROC.FPR)),
		Style: map[string]interface{}{
			"color":      "#FF6B6B",
			"line_width": 2,
		},
	}
	for _, p := range rec.ROC.Points() {
		curve.Data = append(curve.Data, DataPoint{X: p.FPR, Y: p.TPR, Label: fmt.Sprintf("%.4f", p.Threshold)})
	}

	random := SeriesData{
		Name: "Random Classifier",
		Type: "line",
		Data: []DataPoint{
			{X: 0.0, Y: 0.0},
			{X: 1.0, Y: 1.0},
		},
		Style: map[string]interface{}{
			"color":      "#95A5A6",
			"line_width": 1,
			"line_style": "dashed",
		},
	}

	return PlotData{
		PlotType:  ROCCurve,
		Title:     fmt.Sprintf("ROC Curve - %s - epoch %d (AUC %.3f)", modelName, rec.Epoch, rec.Score),
		Timestamp: time.Now(),
		ModelName: modelName,
		Series:    []SeriesData{curve, random},
		Config: PlotConfig{
			XAxisLabel:  "False Positive Rate",
			YAxisLabel:  "True Positive Rate",
			XAxisScale:  "linear",
			YAxisScale:  "linear",
			ShowLegend:  true,
			ShowGrid:    true,
			Width:       600,
			Height:      600,
			Interactive: true,
		},
		Metrics: map[string]interface{}{
			"auc": rec.Score,
		},
	}, nil
}

// SubjectCurvesPlot builds one subject's plot: the run's training loss and
// the subject's validation loss on the left, the subject's AUC on the right.
func SubjectCurvesPlot(modelName string, h History, records []SubjectRecord) (PlotData, error) {
	if len(records) == 0 {
		return PlotData{}, fmt.Errorf("no subject records")
	}

	trainLoss := lineSeries("train loss", "#FF6B6B", lossPanel, false)
	for _, rec := range h.Records() {
		trainLoss.Data = append(trainLoss.Data, DataPoint{X: rec.Epoch, Y: rec.TrainLoss})
	}

	valLoss := lineSeries("val loss", "#FF9F43", lossPanel, true)
	valAUC := lineSeries("val auc", "#5F27CD", aucPanel, false)
	for _, r := range records {
		valLoss.Data = append(valLoss.Data, DataPoint{X: r.Epoch, Y: r.Loss})
		valAUC.Data = append(valAUC.Data, DataPoint{X: r.Epoch, Y: r.AUC})
	}

	summary := SummarizeSubject(records)

	return PlotData{
		PlotType: SubjectCurves,
		Title: fmt.Sprintf("min_val_loss:%.3f_epoch%d;_max_auc:%.3f_epoch:%d",
			summary.MinLoss, summary.MinLossEpoch, summary.MaxAUC, summary.MaxAUCEpoch),
		Timestamp: time.Now(),
		ModelName: modelName,
		Series:    []SeriesData{trainLoss, valLoss, valAUC},
		Config:    twoPanelConfig("Epoch"),
		Metrics: map[string]interface{}{
			"subject":  summary.Subject,
			"max_auc":  summary.MaxAUC,
			"min_loss": summary.MinLoss,
		},
	}, nil
}

// ToJSON converts plot data to JSON string
func (pd PlotData) ToJSON() (string, error) {
	jsonData, err := json.MarshalIndent(pd, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal plot data to JSON: %w", err)
	}
	return string(jsonData), nil
}
