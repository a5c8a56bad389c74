package training

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// MetricType represents different evaluation metrics
type MetricType int

const (
	// Binary Classification Metrics
	Precision MetricType = iota
	Recall
	F1Score
	Specificity
	NPV // Negative Predictive Value

	// Multi-class Metrics
	MacroPrecision
	MacroRecall
)

func (mt MetricType) String() string {
	switch mt {
	case Precision:
		return "Precision"
	case Recall:
		return "Recall"
	case F1Score:
		return "F1Score"
	case Specificity:
		return "Specificity"
	case NPV:
		return "NPV"
	case MacroPrecision:
		return "MacroPrecision"
	case MacroRecall:
		return "MacroRecall"
	default:
		return fmt.Sprintf("Unknown(%d)", int(mt))
	}
}

// ConfusionMatrix represents a confusion matrix for classification tasks
type ConfusionMatrix struct {
	NumClasses   int
	Matrix       [][]int // [true_class][predicted_class]
	TotalSamples int

	// Cached metrics to avoid recomputation
	cachedMetrics map[MetricType]float64
	metricsValid  bool
}

// NewConfusionMatrix creates a new confusion matrix
func NewConfusionMatrix(numClasses int) *ConfusionMatrix {
	matrix := make([][]int, numClasses)
	for i := range matrix {
		matrix[i] = make([]int, numClasses)
	}

	return &ConfusionMatrix{
		NumClasses:    numClasses,
		Matrix:        matrix,
		cachedMetrics: make(map[MetricType]float64),
	}
}

// UpdateFromPredictions adds one validation set to the matrix. Single-column
// predictions are positive-class probabilities cut at threshold; wider
// predictions use the argmax column as the predicted class.
func (cm *ConfusionMatrix) UpdateFromPredictions(preds *PredictionSet, labels *LabelSet, threshold float64) error {
	if err := checkCompatible(preds, labels); err != nil {
		return err
	}
	if labels.NumClasses() != cm.NumClasses {
		return fmt.Errorf("class count mismatch: expected %d, got %d", cm.NumClasses, labels.NumClasses())
	}

	for i, trueClass := range labels.classes {
		row := preds.rows[i]

		var predClass int
		if len(row) == 1 {
			if row[0] >= threshold {
				predClass = 1
			}
		} else {
			maxVal := row[0]
			for j := 1; j < len(row); j++ {
				if row[j] > maxVal {
					maxVal = row[j]
					predClass = j
				}
			}
		}

		cm.Matrix[trueClass][predClass]++
		cm.TotalSamples++
	}

	cm.metricsValid = false
	cm.cachedMetrics = make(map[MetricType]float64)
	return nil
}

// GetMetric calculates and caches evaluation metrics
func (cm *ConfusionMatrix) GetMetric(metric MetricType) float64 {
	if cm.metricsValid {
		if value, exists := cm.cachedMetrics[metric]; exists {
			return value
		}
	}

	var result float64

	switch metric {
	case Precision:
		result = cm.calculateBinaryPrecision()
	case Recall:
		result = cm.calculateBinaryRecall()
	case F1Score:
		result = cm.calculateBinaryF1()
	case Specificity:
		result = cm.calculateSpecificity()
	case NPV:
		result = cm.calculateNPV()
	case MacroPrecision:
		result = cm.calculateMacroPrecision()
	case MacroRecall:
		result = cm.calculateMacroRecall()
	default:
		return 0.0
	}

	cm.cachedMetrics[metric] = result
	cm.metricsValid = true
	return result
}

// Binary classification metrics (class 1 is positive)
func (cm *ConfusionMatrix) calculateBinaryPrecision() float64 {
	if cm.NumClasses != 2 {
		return 0.0
	}
	tp := float64(cm.Matrix[1][1])
	fp := float64(cm.Matrix[0][1])
	return safeRatio(tp, tp+fp)
}

func (cm *ConfusionMatrix) calculateBinaryRecall() float64 {
	if cm.NumClasses != 2 {
		return 0.0
	}
	tp := float64(cm.Matrix[1][1])
	fn := float64(cm.Matrix[1][0])
	return safeRatio(tp, tp+fn)
}

func (cm *ConfusionMatrix) calculateBinaryF1() float64 {
	precision := cm.calculateBinaryPrecision()
	recall := cm.calculateBinaryRecall()
	return safeRatio(2*precision*recall, precision+recall)
}

func (cm *ConfusionMatrix) calculateSpecificity() float64 {
	if cm.NumClasses != 2 {
		return 0.0
	}
	tn := float64(cm.Matrix[0][0])
	fp := float64(cm.Matrix[0][1])
	return safeRatio(tn, tn+fp)
}

func (cm *ConfusionMatrix) calculateNPV() float64 {
	if cm.NumClasses != 2 {
		return 0.0
	}
	tn := float64(cm.Matrix[0][0])
	fn := float64(cm.Matrix[1][0])
	return safeRatio(tn, tn+fn)
}

func (cm *ConfusionMatrix) calculateMacroPrecision() float64 {
	sum := 0.0
	validClasses := 0

	for class := 0; class < cm.NumClasses; class++ {
		tp := float64(cm.Matrix[class][class])
		fp := 0.0
		for other := 0; other < cm.NumClasses; other++ {
			if other != class {
				fp += float64(cm.Matrix[other][class])
			}
		}
		if tp+fp > 0 {
			sum += tp / (tp + fp)
			validClasses++
		}
	}

	return safeRatio(sum, float64(validClasses))
}

func (cm *ConfusionMatrix) calculateMacroRecall() float64 {
	sum := 0.0
	validClasses := 0

	for class := 0; class < cm.NumClasses; class++ {
		tp := float64(cm.Matrix[class][class])
		fn := 0.0
		for other := 0; other < cm.NumClasses; other++ {
			if other != class {
				fn += float64(cm.Matrix[class][other])
			}
		}
		if tp+fn > 0 {
			sum += tp / (tp + fn)
			validClasses++
		}
	}

	return safeRatio(sum, float64(validClasses))
}

// GetAccuracy returns overall classification accuracy
func (cm *ConfusionMatrix) GetAccuracy() float64 {
	correct := 0
	for i := 0; i < cm.NumClasses; i++ {
		correct += cm.Matrix[i][i]
	}
	return safeRatio(float64(correct), float64(cm.TotalSamples))
}

// ThresholdMetrics are confusion-matrix rates at the decision threshold.
// Multi-class matrices report macro recall as Sensitivity and macro
// precision as Precision; Specificity and NPV stay zero.
type ThresholdMetrics struct {
	Sensitivity float64 `json:"sensitivity" yaml:"sensitivity"`
	Specificity float64 `json:"specificity" yaml:"specificity"`
	Precision   float64 `json:"precision" yaml:"precision"`
	F1          float64 `json:"f1" yaml:"f1"`
	NPV         float64 `json:"npv" yaml:"npv"`
}

// Rates reads the threshold metrics off the matrix
func (cm *ConfusionMatrix) Rates() ThresholdMetrics {
	if cm.NumClasses == 2 {
		return ThresholdMetrics{
			Sensitivity: cm.GetMetric(Recall),
			Specificity: cm.GetMetric(Specificity),
			Precision:   cm.GetMetric(Precision),
			F1:          cm.GetMetric(F1Score),
			NPV:         cm.GetMetric(NPV),
		}
	}

	precision := cm.GetMetric(MacroPrecision)
	recall := cm.GetMetric(MacroRecall)
	return ThresholdMetrics{
		Sensitivity: recall,
		Precision:   precision,
		F1:          safeRatio(2*precision*recall, precision+recall),
	}
}

func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 0.0
	}
	return num / den
}

// ROCPoint represents a point on the ROC curve
type ROCPoint struct {
	Threshold float64 `json:"threshold"`
	TPR       float64 `json:"tpr"` // True Positive Rate (Sensitivity)
	FPR       float64 `json:"fpr"` // False Positive Rate (1 - Specificity)
}

// ROC is a receiver operating characteristic curve with one point per
// distinct score. Thresholds are decreasing; the first threshold is one
// above the highest score so the curve starts at (0, 0).
type ROC struct {
	FPR        []float64 `json:"fpr" yaml:"fpr"`
	TPR        []float64 `json:"tpr" yaml:"tpr"`
	Thresholds []float64 `json:"thresholds" yaml:"thresholds"`
}

// Sensitivity returns the true positive rate at each threshold
func (r ROC) Sensitivity() []float64 {
	return append([]float64(nil), r.TPR...)
}

// Specificity returns 1 - FPR at each threshold
func (r ROC) Specificity() []float64 {
	out := make([]float64, len(r.FPR))
	for i, fpr := range r.FPR {
		out[i] = 1 - fpr
	}
	return out
}

// Points returns the curve as threshold/TPR/FPR triples
func (r ROC) Points() []ROCPoint {
	points := make([]ROCPoint, len(r.FPR))
	for i := range r.FPR {
		points[i] = ROCPoint{Threshold: r.Thresholds[i], TPR: r.TPR[i], FPR: r.FPR[i]}
	}
	return points
}

// AUC integrates the curve with the trapezoidal rule
func (r ROC) AUC() float64 {
	if len(r.FPR) < 2 {
		return 0.0
	}
	return integrate.Trapezoidal(r.FPR, r.TPR)
}

// CalculateROC builds the ROC curve for binary labels (0 or 1).
// Samples are ranked by descending score and the true and false positive
// counts are accumulated; a point is emitted only after every sample sharing
// a score has been counted, so tied scores form a single diagonal segment.
func CalculateROC(scores []float64, labels []int) (ROC, error) {
	if len(scores) != len(labels) {
		return ROC{}, invalidInput("predictions", "length %d does not match labels length %d", len(scores), len(labels))
	}
	if len(scores) == 0 {
		return ROC{}, invalidInput("predictions", "no samples")
	}

	totalPos := 0
	totalNeg := 0
	for i, label := range labels {
		switch label {
		case 1:
			totalPos++
		case 0:
			totalNeg++
		default:
			return ROC{}, invalidInput("labels", "value %d at %d is outside {0, 1}", label, i)
		}
		if math.IsNaN(scores[i]) || math.IsInf(scores[i], 0) {
			return ROC{}, invalidInput("predictions", "value at %d is not finite", i)
		}
	}

	if totalPos == 0 || totalNeg == 0 {
		return ROC{}, invalidInput("labels", "only one class present, ROC AUC is undefined")
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	roc := ROC{
		FPR:        []float64{0},
		TPR:        []float64{0},
		Thresholds: []float64{scores[order[0]] + 1},
	}

	tp := 0
	fp := 0
	for k, idx := range order {
		if labels[idx] == 1 {
			tp++
		} else {
			fp++
		}

		if k+1 < len(order) && scores[order[k+1]] == scores[idx] {
			continue
		}

		roc.TPR = append(roc.TPR, float64(tp)/float64(totalPos))
		roc.FPR = append(roc.FPR, float64(fp)/float64(totalNeg))
		roc.Thresholds = append(roc.Thresholds, scores[idx])
	}

	return roc, nil
}

// CalculateAUCROC calculates Area Under ROC Curve for binary classification
func CalculateAUCROC(scores []float64, labels []int) (float64, error) {
	roc, err := CalculateROC(scores, labels)
	if err != nil {
		return 0.0, err
	}
	return roc.AUC(), nil
}

// CalculateMacroAUCROC averages one-vs-rest AUC over every class column.
func CalculateMacroAUCROC(preds *PredictionSet, labels *LabelSet) (float64, error) {
	if err := checkCompatible(preds, labels); err != nil {
		return 0.0, err
	}

	aucs := make([]float64, labels.NumClasses())
	for class := range aucs {
		auc, err := CalculateAUCROC(preds.Column(class), labels.OneVsRest(class))
		if err != nil {
			return 0.0, fmt.Errorf("class %d: %w", class, err)
		}
		aucs[class] = auc
	}

	return stat.Mean(aucs, nil), nil
}

// logLossEpsilon clips probabilities away from 0 and 1 before taking logs
const logLossEpsilon = 1e-15

// CalculateLogLoss returns the mean cross-entropy of the predictions.
// Single-column predictions are treated as positive-class probabilities.
func CalculateLogLoss(preds *PredictionSet, labels *LabelSet) (float64, error) {
	if err := checkCompatible(preds, labels); err != nil {
		return 0.0, err
	}

	sum := 0.0
	for i, class := range labels.classes {
		row := preds.rows[i]

		var p float64
		if len(row) == 1 {
			p = row[0]
			if class == 0 {
				p = 1 - p
			}
		} else {
			p = row[class]
		}

		p = math.Min(math.Max(p, logLossEpsilon), 1-logLossEpsilon)
		sum -= math.Log(p)
	}

	return sum / float64(labels.Size()), nil
}
