package training

// DefaultDecisionThreshold turns single-column probabilities into class predictions
const DefaultDecisionThreshold = 0.5

// Evaluation is the result of scoring one validation set
type Evaluation struct {
	AUC      float64
	Accuracy float64
	LogLoss  float64
	Rates    ThresholdMetrics

	// ROC is only set for binary problems
	ROC *ROC
}

// Evaluate validates raw prediction and label rows and scores them.
func Evaluate(predictions, labels [][]float64) (Evaluation, error) {
	preds, err := NewPredictionSet(predictions)
	if err != nil {
		return Evaluation{}, err
	}
	ls, err := NewLabelSet(labels)
	if err != nil {
		return Evaluation{}, err
	}
	return EvaluateSets(preds, ls)
}

// EvaluateSets scores already validated predictions against labels.
// Binary labels get a full ROC curve; multi-class labels get the macro
// one-vs-rest AUC.
func EvaluateSets(preds *PredictionSet, labels *LabelSet) (Evaluation, error) {
	if err := checkCompatible(preds, labels); err != nil {
		return Evaluation{}, err
	}

	var eval Evaluation

	if labels.NumClasses() == 2 {
		scores, err := preds.PositiveScores()
		if err != nil {
			return Evaluation{}, err
		}
		roc, err := CalculateROC(scores, labels.classes)
		if err != nil {
			return Evaluation{}, err
		}
		eval.ROC = &roc
		eval.AUC = roc.AUC()
	} else {
		auc, err := CalculateMacroAUCROC(preds, labels)
		if err != nil {
			return Evaluation{}, err
		}
		eval.AUC = auc
	}

	cm := NewConfusionMatrix(labels.NumClasses())
	if err := cm.UpdateFromPredictions(preds, labels, DefaultDecisionThreshold); err != nil {
		return Evaluation{}, err
	}
	eval.Accuracy = cm.GetAccuracy()
	eval.Rates = cm.Rates()

	loss, err := CalculateLogLoss(preds, labels)
	if err != nil {
		return Evaluation{}, err
	}
	eval.LogLoss = loss

	return eval, nil
}
