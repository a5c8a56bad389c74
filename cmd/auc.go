package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsawler/epochwatch/training"
)

func newAUCCmd() *cobra.Command {
	var (
		scores    []float64
		labels    []int
		showROC   bool
		showRates bool
	)

	aucCmd := &cobra.Command{
		Use:   "auc",
		Short: "Compute the ROC AUC of one set of scores",
		Example: `  epochwatch auc --scores 0.1,0.4,0.35,0.8 --labels 0,0,1,1
  0.750000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			preds, err := training.NewScorePredictionSet(scores)
			if err != nil {
				return err
			}
			ls, err := training.NewBinaryLabelSet(labels)
			if err != nil {
				return err
			}
			eval, err := training.EvaluateSets(preds, ls)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%.6f\n", eval.AUC)
			if showROC {
				for _, p := range eval.ROC.Points() {
					fmt.Fprintf(out, "%.6f %.6f %.6f\n", p.Threshold, p.FPR, p.TPR)
				}
			}
			if showRates {
				fmt.Fprintf(out, "sens = %.6f, spec = %.6f, acc = %.6f\n",
					eval.Rates.Sensitivity, eval.Rates.Specificity, eval.Accuracy)
			}
			return nil
		},
	}

	aucCmd.Flags().Float64SliceVar(&scores, "scores", nil, "Comma-separated positive-class scores")
	aucCmd.Flags().IntSliceVar(&labels, "labels", nil, "Comma-separated 0/1 labels")
	aucCmd.Flags().BoolVar(&showROC, "roc", false, "Also print threshold, FPR and TPR per ROC point")
	aucCmd.Flags().BoolVar(&showRates, "rates", false, "Also print sensitivity, specificity and accuracy at the 0.5 threshold")
	_ = aucCmd.MarkFlagRequired("scores")
	_ = aucCmd.MarkFlagRequired("labels")

	return aucCmd
}
