package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tsawler/epochwatch/checkpoints"
	"github.com/tsawler/epochwatch/training"
)

// buildPlots turns a snapshot into sidecar payloads: the training curves,
// the ROC curve of the best epoch and one plot per subject.
func buildPlots(modelName, title string, s *checkpoints.Snapshot) ([]training.PlotData, error) {
	h := s.History()
	plots := []training.PlotData{training.TrainingCurvesPlot(modelName, title, h)}

	if s.Best.Set {
		for _, rec := range s.Records {
			if rec.Epoch == s.Best.Epoch && rec.ROC != nil {
				roc, err := training.ROCCurvePlot(modelName, rec)
				if err != nil {
					return nil, err
				}
				plots = append(plots, roc)
				break
			}
		}
	}

	names := make([]string, 0, len(s.Subjects))
	for name := range s.Subjects {
		names = append(names, name)
	}
	training.SortSubjects(names)
	for _, name := range names {
		p, err := training.SubjectCurvesPlot(modelName, h, s.Subjects[name])
		if err != nil {
			return nil, fmt.Errorf("subject %s: %w", name, err)
		}
		plots = append(plots, p)
	}

	return plots, nil
}

func sendPlots(ctx context.Context, svcConfig training.PlottingServiceConfig, modelName, title string, s *checkpoints.Snapshot, logger logrus.FieldLogger) error {
	plots, err := buildPlots(modelName, title, s)
	if err != nil {
		return err
	}

	ps := training.NewPlottingService(svcConfig, logger)
	if err := ps.CheckHealth(ctx); err != nil {
		return fmt.Errorf("plotting sidecar unavailable: %w", err)
	}

	resp, err := ps.BatchSendPlots(ctx, plots)
	if err != nil {
		return err
	}
	if resp.DashboardURL != "" {
		logger.WithField("url", resp.DashboardURL).Info("plots available")
	}
	return nil
}

func newPlotCmd() *cobra.Command {
	var (
		snapshotPath string
		sidecarURL   string
		modelName    string
		title        string
		dryRun       bool
	)

	plotCmd := &cobra.Command{
		Use:   "plot",
		Short: "Send a snapshot's loss, AUC and ROC plots to the plotting sidecar",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := checkpoints.LoadSnapshotFile(snapshotPath)
			if err != nil {
				return err
			}
			if modelName == "" {
				modelName = snapshot.Metadata.ModelName
			}
			if title == "" {
				title = modelName
			}

			if dryRun {
				plots, err := buildPlots(modelName, title, snapshot)
				if err != nil {
					return err
				}
				for _, p := range plots {
					js, err := p.ToJSON()
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), js)
				}
				return nil
			}

			svcConfig := training.DefaultPlottingServiceConfig()
			svcConfig.BaseURL = sidecarURL
			return sendPlots(cmd.Context(), svcConfig, modelName, title, snapshot, logrus.StandardLogger())
		},
	}

	plotCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Snapshot written by replay")
	plotCmd.Flags().StringVar(&sidecarURL, "sidecar", training.DefaultPlottingServiceConfig().BaseURL, "Plotting sidecar base URL")
	plotCmd.Flags().StringVar(&modelName, "model", "", "Model name (defaults to the snapshot's)")
	plotCmd.Flags().StringVar(&title, "title", "", "Plot title prefix (defaults to the model name)")
	plotCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print plot JSON instead of sending it")
	_ = plotCmd.MarkFlagRequired("snapshot")

	return plotCmd
}
