package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/tsawler/epochwatch/checkpoints"
	"github.com/tsawler/epochwatch/training"
)

func renderSummary(s *checkpoints.Snapshot) string {
	var sections []string

	name := s.Metadata.ModelName
	if name == "" {
		name = "model"
	}
	sections = append(sections, titleStyle.Render(strings.ToUpper(name)))

	if s.Best.Set {
		sections = append(sections, fmt.Sprintf("%s %.6f %s %d",
			labelStyle.Render("best auc"), s.Best.Score,
			labelStyle.Render("at epoch"), s.Best.Epoch+1))
	} else {
		sections = append(sections, labelStyle.Render("no validated epochs"))
	}

	sections = append(sections, renderEpochTable(s.Records))
	if len(s.Records) > 0 {
		sections = append(sections, renderTotals(s.History()))
	}

	if len(s.Subjects) > 0 {
		sections = append(sections, renderSubjects(training.NewSubjectReport(s.Subjects)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderEpochTable(records []training.EpochRecord) string {
	header := fmt.Sprintf("%-6s %-11s %-11s %-9s %-9s", "epoch", "train loss", "val loss", "val acc", "auc")
	lines := []string{tableHeaderStyle.Render(header)}

	for _, r := range records {
		valLoss, valAcc, auc := "-", "-", "-"
		if r.Validated {
			valLoss = fmt.Sprintf("%.6f", r.ValLoss)
			valAcc = fmt.Sprintf("%.4f", r.ValAccuracy)
			auc = fmt.Sprintf("%.6f", r.Score)
		}
		row := fmt.Sprintf("%-6d %-11.6f %-11s %-9s %-9s", r.Epoch+1, r.TrainLoss, valLoss, valAcc, auc)

		style := tableCellStyle
		if r.NewBest {
			row += " +"
			style = bestRowStyle
		}
		lines = append(lines, style.Render(row))
	}

	return strings.Join(lines, "\n")
}

// renderTotals is the footer under the epoch table
func renderTotals(h training.History) string {
	parts := []string{fmt.Sprintf("%s %.6f", labelStyle.Render("min train loss"), floats.Min(h.TrainLosses()))}
	if losses := h.ValLosses(); len(losses) > 0 {
		parts = append(parts, fmt.Sprintf("%s %.6f", labelStyle.Render("min val loss"), floats.Min(losses)))
	}
	if scores := h.Scores(); len(scores) > 0 {
		parts = append(parts, fmt.Sprintf("%s %.6f", labelStyle.Render("avg epoch auc"), stat.Mean(scores, nil)))
	}
	return strings.Join(parts, "  ")
}

func renderSubjects(report training.SubjectReport) string {
	lines := []string{sectionHeaderStyle.Render("Subjects")}
	for _, s := range report.Subjects {
		lines = append(lines, fmt.Sprintf("  %-12s %s %.6f (epoch %d)  %s %.6f (epoch %d)",
			s.Subject,
			labelStyle.Render("max auc"), s.MaxAUC, s.MaxAUCEpoch+1,
			labelStyle.Render("min loss"), s.MinLoss, s.MinLossEpoch+1))
	}
	lines = append(lines, fmt.Sprintf("  %s %.6f", labelStyle.Render("mean auc"), report.MeanAUC))
	return strings.Join(lines, "\n")
}

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <snapshot>",
		Short: "Print the best epoch and per-epoch metrics of a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := checkpoints.LoadSnapshotFile(args[0])
			if err != nil {
				return err
			}
			if err := snapshot.Validate(); err != nil {
				return fmt.Errorf("snapshot %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSummary(snapshot))
			return nil
		},
	}
}
