package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tsawler/epochwatch/checkpoints"
)

func newCleanCmd() *cobra.Command {
	var (
		dir          string
		snapshotPath string
		ext          string
	)

	cleanCmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete every per-epoch checkpoint except the best-AUC one",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := checkpoints.LoadSnapshotFile(snapshotPath)
			if err != nil {
				return err
			}
			if !snapshot.Best.Set {
				return fmt.Errorf("snapshot %s has no validated epochs", snapshotPath)
			}

			removed, err := checkpoints.CleanNonBest(dir, ext, snapshot.Best.Epoch)
			for _, path := range removed {
				fmt.Fprintln(cmd.OutOrStdout(), "removed", path)
			}
			if err != nil {
				return err
			}

			logrus.WithFields(logrus.Fields{
				"kept":    checkpoints.EpochFileName(snapshot.Best.Epoch, ext),
				"removed": len(removed),
			}).Info("checkpoints cleaned")
			return nil
		},
	}

	cleanCmd.Flags().StringVar(&dir, "dir", "", "Checkpoint directory")
	cleanCmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Snapshot holding the best epoch")
	cleanCmd.Flags().StringVar(&ext, "ext", ".hdf5", "Checkpoint file extension")
	_ = cleanCmd.MarkFlagRequired("dir")
	_ = cleanCmd.MarkFlagRequired("snapshot")

	return cleanCmd
}
