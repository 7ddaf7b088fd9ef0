package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/goldsam/jest-localstack/internal/docker"
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Remove every LocalStack container started by this tool",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := docker.NewManager()
		if err != nil {
			return err
		}
		defer mgr.Close()
		ctx := context.Background()

		containers, err := mgr.ListManaged(ctx)
		if err != nil {
			return err
		}

		removed := 0
		for _, c := range containers {
			// Removal is best effort, a failure must not keep the others running.
			if err := mgr.Remove(ctx, c.ID); err != nil {
				logrus.WithError(err).WithField("container", c.ID).Warn("Error cleaning up container")
				continue
			}
			removed++
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d LocalStack container(s).\n", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downCmd)
}
