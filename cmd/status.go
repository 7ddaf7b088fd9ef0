package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/docker/docker/api/types"
	"github.com/spf13/cobra"

	"github.com/goldsam/jest-localstack/internal/docker"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List LocalStack containers started by this tool",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := docker.NewManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		containers, err := mgr.ListManaged(context.Background())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(containers) == 0 {
			fmt.Fprintln(out, "No LocalStack containers found.")
			return nil
		}

		// Use tabwriter to print pretty columns
		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "CONTAINER\tIMAGE\tSESSION\tSTATUS\tPORTS")
		for _, c := range containers {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				shortID(c.ID), c.Image, c.Labels[docker.LabelSession], c.Status, formatPorts(c.Ports))
		}
		return w.Flush()
	},
}

func formatPorts(ports []types.Port) string {
	var parts []string
	for _, p := range ports {
		if p.PublicPort != 0 {
			parts = append(parts, fmt.Sprintf("%d->%d/%s", p.PublicPort, p.PrivatePort, p.Type))
		}
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
