package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/goldsam/jest-localstack/pkg/localstack"
)

var (
	foreground bool
	host       string
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start LocalStack, wait until it is ready and seed it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		env, err := localstack.Setup(ctx, localstack.WithConfigFile(configPath), localstack.WithHost(host))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Container: %s\n", env.ContainerID())
		printEndpoints(out, env)

		if !foreground {
			fmt.Fprintln(out, "Run 'localstack down' to remove it.")
			return nil
		}

		fmt.Fprintln(out, "Press Ctrl+C to stop.")
		<-ctx.Done()
		env.Teardown(context.Background())
		return nil
	},
}

func printEndpoints(out io.Writer, env *localstack.Environment) {
	names := make([]string, 0)
	for name := range env.Services() {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tENDPOINT")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%s\n", name, env.Endpoint(name))
	}
	w.Flush()
}

func init() {
	upCmd.Flags().StringVar(&host, "host", localstack.DefaultHost, "host the service ports are published on")
	upCmd.Flags().BoolVar(&foreground, "foreground", false, "keep running and remove the container on interrupt")
	rootCmd.AddCommand(upCmd)
}
