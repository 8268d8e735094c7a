package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"healthchat/pkg/backend"
	backendtypes "healthchat/pkg/backend/types"

	"github.com/spf13/cobra"
)

const statusProbeTimeout = 10 * time.Second

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the configured backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime("")
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		return probeBackend(ctx, rt.backend, rt.cfg.Backend.Kind, rt.cfg.BackendURL(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func probeBackend(ctx context.Context, client backend.Client, kind string, url string, out io.Writer) error {
	probeCtx, cancel := context.WithTimeout(ctx, statusProbeTimeout)
	defer cancel()

	started := time.Now()
	err := client.Probe(probeCtx)
	elapsed := time.Since(started).Round(time.Millisecond)

	fmt.Fprintf(out, "backend:  %s (%s)\n", displayOrNA(url), kind)
	if err != nil {
		fmt.Fprintf(out, "status:   unreachable\n")
		if code := backendtypes.StatusOf(err); code != 0 {
			fmt.Fprintf(out, "http:     %d\n", code)
		}
		fmt.Fprintf(out, "error:    %v\n", err)
		return fmt.Errorf("backend unreachable: %w", err)
	}

	fmt.Fprintf(out, "status:   reachable\n")
	fmt.Fprintf(out, "latency:  %s\n", elapsed)
	return nil
}

func displayOrNA(value string) string {
	if value == "" {
		return "n/a"
	}
	return value
}
