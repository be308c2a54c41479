package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/balaji-balu/fusion-deploy/internal/orchestrator"
	"github.com/balaji-balu/fusion-deploy/internal/pagebuilder"
)

var terminateCmd = &cobra.Command{
	Use:   "terminate <version>",
	Short: "Terminate one running version with the configured retries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		_, rc, client, err := setup(cmd)
		if err != nil {
			return err
		}

		o := orchestrator.New(rc, client, orchestrator.WithLogger(log.Named("orchestrator")))
		res := o.TerminateOldest(ctx, pagebuilder.Version(args[0]))

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		if !res.Success {
			return errRunFailed
		}
		return nil
	},
}

func init() {
	addInputFlags(terminateCmd)
}
