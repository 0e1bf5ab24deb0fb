package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	traceOutput  outputFlags
	traceTimeout time.Duration
)

var traceCmd = &cobra.Command{
	Use:   "trace <hash>",
	Short: "Fetches and decodes a mined transaction.",
	Long:  `Fetches a transaction trace from the configured execution nodes and decodes it.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}

		if len(conf.Ethereum.Execution) == 0 {
			return fmt.Errorf("trace needs at least one execution node in %q", configFile)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), traceTimeout)
		defer cancel()

		svc, cleanup, err := newTracer(ctx, conf)
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := svc.TraceTransaction(ctx, args[0])
		if err != nil {
			return err
		}

		return traceOutput.write(cmd.OutOrStdout(), result)
	},
}

func init() {
	traceOutput.register(traceCmd)
	traceCmd.Flags().DurationVar(&traceTimeout, "timeout", 2*time.Minute, "overall timeout including node startup")

	rootCmd.AddCommand(traceCmd)
}
