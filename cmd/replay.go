package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"retrace/pkg/replayer"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a previously recorded trace",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, closeLogger, err := openLogger()
		if err != nil {
			return err
		}
		defer closeLogger()

		installFatalSignalLog()

		cfg := replayer.Config{
			TraceDir: traceDir,
			Logger:   logger,
		}
		if err := replayer.Run(cfg); err != nil {
			return fmt.Errorf("replay: %w", err)
		}
		fmt.Println("replay: completed without divergence")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(replayCmd)
}
