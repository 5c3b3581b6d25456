package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"retrace/pkg/evtlog"
	"retrace/pkg/recorder"
)

var recordCmd = &cobra.Command{
	Use:   "record -- executable [args...]",
	Short: "Record a program's execution to a trace directory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exe := args[0]
		if err := checkPrerequisites(exe); err != nil {
			return err
		}

		logger, closeLogger, err := openLogger()
		if err != nil {
			return err
		}
		defer closeLogger()

		installFatalSignalLog()

		cfg := recorder.Config{
			Executable:     exe,
			Argv:           args[1:],
			Envp:           os.Environ(),
			TraceDir:       traceDir,
			SliceBranches:  sliceBranches,
			DumpMemoryAt:   dumpMemoryAt,
			RedirectOutput: redirectOutput,
			Logger:         logger,
		}
		if err := recorder.Run(cfg); err != nil {
			return fmt.Errorf("record: %w", err)
		}
		return nil
	},
}

func init() {
	recordCmd.Flags().BoolVar(&redirectOutput, "redirect_output", false, "Tee the tracee's stdout/stderr into the trace directory")
	recordCmd.Flags().Uint64Var(&dumpMemoryAt, "dump_memory", 0, "Dump the tracee's address space at the given global event sequence number")
	recordCmd.Flags().Uint64Var(&sliceBranches, "slice-branches", 0, "Branch-budget quantum per scheduling slice (0 = default)")
	RootCmd.AddCommand(recordCmd)
}

func openLogger() (evtlog.Logger, func(), error) {
	if logPath == "" {
		return evtlog.NewStreamLogger(os.Stderr), func() {}, nil
	}
	l, err := evtlog.NewFileLogger(logPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	return l, func() { l.Close() }, nil
}
