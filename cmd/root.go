package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"retrace/pkg/prereq"
)

var (
	traceDir       string
	redirectOutput bool
	dumpMemoryAt   uint64
	sliceBranches  uint64
	logPath        string
	skipPrereq     bool
)

var RootCmd = &cobra.Command{
	Use:   "retrace",
	Short: "retrace: deterministic record and replay for native programs",
	Long:  `A ptrace-based supervisor that records a program's execution and replays it byte-for-byte from the recording.`,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&traceDir, "trace-dir", "t", "", "Trace directory (required)")
	RootCmd.PersistentFlags().StringVar(&logPath, "log", "", "Path to log file for per-event commentary (default: stderr)")
	RootCmd.PersistentFlags().BoolVar(&skipPrereq, "skip-prerequisite-checks", false, "Skip the ASLR/ptrace_scope environment checks")
	RootCmd.MarkPersistentFlagRequired("trace-dir")
}

// installFatalSignalLog logs SIGINT/SIGQUIT before this process dies, for
// operator visibility; actually tearing down the tracee is the kernel's
// job (see PTRACE_O_EXITKILL in pkg/tracee), a generalization of
// original_source/main.c's sig_child/install_signal_handler, which sent
// kill(child, SIGQUIT) by hand; here the kernel sends SIGKILL instead.
func installFatalSignalLog() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGQUIT)
	go func() {
		sig := <-ch
		fmt.Fprintf(os.Stderr, "retrace: received %s, terminating\n", sig)
		os.Exit(130)
	}()
}

func checkPrerequisites(exe string) error {
	if skipPrereq {
		return nil
	}
	if err := prereq.Check(); err != nil {
		return err
	}
	return prereq.CheckExecutable(exe)
}
