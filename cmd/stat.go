package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"retrace/pkg/tracedir"
	"retrace/pkg/trace"
)

// statCmd is a read-only complement to record/replay (not named in
// spec.md, but a natural counterpart the way the teacher's pull/push pair
// complemented its overlay filesystem): it walks the events file and
// prints a per-kind summary without driving any tracee.
var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "Print a summary of a trace directory without replaying it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		layout, err := tracedir.Open(traceDir)
		if err != nil {
			return fmt.Errorf("stat: %w", err)
		}

		argv, envp, err := trace.ReadArgvEnvp(layout.ArgvEnvpPath())
		if err != nil {
			return fmt.Errorf("stat: %w", err)
		}
		fmt.Printf("argv: %v\n", argv)
		fmt.Printf("envp: %d entries\n", len(envp))

		reader, err := trace.OpenReader(layout.EventsPath())
		if err != nil {
			return fmt.Errorf("stat: %w", err)
		}
		defer reader.Close()

		fmt.Printf("format version: %d\n", reader.Header.FormatVersion)
		fmt.Printf("arch: %s\n", reader.Header.Arch)

		counts := map[trace.Kind]int{}
		var total int
		for {
			rec, err := reader.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("stat: %w", err)
			}
			counts[rec.Kind]++
			total++
		}

		fmt.Printf("total events: %d\n", total)
		for _, k := range []trace.Kind{trace.KindInit, trace.KindSyscallEntry, trace.KindSyscallExit, trace.KindSignal, trace.KindSched, trace.KindClone, trace.KindExit} {
			fmt.Printf("  %-14s %d\n", k, counts[k])
		}

		fmt.Printf("trace directory size: %s\n", humanize.Bytes(uint64(dirSize(traceDir))))
		return nil
	},
}

// dirSize sums the apparent size of every regular file directly under
// root (the events file, argv_envp, stdout/stderr, the index database, and
// any memory dumps), for the human-readable total stat prints.
func dirSize(root string) int64 {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0
	}
	var total int64
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
	}
	return total
}

func init() {
	RootCmd.AddCommand(statCmd)
}
