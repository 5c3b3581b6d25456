package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"retrace/pkg/tracedir/mountdebug"
)

var mountPoint string

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Mount a trace directory's memory dumps as a read-only filesystem",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := mountdebug.Mount(traceDir, mountPoint)
		if err != nil {
			return fmt.Errorf("mount: %w", err)
		}

		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-ch
			server.Unmount()
		}()

		fmt.Printf("mounted at %s (ctrl-c to unmount)\n", mountPoint)
		server.Wait()
		return nil
	},
}

func init() {
	mountCmd.Flags().StringVar(&mountPoint, "mountpoint", "", "Directory to mount the read-only view at (required)")
	mountCmd.MarkFlagRequired("mountpoint")
	RootCmd.AddCommand(mountCmd)
}
