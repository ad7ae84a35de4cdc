package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "pagemsg",
		Short:        "Button-addressed voice message recorder",
		Long:         "pagemsg records, stores and plays short voice messages addressed by slot for paging and intercom panels.",
		SilenceUsage: true,
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newRecordCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newPlayCmd())
	cmd.AddCommand(newDefaultCmd())
	cmd.AddCommand(newLockCmd(true))
	cmd.AddCommand(newLockCmd(false))
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newSlotsCmd())
	cmd.AddCommand(newDevicesCmd())
	cmd.AddCommand(newDoctorCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pagemsg %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
