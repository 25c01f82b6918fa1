package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set by -ldflags at build time. CommitSHA falls back to the VCS stamp.
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("face-attendance %s (%s)\n", Version, runtime.Version())
		fmt.Printf("  Commit: %s\n", commitSHA())
		fmt.Printf("  Built:  %s\n", BuildDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func commitSHA() string {
	if CommitSHA != "unknown" {
		return CommitSHA
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return CommitSHA
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return s.Value
		}
	}
	return CommitSHA
}
