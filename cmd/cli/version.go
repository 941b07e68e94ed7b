package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/visarisk/agent/internal/common"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	// Version needs no configuration
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		info := common.GetBuildInfo()

		fmt.Printf("Visarisk Agent %s", info.Version)
		if info.GitCommit != "unknown" && len(info.GitCommit) > 0 {
			commit := info.GitCommit
			if len(commit) > 8 {
				commit = commit[:8]
			}
			fmt.Printf(" (git: %s)", commit)
		}
		fmt.Println()
		fmt.Printf("%s %s\n", info.GoVersion, info.Platform)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
