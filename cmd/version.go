package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the application version, overridable at build time via
// -ldflags "-X github.com/openixwty/imagewty/cmd.Version=...".
var Version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("imagewty v%s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
