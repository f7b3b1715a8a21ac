package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the build version, overridable via -ldflags.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the novasystem version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("novasystem", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
