package cmd

import (
	"runtime/debug"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var versionLabel = color.New(color.Bold).SprintFunc()

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version information",
		Long:  "Displays the build version and Go version used to build this tool.",
		Run: func(cmd *cobra.Command, _ []string) {
			info, ok := debug.ReadBuildInfo()
			if !ok || info.Main.Version == "" {
				cmd.Println("version: unknown")
				return
			}

			cmd.Println(versionLabel("templar version"), "\t", info.Main.Version)
			cmd.Println(versionLabel("go version"), "\t", info.GoVersion)
		},
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
