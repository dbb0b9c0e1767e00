package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"templar.dev/pkg/templar/internal/domain"
	m "templar.dev/pkg/templar/internal/model"
)

func newCrashesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crashes",
		Short: "List the crash classes recorded in the output directory",
		Long:  "List recorded crash classes from an output directory, non-boring crashes first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return workflow.Crashes(cmd.Context(), domain.CrashesArgs{
				Output: m.Path(viper.GetString(outputFlagName)),
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(newCrashesCmd())
}
