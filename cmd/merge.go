package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"templar.dev/pkg/templar/internal/domain"
	m "templar.dev/pkg/templar/internal/model"
)

func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <dir>...",
		Short: "Merge several output directories into one",
		Long: `Merge crashes and corpus programs from several output directories (for
example from parallel machines) into the output directory. Crash classes are
deduplicated by signature and corpus programs by id.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return workflow.Merge(cmd.Context(), domain.MergeArgs{
				Inputs: parsePaths(args),
				Output: m.Path(viper.GetString(outputFlagName)),
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(newMergeCmd())
}
