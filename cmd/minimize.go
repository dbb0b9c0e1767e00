package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"templar.dev/pkg/templar/internal/domain"
	m "templar.dev/pkg/templar/internal/model"
)

func newMinimizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "minimize <program.js>",
		Short: "Reduce a program while it keeps crashing or keeps its coverage",
		Long: `Run the program once, then delete statements while the engine still crashes
with the same signature (--minimize-by signature) or still reports at least
the same coverage (--minimize-by coverage). The result is written to
<output>/<name>.min.js and a unified diff is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := engineSpecFromConfig()
			if err != nil {
				return err
			}

			mode, err := m.ParseMinimizeMode(viper.GetString(minimizeModeKey))
			if err != nil {
				return err
			}

			output := m.Path(viper.GetString(outputFlagName))
			if err := artifactStore.Prepare(output); err != nil {
				return err
			}

			return workflow.Minimize(cmd.Context(), domain.MinimizeArgs{
				Input:  parsePaths(args)[0],
				Output: output,
				Engine: engine,
				Mode:   mode,
				Budget: viper.GetInt(minimizeBudgetKey),
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(newMinimizeCmd())
}
