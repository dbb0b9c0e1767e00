package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"templar.dev/pkg/templar/internal/domain"
	m "templar.dev/pkg/templar/internal/model"
)

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract [seed dir]",
		Short: "List seeds with their statement and placeholder counts",
		Long: `Parse every seed program and show how many statement units and identifier,
expression and statement holes its template has. Seeds that fail to parse are
listed with the parse error.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seeds := m.Path(viper.GetString(seedsFlagName))
			if len(args) == 1 {
				seeds = parsePaths(args)[0]
			}

			return workflow.Extract(cmd.Context(), domain.ExtractArgs{Seeds: seeds})
		},
	}
}

func init() {
	rootCmd.AddCommand(newExtractCmd())
}
