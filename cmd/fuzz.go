package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fortio.org/safecast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"templar.dev/pkg/templar/internal/domain"
	m "templar.dev/pkg/templar/internal/model"
)

var (
	seedsFlag       string
	iterationsFlag  uint64
	workersFlag     uint
	seedFlag        uint64
	gateFlag        bool
	fusionRateFlag  float64
	corpusCapFlag   int
	resumeFlag      bool
	metricsAddrFlag string
)

func newFuzzCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fuzz",
		Short: "Run the coverage-guided fuzzing loop",
		Long:  fuzzLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			args, err := fuzzArgsFromConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return workflow.Fuzz(ctx, args)
		},
	}

	configureFuzzFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(newFuzzCmd())
}

func configureFuzzFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&seedsFlag, seedsFlagName, "s", defaultSeedsDir, "directory of seed programs")
	bindFlagToConfig(cmd.Flags().Lookup(seedsFlagName), seedsFlagName)

	cmd.Flags().Uint64VarP(&iterationsFlag, iterationsFlagName, "n", defaultIterations, "number of iterations (0 runs until interrupted)")
	bindFlagToConfig(cmd.Flags().Lookup(iterationsFlagName), fuzzIterationsKey)

	cmd.Flags().UintVarP(&workersFlag, workersFlagName, "p", defaultWorkers, "number of parallel workers")
	bindFlagToConfig(cmd.Flags().Lookup(workersFlagName), fuzzWorkersKey)

	cmd.Flags().Uint64Var(&seedFlag, seedFlagName, 0, "random seed (0 picks one from the clock)")
	bindFlagToConfig(cmd.Flags().Lookup(seedFlagName), fuzzSeedKey)

	cmd.Flags().BoolVar(&gateFlag, gateFlagName, defaultGate, "only keep programs that raise the best coverage score")
	bindFlagToConfig(cmd.Flags().Lookup(gateFlagName), fuzzGateKey)

	cmd.Flags().Float64Var(&fusionRateFlag, fusionRateFlagName, defaultFusionRate, "probability of fusing two templates in an iteration")
	bindFlagToConfig(cmd.Flags().Lookup(fusionRateFlagName), fuzzFusionRateKey)

	cmd.Flags().IntVar(&corpusCapFlag, corpusCapFlagName, 0, "maximum corpus size without the gate (0 for unbounded)")
	bindFlagToConfig(cmd.Flags().Lookup(corpusCapFlagName), fuzzCorpusCapKey)

	cmd.Flags().BoolVar(&resumeFlag, resumeFlagName, false, "resume from the corpus and crashes in the output directory")
	bindFlagToConfig(cmd.Flags().Lookup(resumeFlagName), fuzzResumeKey)

	cmd.Flags().StringVar(&metricsAddrFlag, metricsAddrFlagName, "", "serve Prometheus metrics on this address (e.g. :9464)")
	bindFlagToConfig(cmd.Flags().Lookup(metricsAddrFlagName), fuzzMetricsAddrKey)
}

func fuzzArgsFromConfig() (domain.FuzzArgs, error) {
	engine, err := engineSpecFromConfig()
	if err != nil {
		return domain.FuzzArgs{}, err
	}

	mode, err := m.ParseMinimizeMode(viper.GetString(minimizeModeKey))
	if err != nil {
		return domain.FuzzArgs{}, err
	}

	workers := viper.GetUint(fuzzWorkersKey)
	if workers == 0 {
		return domain.FuzzArgs{}, fmt.Errorf("--%s must be at least 1", workersFlagName)
	}

	fusionRate := viper.GetFloat64(fuzzFusionRateKey)
	if fusionRate > 1 {
		return domain.FuzzArgs{}, fmt.Errorf("--%s must be at most 1, got %g", fusionRateFlagName, fusionRate)
	}

	corpusCap := viper.GetInt(fuzzCorpusCapKey)
	if _, err := safecast.Conv[uint](corpusCap); err != nil {
		return domain.FuzzArgs{}, fmt.Errorf("--%s must not be negative: %w", corpusCapFlagName, err)
	}

	var boring []string
	if patterns := viper.GetStringSlice(fuzzBoringKey); len(patterns) > 0 {
		boring = patterns
	}

	return domain.FuzzArgs{
		Seeds:          m.Path(viper.GetString(seedsFlagName)),
		Output:         m.Path(viper.GetString(outputFlagName)),
		Engine:         engine,
		Iterations:     viper.GetUint64(fuzzIterationsKey),
		Workers:        workers,
		Seed:           viper.GetUint64(fuzzSeedKey),
		Gate:           viper.GetBool(fuzzGateKey),
		MinimizeBy:     mode,
		MinimizeBudget: viper.GetInt(minimizeBudgetKey),
		FusionRate:     fusionRate,
		CorpusCap:      corpusCap,
		Resume:         viper.GetBool(fuzzResumeKey),
		MetricsAddr:    viper.GetString(fuzzMetricsAddrKey),
		BoringPatterns: boring,
	}, nil
}
