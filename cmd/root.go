// Package cmd provides the root command and CLI setup for templar.
package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"templar.dev/pkg/templar/internal/adapter"
	"templar.dev/pkg/templar/internal/controller"
	"templar.dev/pkg/templar/internal/domain"
	m "templar.dev/pkg/templar/internal/model"
)

var syntaxAdapter adapter.JSSyntaxAdapter
var seedFSAdapter adapter.SeedFSAdapter
var artifactStore adapter.ArtifactStore
var engineRunner adapter.EngineRunnerAdapter
var metricsAdapter adapter.MetricsAdapter
var extractor domain.Extractor
var mutator domain.Mutator
var concretizer domain.Concretizer
var minimizer domain.Minimizer
var workflow domain.Workflow
var ui controller.UI

// outputDirFlag is a root-level flag shared by commands that read or write
// an output directory.
var outputDirFlag string

var verboseFlag bool
var logFileFlag string

// Engine and minimization flags are shared by fuzz and minimize.
var (
	engineFlag         string
	engineArgsFlag     []string
	timeoutFlag        string
	scorePatternFlag   string
	coverageFileFlag   string
	minimizeByFlag     string
	minimizeBudgetFlag int
)

func init() {
	// Initialize shared dependencies.
	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout))
	syntaxAdapter = adapter.NewLocalJSSyntaxAdapter()
	seedFSAdapter = adapter.NewLocalSeedFSAdapter()
	artifactStore = adapter.NewArtifactStore()
	engineRunner = adapter.NewLocalEngineRunnerAdapter()
	metricsAdapter = adapter.NewPrometheusMetricsAdapter()
	extractor = domain.NewExtractor(syntaxAdapter)
	concretizer = domain.NewConcretizer()
	minimizer = domain.NewMinimizer(syntaxAdapter, extractor)

	var err error

	mutator, err = domain.NewMutator(syntaxAdapter, extractor)
	cobra.CheckErr(err)

	workflow = domain.NewWorkflow(
		seedFSAdapter,
		artifactStore,
		engineRunner,
		metricsAdapter,
		ui,
		extractor,
		mutator,
		concretizer,
		minimizer,
	)
}

const engineContractHelp = `The engine is invoked as <engine> <engine-args...> <program.js>. Exit code 0
is a normal run, any other exit is a crash, and a run past --timeout is a
timeout. Coverage is read from --coverage-file (edges:<N> or <N>) when set,
otherwise from stdout/stderr matches of --score-pattern.`

const rootLongDescription = `Templar is a coverage-guided, template-based fuzzer for JavaScript engines.
It turns seed programs into templates with typed holes, mutates them with
insertion, deletion, substitution and fusion, fills the holes with
scope-aware values and keeps the programs that raise the engine's coverage.
Crashes are deduplicated by a normalized signature and minimized.

` + engineContractHelp

const fuzzLongDescription = `Run the fuzzing loop over the seed directory and write crashes, corpus
programs, timeouts and run statistics to the output directory.

` + engineContractHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templar",
		Short: "Template-based JavaScript engine fuzzer",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(logFileFlag, viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}

	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&outputDirFlag, outputFlagName, "o",
			defaultOutputDir,
			"output directory for crashes, corpus and run statistics",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", defaultLogVerbose, "log at debug level")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)

	cmd.PersistentFlags().StringVar(&logFileFlag, logFileFlagName, "", "log file path (default "+defaultLogFilename+")")

	cmd.PersistentFlags().StringVarP(&engineFlag, engineFlagName, "e", "", "engine command to run programs with")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(engineFlagName), engineCommandKey)

	cmd.PersistentFlags().StringArrayVar(&engineArgsFlag, engineArgFlagName, nil, "argument passed to the engine before the program path (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(engineArgFlagName), engineArgsKey)

	cmd.PersistentFlags().StringVarP(&timeoutFlag, timeoutFlagName, "t", defaultEngineTimeout.String(), "per-execution timeout")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(timeoutFlagName), engineTimeoutKey)

	cmd.PersistentFlags().StringVar(&scorePatternFlag, scorePatternFlagName, defaultScorePattern, "regular expression with one capture group matching the coverage score")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(scorePatternFlagName), engineScorePatternKey)

	cmd.PersistentFlags().StringVar(&coverageFileFlag, coverageFileFlagName, "", "file the engine writes its coverage score to")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(coverageFileFlagName), engineCoverageFileKey)

	cmd.PersistentFlags().StringVar(&minimizeByFlag, minimizeByFlagName, defaultMinimizeMode, "minimization mode: signature, coverage or none")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(minimizeByFlagName), minimizeModeKey)

	cmd.PersistentFlags().IntVar(&minimizeBudgetFlag, minimizeBudgetFlagName, defaultMinimizeBudget, "maximum engine runs per minimization (0 for unbounded)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(minimizeBudgetFlagName), minimizeBudgetKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func parsePaths(args []string) []m.Path {
	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}

// engineSpecFromConfig assembles the engine invocation from flags, config
// and environment.
func engineSpecFromConfig() (m.EngineSpec, error) {
	timeout, err := parseTimeout(viper.GetString(engineTimeoutKey))
	if err != nil {
		return m.EngineSpec{}, err
	}

	return m.EngineSpec{
		Command:      viper.GetString(engineCommandKey),
		Args:         viper.GetStringSlice(engineArgsKey),
		Timeout:      timeout,
		ScorePattern: viper.GetString(engineScorePatternKey),
		CoverageFile: viper.GetString(engineCoverageFileKey),
		MaxOutput:    viper.GetInt(engineMaxOutputKey),
	}, nil
}

// parseTimeout accepts a Go duration or a plain number of seconds.
func parseTimeout(value string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("invalid timeout %q: must be positive", value)
		}

		return time.Duration(secs * float64(time.Second)), nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", value, err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("invalid timeout %q: must be positive", value)
	}

	return d, nil
}
