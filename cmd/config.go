package cmd

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "templar"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	outputFlagName         = "output"
	verboseFlagName        = "verbose"
	logFileFlagName        = "log-file"
	engineFlagName         = "engine"
	engineArgFlagName      = "engine-arg"
	timeoutFlagName        = "timeout"
	scorePatternFlagName   = "score-pattern"
	coverageFileFlagName   = "coverage-file"
	minimizeByFlagName     = "minimize-by"
	minimizeBudgetFlagName = "minimize-budget"
	seedsFlagName          = "seeds"
	iterationsFlagName     = "iterations"
	workersFlagName        = "workers"
	seedFlagName           = "seed"
	gateFlagName           = "gate"
	fusionRateFlagName     = "fusion-rate"
	corpusCapFlagName      = "corpus-cap"
	resumeFlagName         = "resume"
	metricsAddrFlagName    = "metrics-addr"

	engineCommandKey      = "engine.command"
	engineArgsKey         = "engine.args"
	engineTimeoutKey      = "engine.timeout"
	engineScorePatternKey = "engine.score_pattern"
	engineCoverageFileKey = "engine.coverage_file"
	engineMaxOutputKey    = "engine.max_output"
	minimizeModeKey       = "minimize.mode"
	minimizeBudgetKey     = "minimize.budget"
	fuzzIterationsKey     = "fuzz.iterations"
	fuzzWorkersKey        = "fuzz.workers"
	fuzzSeedKey           = "fuzz.seed"
	fuzzGateKey           = "fuzz.gate"
	fuzzFusionRateKey     = "fuzz.fusion_rate"
	fuzzCorpusCapKey      = "fuzz.corpus_cap"
	fuzzResumeKey         = "fuzz.resume"
	fuzzMetricsAddrKey    = "fuzz.metrics_addr"
	fuzzBoringKey         = "fuzz.boring_patterns"

	defaultOutputDir      = ".templar-out"
	defaultSeedsDir       = "seeds"
	defaultEngineTimeout  = 5 * time.Second
	defaultScorePattern   = `edges:(\d+)`
	defaultEngineMaxOut   = 1 << 20
	defaultMinimizeMode   = "signature"
	defaultMinimizeBudget = 500
	defaultIterations     = 1000
	defaultWorkers        = 1
	defaultGate           = true
	defaultFusionRate     = 0.2

	envPrefix = "TEMPLAR"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".templar.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(outputFlagName, defaultOutputDir)
	viper.SetDefault(seedsFlagName, defaultSeedsDir)

	viper.SetDefault(engineCommandKey, "")
	viper.SetDefault(engineArgsKey, []string{})
	viper.SetDefault(engineTimeoutKey, defaultEngineTimeout.String())
	viper.SetDefault(engineScorePatternKey, defaultScorePattern)
	viper.SetDefault(engineCoverageFileKey, "")
	viper.SetDefault(engineMaxOutputKey, defaultEngineMaxOut)

	viper.SetDefault(minimizeModeKey, defaultMinimizeMode)
	viper.SetDefault(minimizeBudgetKey, defaultMinimizeBudget)

	viper.SetDefault(fuzzIterationsKey, defaultIterations)
	viper.SetDefault(fuzzWorkersKey, defaultWorkers)
	viper.SetDefault(fuzzSeedKey, 0)
	viper.SetDefault(fuzzGateKey, defaultGate)
	viper.SetDefault(fuzzFusionRateKey, defaultFusionRate)
	viper.SetDefault(fuzzCorpusCapKey, 0)
	viper.SetDefault(fuzzResumeKey, false)
	viper.SetDefault(fuzzMetricsAddrKey, "")
	viper.SetDefault(fuzzBoringKey, []string{})

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
