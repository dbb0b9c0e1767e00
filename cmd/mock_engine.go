package cmd

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"fortio.org/safecast"
	"github.com/spf13/cobra"
)

// exitProcess ends the mock engine with a crash exit code.
var exitProcess = os.Exit

const (
	mockCrashExitCode = 134
	mockThrowExitCode = 1
)

type mockEngineOptions struct {
	js        string
	mode      string
	min       int
	max       int
	crashRate float64
	seed      uint64
	sleepMS   int
	edgesFile string
}

func newMockEngineCmd() *cobra.Command {
	opts := mockEngineOptions{}

	cmd := &cobra.Command{
		Use:    "mock-engine [program.js]",
		Short:  "Synthetic engine that follows the engine contract",
		Hidden: true,
		Long: `Pretend to execute a program: print edges:<N> (deterministic per program in
inc mode, seeded random in rand mode), optionally write it to --edges-file,
abort when the program contains CRASH, throw when it contains throw, and
abort at random with --crash-rate.`,
		Args: cobra.MaximumNArgs(1),
		// Engine runs happen once per iteration; they must not touch the log file.
		PersistentPreRun: func(_ *cobra.Command, _ []string) {},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.js
			if len(args) == 1 {
				path = args[0]
			}

			if path == "" {
				return errors.New("no program file given")
			}

			code, err := runMockEngine(cmd.OutOrStdout(), cmd.ErrOrStderr(), path, opts)
			if err != nil {
				return err
			}

			if code != 0 {
				exitProcess(code)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&opts.js, "js", "", "program file (alternative to the positional argument)")
	cmd.Flags().StringVar(&opts.mode, "mode", "rand", "edge count mode: rand or inc")
	cmd.Flags().IntVar(&opts.min, "min", 100, "minimum edge count")
	cmd.Flags().IntVar(&opts.max, "max", 10000, "maximum edge count")
	cmd.Flags().Float64Var(&opts.crashRate, "crash-rate", 0, "probability of a random crash")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 42, "random seed")
	cmd.Flags().IntVar(&opts.sleepMS, "sleep-ms", 0, "simulated execution time in milliseconds")
	cmd.Flags().StringVar(&opts.edgesFile, "edges-file", "", "also write edges:<N> to this file")

	return cmd
}

func init() {
	rootCmd.AddCommand(newMockEngineCmd())
}

// runMockEngine returns the exit code the engine should terminate with.
func runMockEngine(stdout, stderr io.Writer, path string, opts mockEngineOptions) (int, error) {
	if opts.min < 0 || opts.max < opts.min {
		return 0, fmt.Errorf("invalid edge range [%d, %d]", opts.min, opts.max)
	}

	if opts.mode != "rand" && opts.mode != "inc" {
		return 0, fmt.Errorf("unknown mode %q (want rand or inc)", opts.mode)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read program: %w", err)
	}

	if opts.sleepMS > 0 {
		time.Sleep(time.Duration(opts.sleepMS) * time.Millisecond)
	}

	sum := sha256.Sum256(content)
	rng := rand.New(rand.NewPCG(opts.seed, binary.BigEndian.Uint64(sum[:8])))

	edges, err := mockEdges(content, sum, rng, opts)
	if err != nil {
		return 0, err
	}

	_, _ = fmt.Fprintf(stdout, "edges:%d\n", edges)

	if opts.edgesFile != "" {
		if err := os.WriteFile(opts.edgesFile, fmt.Appendf(nil, "edges:%d\n", edges), 0o600); err != nil {
			_, _ = fmt.Fprintf(stderr, "warning: failed to write edges file: %v\n", err)
		}
	}

	source := string(content)

	switch {
	case strings.Contains(source, "CRASH"):
		_, _ = fmt.Fprintf(stderr, "Fatal error in mock engine: CRASH token reached\n#0 0x%x in MockEngine_Abort\n", sum[:4])
		return mockCrashExitCode, nil
	case strings.Contains(source, "throw"):
		_, _ = fmt.Fprint(stderr, "Uncaught ReferenceError: mock_var is not defined\n    at <anonymous>:1:1\n")
		return mockThrowExitCode, nil
	case rng.Float64() < opts.crashRate:
		_, _ = fmt.Fprintf(stderr, "Fatal error in mock engine: random crash\n#0 0x%x in MockEngine_RandomAbort\n", sum[:4])
		return mockCrashExitCode, nil
	}

	return 0, nil
}

func mockEdges(content []byte, sum [sha256.Size]byte, rng *rand.Rand, opts mockEngineOptions) (uint64, error) {
	lo, err := safecast.Conv[uint64](opts.min)
	if err != nil {
		return 0, err
	}

	hi, err := safecast.Conv[uint64](opts.max)
	if err != nil {
		return 0, err
	}

	if opts.mode == "rand" {
		return lo + rng.Uint64N(hi-lo+1), nil
	}

	base := lo
	if hi > lo {
		base += uint64(binary.BigEndian.Uint32(sum[:4])) % (hi - lo)
	}

	size, err := safecast.Conv[uint64](len(content))
	if err != nil {
		return 0, err
	}

	return base + min(size*10, hi/2), nil
}
