package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/roach88/quadmatch/internal/engine"
	"github.com/roach88/quadmatch/internal/ir"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string // optional YAML/TOML/JSON file with engine settings

	// Config and Logger are resolved in PersistentPreRunE, before any
	// subcommand runs.
	Config engine.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// envPrefix is prepended to engine settings read from the environment,
// e.g. QUADMATCH_STRATEGY=nested.
const envPrefix = "QUADMATCH"

// NewRootCommand creates the root command for the quadmatch CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "quadmatch",
		Version: fmt.Sprintf("%s (encoding v%s)", ir.EngineVersion, ir.EncodingVersion),
		Short:   "quadmatch - pattern matching over quad stores",
		Long: `Evaluate basic graph patterns over RDF-style quad stores.

Queries run on a row-oriented hash join engine and fall back to a
nested-loop evaluator for anything it declines. Engine settings come from
flags, QUADMATCH_* environment variables and an optional --config file.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			cfg, err := loadConfig(cmd, opts.ConfigFile)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			opts.Config = cfg
			opts.Logger = newLogger(cmd, opts.Verbose)
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigFile, "config", "", "engine configuration file")
	flags.String("strategy", engine.StrategyAuto, "execution strategy (auto|rows|nested)")
	flags.String("reorder", "fixed", "pattern reordering policy (fixed|none)")
	flags.Int("max-build-rows", 0, "bound on hash join build rows (0 = unlimited)")
	flags.Bool("log-plans", false, "log compiled plans at info level")

	// Add subcommands
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// configFlags maps engine.Config keys to the persistent flags that set them.
var configFlags = map[string]string{
	"strategy":       "strategy",
	"reorder":        "reorder",
	"max_build_rows": "max-build-rows",
	"log_plans":      "log-plans",
}

// loadConfig resolves the engine configuration. Precedence, highest first:
// flags set on the command line, environment, config file, defaults.
func loadConfig(cmd *cobra.Command, file string) (engine.Config, error) {
	v := viper.New()

	def := engine.DefaultConfig()
	v.SetDefault("strategy", def.Strategy)
	v.SetDefault("reorder", def.Reorder)
	v.SetDefault("max_build_rows", def.MaxBuildRows)
	v.SetDefault("log_plans", def.LogPlans)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return engine.Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	for key, name := range configFlags {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return engine.Config{}, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	var cfg engine.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return engine.Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, err
	}
	return cfg, nil
}

// newLogger writes structured logs to stderr so they never mix with
// command output.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
