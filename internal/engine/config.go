package engine

import (
	"fmt"

	"github.com/roach88/quadmatch/internal/reorder"
)

// Strategy settings accepted by Config.Strategy.
const (
	// StrategyAuto runs the row engine and falls back to the nested
	// evaluator for operators it declines.
	StrategyAuto = "auto"

	// StrategyRows runs the row engine only. Declined operators fail with
	// ErrNotImplemented.
	StrategyRows = "rows"

	// StrategyNested sends every operator to the nested evaluator.
	StrategyNested = "nested"
)

// Config is passed explicitly to New. There is no global registry.
type Config struct {
	// Strategy is one of StrategyAuto, StrategyRows, StrategyNested.
	Strategy string `yaml:"strategy" mapstructure:"strategy"`

	// Reorder names the reordering policy: "fixed" or "none".
	Reorder string `yaml:"reorder" mapstructure:"reorder"`

	// MaxBuildRows bounds the build side of every hash join. 0 = unlimited.
	MaxBuildRows int `yaml:"max_build_rows" mapstructure:"max_build_rows"`

	// LogPlans logs every compiled plan at Info instead of Debug.
	LogPlans bool `yaml:"log_plans" mapstructure:"log_plans"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Strategy: StrategyAuto,
		Reorder:  "fixed",
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyAuto, StrategyRows, StrategyNested:
	default:
		return fmt.Errorf("config: unknown strategy %q (want auto, rows or nested)", c.Strategy)
	}
	if _, err := reorder.ByName(c.Reorder); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.MaxBuildRows < 0 {
		return fmt.Errorf("config: max_build_rows must be >= 0, got %d", c.MaxBuildRows)
	}
	return nil
}
