package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// AggregateConfig holds configuration for aggregation.
type AggregateConfig struct {
	Config
	Window         string
	BatchSize      int
	AggregateState string
	StateName      string
	RecomputeFrom  string
}

// LoadAggregate merges config file, environment variables, and flags into AggregateConfig.
func LoadAggregate(cfgFile string, flags *pflag.FlagSet) (AggregateConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return AggregateConfig{}, err
	}
	v.SetDefault("batch-size", 1000)
	v.SetDefault("window", "5m")

	cfg := AggregateConfig{
		Config:         fromViper(v),
		Window:         v.GetString("window"),
		BatchSize:      v.GetInt("batch-size"),
		AggregateState: v.GetString("aggregate-state"),
		StateName:      v.GetString("state-name"),
		RecomputeFrom:  v.GetString("recompute-from"),
	}
	if err := cfg.Validate(); err != nil {
		return AggregateConfig{}, err
	}
	return cfg, nil
}

// WindowSeconds parses Window as a duration of at least one second.
func (c AggregateConfig) WindowSeconds() (uint64, error) {
	d, err := time.ParseDuration(c.Window)
	if err != nil {
		return 0, fmt.Errorf("invalid window: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("window must be positive")
	}
	secs := uint64(d.Seconds())
	if secs == 0 {
		return 0, fmt.Errorf("window must be at least 1s")
	}
	return secs, nil
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	if strings.TrimSpace(input) == "" {
		return 0, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseUint(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return val, nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
