// Package config loads jointab settings from defaults, the project config
// file, JOINTAB_* environment variables and command-line flags.
package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/leapstack-labs/jointab/pkg/core"
)

// Config holds all CLI configuration options.
type Config struct {
	Pipeline        string  `koanf:"pipeline"`
	StatePath       string  `koanf:"state_path"`
	OutputFormat    string  `koanf:"output"`
	Verbose         bool    `koanf:"verbose"`
	Timezone        string  `koanf:"timezone"`
	FanoutWarnRatio float64 `koanf:"fanout_warn_ratio"`
	DefaultJoinType string  `koanf:"default_join_type"`

	// Set by the loader, not read from any source.
	ProjectRoot string `koanf:"-"`
	ConfigFile  string `koanf:"-"`
}

// Default configuration values.
const (
	DefaultPipeline        = "pipeline.yaml"
	DefaultStateFile       = ".jointab/state.db"
	DefaultOutput          = "auto" // TTY gets styled text, anything else markdown
	DefaultTimezone        = "UTC"
	DefaultFanoutWarnRatio = 10.0
	DefaultJoinType        = string(core.JoinInner)
)

// Config file names searched for, in order.
const (
	ConfigFileName    = "jointab.yaml"
	ConfigFileNameAlt = "jointab.yml"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "JOINTAB_"

// OutputModes lists the accepted values of the output option.
var OutputModes = []string{"auto", "text", "markdown", "json"}

// Default returns a Config with every default applied and no project root.
func Default() *Config {
	return &Config{
		Pipeline:        DefaultPipeline,
		StatePath:       DefaultStateFile,
		OutputFormat:    DefaultOutput,
		Timezone:        DefaultTimezone,
		FanoutWarnRatio: DefaultFanoutWarnRatio,
		DefaultJoinType: DefaultJoinType,
	}
}

// Location resolves the timezone used for zone-naive timestamps.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// JoinType returns the join type steps use when they name none.
func (c *Config) JoinType() core.JoinType {
	jt, err := core.ParseJoinType(c.DefaultJoinType)
	if err != nil {
		return core.JoinInner
	}
	return jt
}
