package config

import (
	"fmt"
	"slices"

	"github.com/leapstack-labs/jointab/pkg/core"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !slices.Contains(OutputModes, c.OutputFormat) {
		return fmt.Errorf("invalid output %q (want one of %v)", c.OutputFormat, OutputModes)
	}
	if _, err := core.ParseJoinType(c.DefaultJoinType); err != nil {
		return fmt.Errorf("default_join_type: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.FanoutWarnRatio < 0 {
		return fmt.Errorf("fanout_warn_ratio must not be negative, got %v", c.FanoutWarnRatio)
	}
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	return nil
}
