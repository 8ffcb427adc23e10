package config

import (
	"errors"
	"fmt"

	"github.com/bastiangx/nextword/pkg/ngram"
	"github.com/robfig/cron/v3"
)

// Validate checks that c contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Server.MaxLimit < 1 {
		bad("server.max_limit must be at least 1, got %d", c.Server.MaxLimit)
	}
	if c.Server.MinPrefix < 0 {
		bad("server.min_prefix must not be negative, got %d", c.Server.MinPrefix)
	}
	if c.Server.MaxPrefix < c.Server.MinPrefix {
		bad("server.max_prefix (%d) is below server.min_prefix (%d)", c.Server.MaxPrefix, c.Server.MinPrefix)
	}
	if c.Server.MaxContext < 0 {
		bad("server.max_context must not be negative, got %d", c.Server.MaxContext)
	}
	if c.Server.ReloadSchedule != "" {
		if _, err := cron.ParseStandard(c.Server.ReloadSchedule); err != nil {
			bad("server.reload_schedule %q: %v", c.Server.ReloadSchedule, err)
		}
	}

	if c.Model.Order < 1 || c.Model.Order > ngram.MaxOrder {
		bad("model.order must be in 1..%d, got %d", ngram.MaxOrder, c.Model.Order)
	}

	if c.Engine.PrefixWeight < 0 || c.Engine.ContextWeight < 0 {
		bad("engine weights must not be negative")
	}
	if c.Engine.CompletionFactor < 1 || c.Engine.ContextFactor < 1 {
		bad("engine candidate factors must be at least 1")
	}

	if c.CLI.DefaultLimit < 1 {
		bad("cli.default_limit must be at least 1, got %d", c.CLI.DefaultLimit)
	}

	return errors.Join(errs...)
}
