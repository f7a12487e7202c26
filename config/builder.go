package config

import (
	"sort"

	"github.com/jpalmerr/watchboard"
	"github.com/jpalmerr/watchboard/internal/diag"
)

// Options converts parsed configuration into SDK options.
//
// Options are returned in a fixed order so that options given after them
// by the caller take precedence.
func Options(cfg *Config) ([]watchboard.Option, error) {
	opts := []watchboard.Option{
		watchboard.WithTitle(cfg.Title),
		watchboard.WithPort(cfg.Port),
		watchboard.WithRefreshThreshold(cfg.Scheduler.Threshold.Duration()),
		watchboard.WithFrameInterval(cfg.Scheduler.Frame.Duration()),
		watchboard.WithIgnoreTimeScale(cfg.Scheduler.IgnoreTimeScale),
		watchboard.WithShowIndex(cfg.Format.ShowIndex),
		watchboard.WithPalette(cfg.Format.Colors),
	}

	if cfg.Headless {
		opts = append(opts, watchboard.WithHeadless())
	}
	if len(cfg.Modules.Allow) > 0 || len(cfg.Modules.Deny) > 0 {
		opts = append(opts, watchboard.WithModules(cfg.Modules.Allow, cfg.Modules.Deny))
	}
	if cfg.Format.ElementIndent != nil {
		opts = append(opts, watchboard.WithElementIndent(*cfg.Format.ElementIndent))
	}

	// sort categories for deterministic ordering
	categories := make([]string, 0, len(cfg.Diagnostics.Levels))
	for c := range cfg.Diagnostics.Levels {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		level, err := diag.ParseLevel(cfg.Diagnostics.Levels[c])
		if err != nil {
			return nil, err
		}
		opts = append(opts, watchboard.WithSeverity(c, level))
	}

	return opts, nil
}
