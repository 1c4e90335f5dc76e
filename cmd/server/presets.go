package main

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/mescon/timr/internal/config"
	"github.com/mescon/timr/internal/format"
	"github.com/mescon/timr/internal/logger"
	"github.com/mescon/timr/internal/store"
	"github.com/mescon/timr/internal/timer"
)

// createPresets adds a timer to st for every preset. Presets that fail are skipped and
// reported together; the rest are still created.
func createPresets(st *store.Store, presets []config.Preset, defaultFormat string, opts ...timer.Option) error {
	var errs error
	for _, p := range presets {
		partial, err := p.Partial()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("preset %q: %w", p.Name, err))
			continue
		}
		if partial.FormatOutput == nil && defaultFormat != "" {
			partial.FormatOutput = format.Ptr(defaultFormat)
		}

		e, err := st.Create(store.CreateRequest{
			Name:      p.Name,
			Start:     p.Start,
			Options:   partial,
			Autostart: p.Autostart,
			Delay:     time.Duration(p.DelayMs) * time.Millisecond,
		}, opts...)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("preset %q: %w", p.Name, err))
			continue
		}
		logger.Infof("✓ Preset %s: %s (%s)", e.Name, e.Timer.Format().FormattedTime, e.Timer.Status())
	}
	return errs
}
