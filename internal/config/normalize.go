// internal/config/normalize.go
package config

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// A degenerate beep ramp (both thresholds equal) collapses the
	// interpolation to the first point; widen it by one count so the
	// divisor is never zero.
	if cfg.Continuity.BeepT1 == cfg.Continuity.BeepT2 {
		cfg.Continuity.BeepT2 = cfg.Continuity.BeepT1 + 1
	}

	// Serial console speed falls back to the factory default.
	if cfg.Console.Baud == 0 {
		cfg.Console.Baud = 115200
	}
}
