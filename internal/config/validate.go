// internal/config/validate.go
package config

import "fmt"

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	// ------------------------------------------------------------
	// BUS ADDRESSING
	// ------------------------------------------------------------

	if cfg.Bus.ControllerAddress > 30 {
		return fmt.Errorf("bus: controller_address %d out of range (0-30)", cfg.Bus.ControllerAddress)
	}
	if cfg.Bus.InstrumentAddress > 30 {
		return fmt.Errorf("bus: instrument_address %d out of range (0-30)", cfg.Bus.InstrumentAddress)
	}
	if cfg.Bus.ControllerAddress == cfg.Bus.InstrumentAddress {
		return fmt.Errorf("bus: controller and instrument share address %d", cfg.Bus.ControllerAddress)
	}
	if cfg.Bus.TxEnd > 7 {
		return fmt.Errorf("bus: tx_end %d out of range (ORed bits 4=EOI 2=LF 1=CR)", cfg.Bus.TxEnd)
	}
	if cfg.Bus.RxEnd > 7 {
		return fmt.Errorf("bus: rx_end %d out of range (ORed bits 4=EOI 2=LF 1=CR)", cfg.Bus.RxEnd)
	}

	// ------------------------------------------------------------
	// LINE ADAPTER
	// ------------------------------------------------------------

	if cfg.IO.Endpoint == "" {
		return fmt.Errorf("io: endpoint required")
	}
	if cfg.IO.TimeoutMs <= 0 {
		return fmt.Errorf("io: timeout_ms must be > 0")
	}

	// ------------------------------------------------------------
	// CONTINUITY BEEP TABLE
	// ------------------------------------------------------------

	c := cfg.Continuity
	if c.Range < 1 || c.Range > 7 {
		return fmt.Errorf("continuity: range %d out of range (1-7)", c.Range)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("continuity: threshold must be > 0")
	}
	if c.BeepT2 < c.BeepT1 {
		return fmt.Errorf("continuity: beep_t2 %d below beep_t1 %d", c.BeepT2, c.BeepT1)
	}

	// ------------------------------------------------------------
	// PRESET SLOTS
	// ------------------------------------------------------------

	for slot := range cfg.Presets {
		if slot < 0 || slot > 9 {
			return fmt.Errorf("presets: slot %d out of range (0-9)", slot)
		}
	}

	return nil
}
