// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Bus        BusConfig        `yaml:"bus"`
	IO         IOConfig         `yaml:"io"`
	Console    ConsoleConfig    `yaml:"console"`
	Extension  ExtensionConfig  `yaml:"extension"`
	Beeper     BeeperConfig     `yaml:"beeper"`
	Continuity ContinuityConfig `yaml:"continuity"`
	Presets    map[int]Preset   `yaml:"presets,omitempty"`
}

// ---- BUS ----

// End-of-line policies are ORed bits: 4=EOI, 2=LF, 1=CR.
type BusConfig struct {
	ControllerAddress uint8 `yaml:"controller_address"`
	InstrumentAddress uint8 `yaml:"instrument_address"`
	TxEnd             uint8 `yaml:"tx_end"`
	RxEnd             uint8 `yaml:"rx_end"`
}

// ---- REMOTE LINE ADAPTER ----

// IOConfig selects the Modbus TCP digital I/O module the GPIB signal
// lines are wired through.
type IOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- CONSOLE ----

type ConsoleConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// ---- EXTENSION ----

type ExtensionConfig struct {
	Enabled bool `yaml:"enabled"`
	// SRQMask is the startup mode word applied by the M command on
	// (re)initialization, rendered as two hex digits.
	SRQMask uint8 `yaml:"srq_mask"`
}

// ---- BEEPER ----

type BeeperConfig struct {
	Period uint16 `yaml:"period"`
	Duty   uint8  `yaml:"duty"`
}

// ---- CONTINUITY ----

// The beep pitch/volume ramps linearly between the two configured
// (threshold, period, duty) points.
type ContinuityConfig struct {
	Range     uint8  `yaml:"range"`     // instrument R command argument
	Threshold int32  `yaml:"threshold"` // in reading counts
	Latch     bool   `yaml:"latch"`
	BeepT1    int32  `yaml:"beep_t1"`
	BeepT2    int32  `yaml:"beep_t2"`
	BeepP1    uint16 `yaml:"beep_p1"`
	BeepP2    uint16 `yaml:"beep_p2"`
	BeepD1    uint8  `yaml:"beep_d1"`
	BeepD2    uint8  `yaml:"beep_d2"`
}

// ---- PRESETS ----

// Preset is a saved instrument setup: the two status bytes plus the
// option subset the extension modes depend on.
type Preset struct {
	Status1       uint8 `yaml:"status1"`
	Status2       uint8 `yaml:"status2"`
	ContRange     uint8 `yaml:"cont_range,omitempty"`
	ContThreshold int32 `yaml:"cont_threshold,omitempty"`
}

// Load reads and decodes the YAML configuration file. Unset fields
// keep their factory defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}
	return cfg, nil
}

// Default returns the factory configuration (the "set 0" defaults of
// the reference hardware).
func Default() *Config {
	return &Config{
		Bus: BusConfig{
			ControllerAddress: 21,
			InstrumentAddress: 23,
			TxEnd:             2, // LF
			RxEnd:             4, // EOI
		},
		Console: ConsoleConfig{
			Baud: 115200,
		},
		IO: IOConfig{
			UnitID:    1,
			TimeoutMs: 100,
		},
		Extension: ExtensionConfig{
			Enabled: true,
			SRQMask: 0x20,
		},
		Beeper: BeeperConfig{
			Period: 10000,
			Duty:   15,
		},
		Continuity: ContinuityConfig{
			Range:     2,      // 300 ohm
			Threshold: 100000, // reading counts: 100 ohm in the 300 ohm range
			BeepT1:    100000,
			BeepT2:    100000,
			BeepP1:    10000,
			BeepP2:    10000,
			BeepD1:    15,
			BeepD2:    15,
		},
	}
}
