// internal/config/store.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store is the configuration store handed to the extension controller:
// named option access with defaults, preset slots, and explicit
// persistence. The core never sees storage layout; it only reads and
// writes named options.
type Store struct {
	cfg  *Config
	path string
}

func NewStore(cfg *Config, path string) *Store {
	return &Store{cfg: cfg, path: path}
}

func (s *Store) Config() *Config { return s.cfg }

// Option keys.
const (
	OptControllerAddress = "controller_address"
	OptInstrumentAddress = "instrument_address"
	OptTxEnd             = "tx_end"
	OptRxEnd             = "rx_end"
	OptExtensionEnabled  = "extension_enabled"
	OptSRQMask           = "srq_mask"
	OptContRange         = "cont_range"
	OptContThreshold     = "cont_threshold"
)

type optionDef struct {
	max int
	get func(*Config) int
	set func(*Config, int)
}

var options = map[string]optionDef{
	OptControllerAddress: {30,
		func(c *Config) int { return int(c.Bus.ControllerAddress) },
		func(c *Config, v int) { c.Bus.ControllerAddress = uint8(v) }},
	OptInstrumentAddress: {30,
		func(c *Config) int { return int(c.Bus.InstrumentAddress) },
		func(c *Config, v int) { c.Bus.InstrumentAddress = uint8(v) }},
	OptTxEnd: {7,
		func(c *Config) int { return int(c.Bus.TxEnd) },
		func(c *Config, v int) { c.Bus.TxEnd = uint8(v) }},
	OptRxEnd: {7,
		func(c *Config) int { return int(c.Bus.RxEnd) },
		func(c *Config, v int) { c.Bus.RxEnd = uint8(v) }},
	OptExtensionEnabled: {1,
		func(c *Config) int {
			if c.Extension.Enabled {
				return 1
			}
			return 0
		},
		func(c *Config, v int) { c.Extension.Enabled = v != 0 }},
	OptSRQMask: {0xff,
		func(c *Config) int { return int(c.Extension.SRQMask) },
		func(c *Config, v int) { c.Extension.SRQMask = uint8(v) }},
	OptContRange: {7,
		func(c *Config) int { return int(c.Continuity.Range) },
		func(c *Config, v int) { c.Continuity.Range = uint8(v) }},
	OptContThreshold: {1 << 20,
		func(c *Config) int { return int(c.Continuity.Threshold) },
		func(c *Config, v int) { c.Continuity.Threshold = int32(v) }},
}

// Option returns the named option, or the factory default for unknown
// keys so callers never branch on presence.
func (s *Store) Option(key string) int {
	def, ok := options[key]
	if !ok {
		return 0
	}
	return def.get(s.cfg)
}

// SetOption updates the named option, optionally rewriting the backing
// file.
func (s *Store) SetOption(key string, v int, persist bool) error {
	def, ok := options[key]
	if !ok {
		return fmt.Errorf("config: unknown option %q", key)
	}
	if v < 0 || v > def.max {
		return fmt.Errorf("config: option %q value %d out of range (0-%d)", key, v, def.max)
	}
	def.set(s.cfg, v)
	if persist {
		return s.Save()
	}
	return nil
}

// Preset returns the saved preset for slot, if any.
func (s *Store) Preset(slot int) (Preset, bool) {
	p, ok := s.cfg.Presets[slot]
	return p, ok
}

// SetPreset stores a preset slot and persists it.
func (s *Store) SetPreset(slot int, p Preset) error {
	if s.cfg.Presets == nil {
		s.cfg.Presets = make(map[int]Preset)
	}
	s.cfg.Presets[slot] = p
	return s.Save()
}

// Save rewrites the configuration file. A store without a path (tests)
// keeps everything in memory.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}
	raw, err := yaml.Marshal(s.cfg)
	if err != nil {
		return fmt.Errorf("config encode: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
