// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hp3478ext.yaml")
	data := `
io:
  endpoint: 192.0.2.10:502
continuity:
  threshold: 2500
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if cfg.Bus.InstrumentAddress != 23 || cfg.Bus.ControllerAddress != 21 {
		t.Errorf("default addresses not applied: %+v", cfg.Bus)
	}
	if cfg.Continuity.Threshold != 2500 {
		t.Errorf("threshold=%d want 2500", cfg.Continuity.Threshold)
	}
	if cfg.Continuity.BeepP1 != 10000 {
		t.Errorf("beep defaults not applied: %+v", cfg.Continuity)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate err=%v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"address clash", func(c *Config) { c.Bus.InstrumentAddress = c.Bus.ControllerAddress }, false},
		{"address out of range", func(c *Config) { c.Bus.InstrumentAddress = 31 }, false},
		{"bad tx_end", func(c *Config) { c.Bus.TxEnd = 8 }, false},
		{"missing endpoint", func(c *Config) { c.IO.Endpoint = "" }, false},
		{"zero timeout", func(c *Config) { c.IO.TimeoutMs = 0 }, false},
		{"bad cont range", func(c *Config) { c.Continuity.Range = 0 }, false},
		{"inverted beep ramp", func(c *Config) { c.Continuity.BeepT2 = c.Continuity.BeepT1 - 1 }, false},
		{"preset slot out of range", func(c *Config) { c.Presets = map[int]Preset{12: {}} }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.IO.Endpoint = "192.0.2.10:502"
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.ok && err != nil {
				t.Errorf("Validate err=%v, want ok", err)
			}
			if !tc.ok && err == nil {
				t.Error("Validate passed, want error")
			}
		})
	}
}

func TestNormalizeWidensDegenerateRamp(t *testing.T) {
	cfg := Default()
	cfg.Continuity.BeepT1 = 500
	cfg.Continuity.BeepT2 = 500
	Normalize(cfg)
	if cfg.Continuity.BeepT2 != 501 {
		t.Errorf("beep_t2=%d want 501", cfg.Continuity.BeepT2)
	}
}

func TestStoreOptions(t *testing.T) {
	st := NewStore(Default(), "")

	if got := st.Option(OptInstrumentAddress); got != 23 {
		t.Errorf("instrument address option=%d want 23", got)
	}
	if err := st.SetOption(OptInstrumentAddress, 9, false); err != nil {
		t.Fatalf("SetOption err=%v", err)
	}
	if got := st.Option(OptInstrumentAddress); got != 9 {
		t.Errorf("instrument address option=%d want 9", got)
	}
	if err := st.SetOption(OptInstrumentAddress, 31, false); err == nil {
		t.Error("out-of-range option accepted")
	}
	if err := st.SetOption("bogus", 1, false); err == nil {
		t.Error("unknown option accepted")
	}
}

func TestStorePersistsPresets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hp3478ext.yaml")
	cfg := Default()
	cfg.IO.Endpoint = "192.0.2.10:502"
	st := NewStore(cfg, path)

	p := Preset{Status1: 0x26, Status2: 0x06, ContRange: 2, ContThreshold: 1000}
	if err := st.SetPreset(3, p); err != nil {
		t.Fatalf("SetPreset err=%v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload err=%v", err)
	}
	got, ok := reloaded.Presets[3]
	if !ok || got != p {
		t.Errorf("reloaded preset=%+v ok=%v want %+v", got, ok, p)
	}
}
