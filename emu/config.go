package emu

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"debug80/hw/input"
	"debug80/hw/platform"
	"debug80/hw/sdspi"
	"debug80/hw/uart"

	"github.com/BurntSushi/toml"
	"github.com/kirsle/configdir"
)

type Config struct {
	Machine  MachineConfig  `toml:"machine"`
	Serial   SerialConfig   `toml:"serial"`
	Debugger DebuggerConfig `toml:"debugger"`
	Audio    AudioConfig    `toml:"audio"`
	LCD      LCDConfig      `toml:"lcd"`
	SD       SDConfig       `toml:"sd"`
	Input    input.Config   `toml:"input"`

	TraceOut io.WriteCloser `toml:"-"`
}

type MachineConfig struct {
	Platform    string         `toml:"platform"`
	Speed       platform.Speed `toml:"speed"`
	ClockHz     uint64         `toml:"clock_hz"`
	SlowClockHz uint64         `toml:"slow_clock_hz"`
	// ROM lists the inclusive read-only address ranges.
	ROM              [][2]uint16 `toml:"rom"`
	KeyHoldMS        int         `toml:"key_hold_ms"`
	KeyNMI           *bool       `toml:"key_nmi,omitempty"`
	UpdateIntervalMS int         `toml:"update_interval_ms"`
}

type SerialConfig struct {
	Baud     int         `toml:"baud"`
	DataBits int         `toml:"data_bits"`
	StopBits int         `toml:"stop_bits"`
	Parity   uart.Parity `toml:"parity"`
	Inverted bool        `toml:"inverted"`
	// Device is a host serial port bridged to the emulated one.
	Device string `toml:"device,omitempty"`
}

type DebuggerConfig struct {
	Addr            string `toml:"addr"`
	MinYieldMS      int    `toml:"min_yield_ms"`
	MaxInstructions int    `toml:"max_instructions"`
}

type AudioConfig struct {
	Enabled    bool `toml:"enabled"`
	SampleRate int  `toml:"sample_rate"`
	// Output receives raw 16-bit little endian mono samples.
	Output string `toml:"output,omitempty"`
}

type LCDConfig struct {
	Columns int `toml:"columns"`
}

type SDConfig struct {
	Image         string `toml:"image,omitempty"`
	ResponseDelay int    `toml:"response_delay"`
}

const (
	PlatformTEC1  = "tec1"
	PlatformTEC1G = "tec1g"
)

const (
	defaultDebuggerAddr = "localhost:8780"
	defaultSampleRate   = 44100
)

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	cfg := Config{
		Machine: MachineConfig{
			Platform: PlatformTEC1,
			Speed:    platform.SpeedFast,
			ROM:      [][2]uint16{{0x0000, 0x07FF}},
		},
		Input: input.DefaultConfig(),
	}
	cfg.Normalize()
	return cfg
}

// Normalize replaces zero or invalid values with defaults.
func (cfg *Config) Normalize() {
	m := &cfg.Machine
	if m.Platform == "" {
		m.Platform = PlatformTEC1
	}
	if m.ClockHz == 0 {
		m.ClockHz = platform.DefaultClockHz
	}
	if m.SlowClockHz == 0 {
		m.SlowClockHz = platform.DefaultSlowClockHz
	}
	if m.ROM == nil {
		m.ROM = [][2]uint16{{0x0000, 0x07FF}}
	}
	if m.KeyHoldMS <= 0 {
		m.KeyHoldMS = int(platform.DefaultKeyHold / time.Millisecond)
	}
	if m.UpdateIntervalMS <= 0 {
		m.UpdateIntervalMS = int(platform.DefaultUpdateInterval / time.Millisecond)
	}

	if cfg.Serial.Baud <= 0 {
		cfg.Serial.Baud = uart.DefaultBaud
	}
	if cfg.Serial.DataBits == 0 {
		cfg.Serial.DataBits = uart.DefaultDataBits
	}
	if cfg.Serial.StopBits == 0 {
		cfg.Serial.StopBits = uart.DefaultStopBits
	}

	if cfg.Debugger.Addr == "" {
		cfg.Debugger.Addr = defaultDebuggerAddr
	}
	if cfg.Debugger.MinYieldMS <= 0 {
		cfg.Debugger.MinYieldMS = 1
	}
	if cfg.Debugger.MaxInstructions < 0 {
		cfg.Debugger.MaxInstructions = 0
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = defaultSampleRate
	}
	if cfg.LCD.Columns != 16 {
		cfg.LCD.Columns = 20
	}
	if cfg.SD.ResponseDelay <= 0 {
		cfg.SD.ResponseDelay = sdspi.DefaultConfig().ResponseDelay
	}
	if cfg.Input.Keys == ([input.KeyCount]input.Code{}) {
		cfg.Input = input.DefaultConfig()
	}
}

// Validate reports configuration values that cannot be defaulted.
func (cfg *Config) Validate() error {
	switch cfg.Machine.Platform {
	case PlatformTEC1, PlatformTEC1G:
	default:
		return fmt.Errorf("unknown platform %q", cfg.Machine.Platform)
	}
	for _, r := range cfg.Machine.ROM {
		if r[0] > r[1] {
			return fmt.Errorf("invalid rom range [%#04x, %#04x]", r[0], r[1])
		}
	}
	return nil
}

// KeyNMI returns whether a key press raises an NMI on the configured
// platform.
func (cfg *Config) KeyNMI() bool {
	if cfg.Machine.KeyNMI != nil {
		return *cfg.Machine.KeyNMI
	}
	return cfg.Machine.Platform != PlatformTEC1G
}

// PlatformConfig converts cfg into the board configuration.
func (cfg *Config) PlatformConfig() platform.Config {
	sd := sdspi.DefaultConfig()
	sd.ResponseDelay = cfg.SD.ResponseDelay

	pcfg := platform.Config{
		ClockHz:        cfg.Machine.ClockHz,
		SlowClockHz:    cfg.Machine.SlowClockHz,
		Speed:          cfg.Machine.Speed,
		KeyHold:        time.Duration(cfg.Machine.KeyHoldMS) * time.Millisecond,
		KeyNMI:         cfg.KeyNMI(),
		UpdateInterval: time.Duration(cfg.Machine.UpdateIntervalMS) * time.Millisecond,
		Serial: uart.Config{
			Baud:     cfg.Serial.Baud,
			DataBits: cfg.Serial.DataBits,
			StopBits: cfg.Serial.StopBits,
			Parity:   cfg.Serial.Parity,
			Inverted: cfg.Serial.Inverted,
		},
		LCDColumns: cfg.LCD.Columns,
		SD:         sd,
	}
	pcfg.Normalize()
	return pcfg
}

// ConfigDir returns the debug80 configuration directory, creating it if
// needed.
var ConfigDir = sync.OnceValues(func() (string, error) {
	dir := configdir.LocalConfig("debug80")
	if err := configdir.MakePath(dir); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return dir, nil
})

const cfgFilename = "config.toml"

// DefaultConfigPath returns the path of the configuration file in the
// debug80 configuration directory.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, cfgFilename), nil
}

// LoadConfig loads the configuration at path, or the default one when path
// is empty. A missing default file is not an error.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return Config{}, err
		}
	}

	cfg := DefaultConfig()
	_, err := toml.DecodeFile(path, &cfg)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, fs.ErrNotExist):
		return DefaultConfig(), nil
	default:
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg at path.
func SaveConfig(cfg Config, path string) error {
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}
