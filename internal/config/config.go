// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config defines the global configuration structure
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Serial    SerialConfig    `mapstructure:"serial"`
	Bus       BusConfig       `mapstructure:"bus"`
	Relays    []uint16        `mapstructure:"relays"` // Register of relay 1..8, in order
	Registers RegistersConfig `mapstructure:"registers"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Sim       SimConfig       `mapstructure:"sim"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// SerialConfig defines RTU settings
type SerialConfig struct {
	Driver       string        `mapstructure:"driver"` // "grid-x", "tarm", "sim"
	Device       string        `mapstructure:"device"`
	BaudRate     int           `mapstructure:"baud_rate"`
	DataBits     int           `mapstructure:"data_bits"`
	Parity       string        `mapstructure:"parity"`
	StopBits     int           `mapstructure:"stop_bits"`
	PollInterval time.Duration `mapstructure:"poll_interval"` // Driver read timeout while waiting for bytes

	// RS485 specific
	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

// BusConfig defines the transaction budgets on the field bus
type BusConfig struct {
	SlaveID          uint8         `mapstructure:"slave_id"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`       // Single register reads
	MultiReadTimeout time.Duration `mapstructure:"multi_read_timeout"` // Reads of more than one register
}

// RegistersConfig defines the deployment's control addresses
type RegistersConfig struct {
	Test          uint16 `mapstructure:"test"`
	Run           uint16 `mapstructure:"run"`
	Stop          uint16 `mapstructure:"stop"`
	ProgramSelect uint16 `mapstructure:"program_select"`
	TestStartCoil uint16 `mapstructure:"test_start_coil"`
}

// ScanConfig defines the program name enumeration
type ScanConfig struct {
	BaseAddress      uint16        `mapstructure:"base_address"`
	Slots            int           `mapstructure:"slots"`
	RegistersPerSlot uint16        `mapstructure:"registers_per_slot"`
	Deadline         time.Duration `mapstructure:"deadline"`
	MaxFailures      int           `mapstructure:"max_failures"` // Consecutive failures before giving up
	Delay            time.Duration `mapstructure:"delay"`        // Bus settling time between reads
}

// CacheConfig defines where the last program name table is kept
type CacheConfig struct {
	Type string `mapstructure:"type"` // "memory", "file", "mmap"
	Path string `mapstructure:"path"` // File path for "file/mmap" type
}

// SimConfig defines the simulated slave used by the "sim" driver
type SimConfig struct {
	Latency  time.Duration `mapstructure:"latency"`
	Programs []string      `mapstructure:"programs"`
}

// Default deployment register map. The relay block and the test/run/stop
// registers are kept as independent constants; nothing derives one from
// the other.
const (
	DefaultSlaveID = 1

	DefaultRelay1Register = 18099
	DefaultRelay2Register = 18100
	DefaultRelay3Register = 18101
	DefaultRelay4Register = 18102
	DefaultRelay5Register = 18103
	DefaultRelay6Register = 18104
	DefaultRelay7Register = 18105
	DefaultRelay8Register = 18106

	DefaultTestRegister  = 19000
	DefaultRunRegister   = 19099
	DefaultStopRegister  = 19101
	DefaultProgramSelect = 0x0060
	DefaultTestStartCoil = 0x000A
	DefaultNameBase      = 0xEA74
	DefaultSlots         = 30
	RelayCount           = 8
)

// DefaultRelays is the relay address table indexed by relay number - 1.
var DefaultRelays = [RelayCount]uint16{
	DefaultRelay1Register,
	DefaultRelay2Register,
	DefaultRelay3Register,
	DefaultRelay4Register,
	DefaultRelay5Register,
	DefaultRelay6Register,
	DefaultRelay7Register,
	DefaultRelay8Register,
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Log.Level = "info"
	Fixup(cfg)
	return cfg
}

// LoadConfig loads configuration from file
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigWithFlags(configFile, nil)
}

// LoadConfigWithFlags loads configuration from file, then applies the
// override flags set on fs.
func LoadConfigWithFlags(configFile string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/modbuspanel/")
		v.AddConfigPath("$HOME/.modbuspanel")
		v.AddConfigPath(".")
	}

	// Set defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("serial.driver", "grid-x")
	v.SetDefault("serial.device", "/dev/ttyUSB0")
	v.SetDefault("serial.rs485", true)
	v.SetDefault("cache.type", "memory")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No file in the search path, run on defaults
	}

	if fs != nil {
		if err := bindFlags(v, fs); err != nil {
			return nil, fmt.Errorf("failed to bind pflags: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	Fixup(&config)
	if err := Validate(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Fixup fills zero values with the deployment defaults.
func Fixup(c *Config) {
	fixupSerial(&c.Serial)

	if c.Bus.SlaveID == 0 {
		c.Bus.SlaveID = DefaultSlaveID
	}
	if c.Bus.WriteTimeout == 0 {
		c.Bus.WriteTimeout = 100 * time.Millisecond
	}
	if c.Bus.ReadTimeout == 0 {
		c.Bus.ReadTimeout = 100 * time.Millisecond
	}
	if c.Bus.MultiReadTimeout == 0 {
		c.Bus.MultiReadTimeout = 500 * time.Millisecond
	}

	if len(c.Relays) == 0 {
		c.Relays = append([]uint16(nil), DefaultRelays[:]...)
	}

	if c.Registers.Test == 0 {
		c.Registers.Test = DefaultTestRegister
	}
	if c.Registers.Run == 0 {
		c.Registers.Run = DefaultRunRegister
	}
	if c.Registers.Stop == 0 {
		c.Registers.Stop = DefaultStopRegister
	}
	if c.Registers.ProgramSelect == 0 {
		c.Registers.ProgramSelect = DefaultProgramSelect
	}
	if c.Registers.TestStartCoil == 0 {
		c.Registers.TestStartCoil = DefaultTestStartCoil
	}

	if c.Scan.BaseAddress == 0 {
		c.Scan.BaseAddress = DefaultNameBase
	}
	if c.Scan.Slots == 0 {
		c.Scan.Slots = DefaultSlots
	}
	if c.Scan.RegistersPerSlot == 0 {
		c.Scan.RegistersPerSlot = 8
	}
	if c.Scan.Deadline == 0 {
		c.Scan.Deadline = 10 * time.Second
	}
	if c.Scan.MaxFailures == 0 {
		c.Scan.MaxFailures = 5
	}
	if c.Scan.Delay == 0 {
		c.Scan.Delay = 20 * time.Millisecond
	}

	c.Cache.Type = strings.ToLower(c.Cache.Type)
	if c.Cache.Type == "" {
		c.Cache.Type = "memory"
	}
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Parity == "" {
		s.Parity = "N"
	}
	if s.Driver == "" {
		s.Driver = "grid-x"
	}
	if s.BaudRate == 0 {
		s.BaudRate = 19200
	}
	if s.DataBits == 0 {
		s.DataBits = 8
	}
	if s.StopBits == 0 {
		s.StopBits = 1
	}
	if s.PollInterval == 0 {
		s.PollInterval = 10 * time.Millisecond
	}
}
