package sched

import (
	"errors"
	"fmt"
	"math"
	"os"

	yaml "github.com/goccy/go-yaml"
)

// config mirrors config.yml
type Config struct {
	TickMS         int    `yaml:"tick_ms"`          // 1 (timer2 CTC period)
	MaxTasks       int    `yaml:"max_tasks"`        // TCB slots, idle task included
	MaxStackSize   uint16 `yaml:"max_stack_size"`   // per-task cap, 100 bytes
	StackPoolBytes uint16 `yaml:"stack_pool_bytes"` // bytes shared by all task stacks
	MainStackBytes uint16 `yaml:"main_stack_bytes"` // reserved at RAMEND for the boot stack
	IdleTask       bool   `yaml:"idle_task"`        // create the idle task in Init
	IdleStackSize  uint16 `yaml:"idle_stack_size"`
	NameLen        int    `yaml:"name_len"` // task names are cut to this many bytes
	LogLevel       string `yaml:"log_level"`
	LogEncoding    string `yaml:"log_encoding"` // console or json
	TraceCSV       string `yaml:"trace_csv"`    // empty = no trace file
}

// If the config file is not found, we use default values
func defaultConfig() Config {
	return Config{
		TickMS:         1,
		MaxTasks:       8,
		MaxStackSize:   100,
		StackPoolBytes: 1024,
		MainStackBytes: 100,
		IdleTask:       true,
		IdleStackSize:  48,
		NameLen:        8,
		LogLevel:       "info",
		LogEncoding:    "console",
	}
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config { return defaultConfig() }

// Load reads YAML and overrides defaults; empty path or a missing file =
// defaults only. A file that does not parse is an error.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	// sanity clamps
	if cfg.TickMS <= 0 {
		cfg.TickMS = 1
	}
	if cfg.NameLen <= 0 {
		cfg.NameLen = 8
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogEncoding == "" {
		cfg.LogEncoding = "console"
	}

	return cfg, cfg.Validate()
}

// Validate reports settings the scheduler cannot run with.
func (c Config) Validate() error {
	if c.MaxTasks < 1 || c.MaxTasks > math.MaxUint8 {
		return fmt.Errorf("max_tasks %d out of range 1..%d", c.MaxTasks, math.MaxUint8)
	}
	if c.MaxStackSize == 0 {
		return errors.New("max_stack_size must be positive")
	}
	if c.IdleTask && c.IdleStackSize > c.MaxStackSize {
		return fmt.Errorf("idle_stack_size %d exceeds max_stack_size %d", c.IdleStackSize, c.MaxStackSize)
	}
	if c.IdleTask && c.IdleStackSize > c.StackPoolBytes {
		return fmt.Errorf("idle_stack_size %d exceeds stack_pool_bytes %d", c.IdleStackSize, c.StackPoolBytes)
	}
	return nil
}
