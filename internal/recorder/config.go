package recorder

import (
	"fmt"
)

const (
	defaultQueueSize  = 4096
	defaultMaxSizeMB  = 64
	defaultMaxBackups = 5
	defaultMaxAgeDays = 14
)

// Config controls the JSONL file sink and its rotation.
type Config struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	QueueSize  int
}

// DefaultConfig returns a baseline configuration writing to file.
func DefaultConfig(file string) Config {
	return Config{
		File:       file,
		MaxSizeMB:  defaultMaxSizeMB,
		MaxBackups: defaultMaxBackups,
		MaxAgeDays: defaultMaxAgeDays,
		QueueSize:  defaultQueueSize,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = defaultMaxSizeMB
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = defaultMaxBackups
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = defaultMaxAgeDays
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	return c
}

// Validate checks if the configuration is usable.
func (c Config) Validate() error {
	if c.File == "" {
		return fmt.Errorf("invalid recorder config: File is empty")
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("invalid recorder config: rotation limits must be >= 0")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("invalid recorder config: QueueSize must be > 0")
	}
	return nil
}
