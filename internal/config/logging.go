package config

import (
	"path/filepath"

	"ideforge/internal/logging"
)

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`                // debug, info, warn, error
	File       string          `yaml:"file"`                 // JSON log file under .forge/logs; empty disables
	Categories map[string]bool `yaml:"categories,omitempty"` // Per-category toggles
}

// Options converts the config into logging options, resolving File
// relative to the workspace log directory.
func (c LoggingConfig) Options(workspace string) logging.Options {
	file := c.File
	if file != "" && !filepath.IsAbs(file) {
		file = filepath.Join(workspace, ".forge", "logs", file)
	}
	return logging.Options{
		Level:      c.Level,
		File:       file,
		Categories: c.Categories,
	}
}
