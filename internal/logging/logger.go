// Package logging provides categorized zap loggers for ideforge.
// Each category is a named child of the process logger. Until Initialize is
// called every category is a no-op, so library code can log unconditionally.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Startup, flag and env resolution
	CategoryConfig   Category = "config"   // forge.yaml, .env, local manifest
	CategoryFetch    Category = "fetch"    // Archive download and extraction
	CategoryManifest Category = "manifest" // package.json rewrites
	CategoryAssets   Category = "assets"   // Branding asset copies and watch
	CategoryPatch    Category = "patch"    // Text substitution rules
	CategoryBuilder  Category = "builder"  // External build script
	CategoryFinalize Category = "finalize" // Installer rename and signing
	CategoryPipeline Category = "pipeline" // Task sequencing and run state
	CategoryLedger   Category = "ledger"   // Run history database
	CategoryRebrand  Category = "rebrand"  // Self re-brand maintenance task
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level      string
	File       string
	Categories map[string]bool
}

var (
	mu        sync.RWMutex
	root      = zap.NewNop()
	options   Options
	loggers   = make(map[Category]*zap.SugaredLogger)
	closeFile func()
)

// Initialize installs base as the process logger. When opts.File is set a
// JSON file core is teed next to base's own core.
func Initialize(base *zap.Logger, opts Options) error {
	if base == nil {
		return fmt.Errorf("base logger required")
	}

	logger := base
	var closer func()
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
		sink, closeFn, err := zap.Open(opts.File)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			sink,
			parseLevel(opts.Level),
		)
		logger = base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
		closer = closeFn
	}

	mu.Lock()
	if closeFile != nil {
		closeFile()
	}
	root = logger
	options = opts
	closeFile = closer
	loggers = make(map[Category]*zap.SugaredLogger)
	mu.Unlock()

	BootDebug("logging initialized (file=%q, level=%q)", opts.File, opts.Level)
	return nil
}

// Replace swaps the process logger and returns a func restoring the previous one.
func Replace(l *zap.Logger) func() {
	mu.Lock()
	prevRoot, prevOpts := root, options
	root = l
	options = Options{}
	loggers = make(map[Category]*zap.SugaredLogger)
	mu.Unlock()

	return func() {
		mu.Lock()
		root, options = prevRoot, prevOpts
		loggers = make(map[Category]*zap.SugaredLogger)
		mu.Unlock()
	}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// IsCategoryEnabled reports whether a category is switched on.
// Categories not listed in the config are enabled.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if options.Categories == nil {
		return true
	}
	enabled, ok := options.Categories[string(category)]
	return !ok || enabled
}

var nop = zap.NewNop().Sugar()

// Get returns (or creates) the logger for the given category.
func Get(category Category) *zap.SugaredLogger {
	if !IsCategoryEnabled(category) {
		return nop
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := root.Named(string(category)).Sugar()
	loggers[category] = l
	return l
}

// Sync flushes buffered entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}

// CloseAll flushes and closes the log file (call at shutdown)
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	_ = root.Sync()
	if closeFile != nil {
		closeFile()
		closeFile = nil
	}
	root = zap.NewNop()
	loggers = make(map[Category]*zap.SugaredLogger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Infof(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debugf(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warnf(format, args...) }

func Config(format string, args ...interface{})     { Get(CategoryConfig).Infof(format, args...) }
func ConfigWarn(format string, args ...interface{}) { Get(CategoryConfig).Warnf(format, args...) }

func Fetch(format string, args ...interface{})      { Get(CategoryFetch).Infof(format, args...) }
func FetchDebug(format string, args ...interface{}) { Get(CategoryFetch).Debugf(format, args...) }
func FetchWarn(format string, args ...interface{})  { Get(CategoryFetch).Warnf(format, args...) }

func Manifest(format string, args ...interface{})      { Get(CategoryManifest).Infof(format, args...) }
func ManifestDebug(format string, args ...interface{}) { Get(CategoryManifest).Debugf(format, args...) }

func Assets(format string, args ...interface{})      { Get(CategoryAssets).Infof(format, args...) }
func AssetsDebug(format string, args ...interface{}) { Get(CategoryAssets).Debugf(format, args...) }
func AssetsWarn(format string, args ...interface{})  { Get(CategoryAssets).Warnf(format, args...) }

func Patch(format string, args ...interface{})      { Get(CategoryPatch).Infof(format, args...) }
func PatchDebug(format string, args ...interface{}) { Get(CategoryPatch).Debugf(format, args...) }
func PatchWarn(format string, args ...interface{})  { Get(CategoryPatch).Warnf(format, args...) }

func Builder(format string, args ...interface{})      { Get(CategoryBuilder).Infof(format, args...) }
func BuilderDebug(format string, args ...interface{}) { Get(CategoryBuilder).Debugf(format, args...) }
func BuilderError(format string, args ...interface{}) { Get(CategoryBuilder).Errorf(format, args...) }
func BuilderWarn(format string, args ...interface{})  { Get(CategoryBuilder).Warnf(format, args...) }

func Finalize(format string, args ...interface{})      { Get(CategoryFinalize).Infof(format, args...) }
func FinalizeWarn(format string, args ...interface{})  { Get(CategoryFinalize).Warnf(format, args...) }
func FinalizeError(format string, args ...interface{}) { Get(CategoryFinalize).Errorf(format, args...) }

func Pipeline(format string, args ...interface{})      { Get(CategoryPipeline).Infof(format, args...) }
func PipelineDebug(format string, args ...interface{}) { Get(CategoryPipeline).Debugf(format, args...) }
func PipelineError(format string, args ...interface{}) { Get(CategoryPipeline).Errorf(format, args...) }

func Ledger(format string, args ...interface{})     { Get(CategoryLedger).Infof(format, args...) }
func LedgerWarn(format string, args ...interface{}) { Get(CategoryLedger).Warnf(format, args...) }

func Rebrand(format string, args ...interface{})     { Get(CategoryRebrand).Infof(format, args...) }
func RebrandWarn(format string, args ...interface{}) { Get(CategoryRebrand).Warnf(format, args...) }

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debugf("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Infof("%s completed in %v", t.op, elapsed)
	return elapsed
}
