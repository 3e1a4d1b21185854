// Command forge builds the branded IDE from an upstream Atom release.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"ideforge/internal/builder"
	"ideforge/internal/logging"
)

var (
	// Global flags
	verbose      bool
	configPath   string
	workspace    string
	platformFlag string

	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "forge - build the Learn IDE from an upstream Atom release",
	Long: `forge downloads a pinned Atom release, rebrands it (bundled packages,
icons, product strings) and runs Atom's own build script to produce the
platform installers.

Run "forge build" for the full pipeline or any task on its own for debugging.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.DisableStacktrace = true
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return logging.Initialize(logger, logging.Options{})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/forge.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVarP(&platformFlag, "platform", "p", "", "Target platform: windows, darwin or linux (default: config, then host)")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(buildCmd)
	for _, cmd := range taskCommands() {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(rebrandCmd)
	rootCmd.AddCommand(watchAssetsCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		code := reportError(os.Stderr, err)
		logging.CloseAll()
		os.Exit(code)
	}
}

// reportError prints err and returns the process exit code. A failed
// build script also prints its captured output and passes its exit code on.
func reportError(w io.Writer, err error) int {
	fmt.Fprintln(w, "Error:", err)

	var bf *builder.BuildFailedError
	if errors.As(err, &bf) {
		if bf.Output != "" {
			fmt.Fprintln(w, "--- build output (tail) ---")
			fmt.Fprintln(w, bf.Output)
		}
		if bf.ExitCode > 0 {
			return bf.ExitCode
		}
	}
	return 1
}
