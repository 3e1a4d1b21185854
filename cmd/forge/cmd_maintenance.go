package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ideforge/internal/assets"
	"ideforge/internal/config"
	"ideforge/internal/logging"
	"ideforge/internal/rebrand"
)

var (
	watchDebounce time.Duration
	historyLimit  int
)

// rebrandCmd rewrites the workspace as the test twin product
var rebrandCmd = &cobra.Command{
	Use:   "rebrand",
	Short: "Rebrand this workspace as the Mastermind IDE test twin",
	Long: `Rewrites the workspace package manifest (name, description, bundled
packages, repository), the product name in forge.yaml and the menu labels.
Running it twice is refused.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		cfgFile := configPath
		if cfgFile == "" {
			cfgFile = filepath.Join(s.ws, config.DefaultPath)
		}
		settings := s.cfg.Rebrand
		res, err := rebrand.Apply(rebrand.Options{
			ManifestPath: s.cfg.Path(s.ws, s.cfg.PackageManifest),
			ConfigPath:   cfgFile,
			MenuPath:     s.cfg.Path(s.ws, settings.MenuFile),
			Settings:     settings,
		})
		if errors.Is(err, rebrand.ErrAlreadyApplied) {
			fmt.Fprintf(cmd.OutOrStdout(), "workspace is already rebranded as %s\n", settings.TargetName)
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rebranded as %s", settings.TargetName)
		if res.Menu != nil && res.Menu.Changed {
			fmt.Fprintf(cmd.OutOrStdout(), " (menu %s updated)", settings.MenuFile)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

// watchAssetsCmd keeps the build tree's branding assets in sync
var watchAssetsCmd = &cobra.Command{
	Use:   "watch-assets",
	Short: "Copy branding assets into the build tree whenever they change",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		buildDir := s.cfg.Path(s.ws, s.cfg.BuildDir)
		if _, err := assets.Replace(s.ws, buildDir, s.cfg.Assets); err != nil {
			return err
		}
		w, err := assets.NewWatcher(s.ws, buildDir, s.cfg.Assets, watchDebounce)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "watching %d asset mappings, press Ctrl+C to stop\n", len(s.cfg.Assets))

		<-ctx.Done()
		w.Stop()
		st := w.Stats()
		logging.Assets("watch stopped: %d events, %d copies, %d errors", st.Events, st.Copied, st.Errors)
		return nil
	},
}

// historyCmd lists recorded pipeline runs
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent build runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		s.openLedger()
		if s.ledger == nil {
			return fmt.Errorf("run history is disabled")
		}
		runs, err := s.ledger.Recent(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tPLATFORM\tVERSION\tSTATE\tSTARTED\tDURATION\tERROR")
		for _, r := range runs {
			duration := "-"
			if !r.FinishedAt.IsZero() {
				duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				shortID(r.ID), r.Platform, r.Version, r.State, humanize.Time(r.StartedAt), duration, r.Error)
		}
		return tw.Flush()
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	watchAssetsCmd.Flags().DurationVar(&watchDebounce, "debounce", 200*time.Millisecond, "Delay before copying changed files")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show")
}
