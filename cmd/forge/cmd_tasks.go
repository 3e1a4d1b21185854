package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ideforge/internal/logging"
	"ideforge/internal/pipeline"
)

// setupCmd copies .env.example to .env
var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the workspace .env from .env.example",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()
		return pipeline.SetupEnv(s.cfg, s.ws)
	},
}

// buildCmd runs the full pipeline
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Reset, download, patch, build and finalize",
	Args:  cobra.NoArgs,
	RunE:  runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	s.openLedger()

	p, err := s.pipeline(pipeline.WithOutput(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	run, err := p.Build(ctx)
	if err != nil {
		return fmt.Errorf("run %s failed while %s: %w", run.ID, run.FailedIn, err)
	}
	logging.Boot("run %s finished in %s", run.ID, run.FinishedAt.Sub(run.StartedAt))
	return nil
}

// taskCommands returns one command per single pipeline task.
func taskCommands() []*cobra.Command {
	tasks := []struct {
		name  string
		short string
	}{
		{pipeline.TaskReset, "Empty the build directory (keeps .gitkeep)"},
		{pipeline.TaskDownload, "Download and extract the upstream archive"},
		{pipeline.TaskPrepBuild, "Run inject-packages, replace-files, alter-files and update-package-json"},
		{pipeline.TaskInjectPackages, "Swap bundled packages in the build manifest"},
		{pipeline.TaskReplaceFiles, "Copy branding assets into the build tree"},
		{pipeline.TaskAlterFiles, "Apply the branding text substitutions"},
		{pipeline.TaskUpdatePackageJSON, "Write product name and version into the build manifest"},
		{pipeline.TaskBuildAtom, "Run the upstream build script"},
		{pipeline.TaskCleanup, "Run the platform finalize step"},
		{pipeline.TaskRenameInstaller, "Rename the generated Windows installer"},
		{pipeline.TaskSignInstaller, "Sign the Windows installer"},
	}

	cmds := make([]*cobra.Command, 0, len(tasks))
	for _, t := range tasks {
		name := t.name
		c := &cobra.Command{
			Use:   name,
			Short: t.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTask(cmd, name)
			},
		}
		if name == pipeline.TaskAlterFiles {
			c.Flags().Bool("dry-run", false, "Print the substitutions as a diff without writing")
			c.RunE = runAlterFiles
		}
		cmds = append(cmds, c)
	}
	return cmds
}

func runAlterFiles(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if !dryRun {
		return runTask(cmd, pipeline.TaskAlterFiles)
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := s.pipeline(pipeline.WithOutput(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	changed, err := p.PreviewAlterFiles(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d files would change\n", changed)
	return nil
}

func runTask(cmd *cobra.Command, name string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	p, err := s.pipeline(pipeline.WithOutput(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	timer := logging.StartTimer(logging.CategoryPipeline, name)
	defer timer.StopWithInfo()
	return p.RunTask(ctx, name)
}
