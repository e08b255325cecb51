package internal

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/goplus/cibuildpkg/internal/build"
	"github.com/goplus/cibuildpkg/internal/config"
	"github.com/goplus/cibuildpkg/internal/fetch"
	"github.com/goplus/cibuildpkg/internal/pack"
	"github.com/goplus/cibuildpkg/pkgs/buildsys"
)

var buildCmd = &cobra.Command{
	Use:   "build <destination>",
	Short: "Build FFmpeg and its dependencies into destination",
	Long: `Build fetches and verifies every source archive, builds the tools and
packages of the catalogue in order, installs them into destination and packs
bin, include and lib into ffmpeg-<platform>.tar.gz in the output directory.

Packages that are already installed are skipped, so an interrupted build
resumes where it stopped. Nothing is done when the output archive exists.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	f := buildCmd.Flags()
	f.String(config.KeyOutputDir, "output", "directory receiving the output archive")
	f.Bool(config.KeyStrip, true, "strip the installed shared libraries")
	f.Bool(config.KeyArchive, true, "write the output archive")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dest, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	info, tag, tools, pkgs, err := resolve()
	if err != nil {
		return err
	}
	outputDir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return err
	}
	output := pack.ArchivePath(outputDir, tag)
	if cfg.Archive && pack.Exists(output) {
		logger.Info("output archive exists, nothing to do", "archive", output)
		return nil
	}

	fetcher := fetch.New(fetch.Options{
		SourceDir: cfg.SourceDir,
		Jobs:      cfg.Jobs,
		Logger:    logger,
	})
	runner := &buildsys.ExecRunner{}
	b, err := build.NewBuilder(build.Options{
		Dest:      dest,
		BuildDir:  cfg.BuildDir,
		SourceDir: cfg.SourceDir,
		PatchDir:  cfg.PatchDir,
		Platform:  info,
		Runner:    runner,
		Verifier:  fetcher,
		Download:  fetcher.Download,
		Logger:    logger,
		Out:       cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}
	if err := b.CreateDirectories(); err != nil {
		return err
	}
	if err := fetcher.Fetch(ctx, slices.Concat(tools, pkgs)); err != nil {
		return err
	}
	if err := b.BuildAll(ctx, tools, pkgs); err != nil {
		return err
	}

	if info.OS == "windows" {
		if err := pack.FixWindowsLayout(dest, ""); err != nil {
			return fmt.Errorf("windows layout: %w", err)
		}
	}
	if cfg.Strip {
		libs, err := pack.Libraries(dest, info.OS)
		if err != nil {
			return err
		}
		if err := pack.Strip(ctx, runner, info.OS, libs); err != nil {
			return fmt.Errorf("strip: %w", err)
		}
	}
	if !cfg.Archive {
		return nil
	}
	if err := pack.Archive(dest, output, pack.Dirs...); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	logger.Info("archive written", "archive", output, "packages", len(pkgs))
	return nil
}
