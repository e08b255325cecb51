package internal

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/goplus/cibuildpkg/internal/catalog"
	"github.com/goplus/cibuildpkg/internal/config"
	"github.com/goplus/cibuildpkg/internal/platform"
	"github.com/goplus/cibuildpkg/internal/report"
	"github.com/goplus/cibuildpkg/pkgs/spec"
)

var (
	configFile string

	// set by PersistentPreRunE
	cfg    *config.Config
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cibuildpkg",
	Short: "cibuildpkg builds FFmpeg and its native dependencies",
	Long: `cibuildpkg downloads, verifies and builds FFmpeg together with the codec
libraries it links to, and packs the result into one archive per platform.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&configFile, "config", "", "config file (default $XDG_CONFIG_HOME/cibuildpkg/config.yaml)")
	f.String(config.KeyLogLevel, "info", "log level: debug, info, warn or error")
	f.String(config.KeyCatalog, "", "package catalogue (default: the embedded one)")
	f.Bool(config.KeyCommunity, false, "build the community variant")
	f.Bool(config.KeyAllowDowngrade, false, "accept a catalogue that builds older releases than the embedded one")
	f.Int(config.KeyJobs, 0, "concurrent downloads (default: number of CPUs)")
	f.String(config.KeySourceDir, "source", "source archive cache")
	f.String(config.KeyBuildDir, "build", "scratch directory for extracted sources")
	f.String(config.KeyPatchDir, "patches", "directory holding <package>.patch files")
}

func setup(cmd *cobra.Command, args []string) error {
	v := config.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	c, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	logger = log.NewWithOptions(os.Stderr, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		Prefix:          "cibuildpkg",
	})
	if c.File != "" {
		logger.Debug("config loaded", "file", c.File)
	}
	cfg = c
	return nil
}

// resolve detects the host and returns its platform tag together with the
// tools and packages of the configured catalogue.
func resolve() (info platform.Info, tag string, tools, pkgs []spec.Spec, err error) {
	info, err = platform.Detect()
	if err != nil {
		return
	}
	if tag, err = info.Tag(); err != nil {
		return
	}
	c, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return
	}
	t := catalog.Target{Platform: info, Variant: spec.Commercial}
	if cfg.Community {
		t.Variant = spec.Community
	}
	if tools, pkgs, err = c.Resolve(t); err != nil {
		return
	}
	if cfg.Catalog != "" {
		err = checkDowngrades(t, slices.Concat(tools, pkgs))
	}
	return
}

// checkDowngrades rejects a catalogue that builds an older release of any
// package than the embedded catalogue, unless downgrades are allowed.
func checkDowngrades(t catalog.Target, specs []spec.Spec) error {
	def, err := catalog.Default()
	if err != nil {
		return err
	}
	tools, pkgs, err := def.Resolve(t)
	if err != nil {
		return err
	}
	downgrades := report.Downgrades(slices.Concat(tools, pkgs), specs)
	if len(downgrades) == 0 {
		return nil
	}
	for _, d := range downgrades {
		logger.Warn("downgrade", "package", d.Name, "from", d.From, "to", d.To)
	}
	if cfg.AllowDowngrade {
		return nil
	}
	return fmt.Errorf("catalogue %s downgrades %d package(s), first %s; pass --allow-downgrade to build anyway",
		cfg.Catalog, len(downgrades), downgrades[0])
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if logger != nil {
			logger.Error(err.Error())
		} else {
			log.Error(err.Error())
		}
		os.Exit(1)
	}
}
