package internal

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/goplus/cibuildpkg/internal/fetch"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and verify the source archives",
	Long: `Fetch populates the source cache with the archive of every tool and
package of the catalogue and checks their sha256 digests. Cached archives are
not downloaded again.`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	_, _, tools, pkgs, err := resolve()
	if err != nil {
		return err
	}
	f := fetch.New(fetch.Options{
		SourceDir: cfg.SourceDir,
		Jobs:      cfg.Jobs,
		Logger:    logger,
	})
	all := slices.Concat(tools, pkgs)
	if err := f.Fetch(cmd.Context(), all); err != nil {
		return err
	}
	logger.Info("source archives verified", "count", len(all), "dir", cfg.SourceDir)
	return nil
}
