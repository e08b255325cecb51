package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goplus/cibuildpkg/internal/report"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the packages built for this platform",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	_, tag, _, pkgs, err := resolve()
	if err != nil {
		return err
	}
	ffmpeg := "unknown"
	for _, s := range pkgs {
		if s.Name == "ffmpeg" {
			ffmpeg = report.Version(s.SourceURL)
		}
	}
	title := fmt.Sprintf("Currently FFmpeg %s is built with the following packages enabled on %s:", ffmpeg, tag)
	return report.Write(cmd.OutOrStdout(), title, pkgs)
}
