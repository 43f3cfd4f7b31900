package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cru/internal/output"
)

var detectOpts struct {
	format string
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Show the display backend and connected outputs",
	Long: `Detect the running display stack and list its active outputs.

When the output query fails, a single placeholder output is listed so a
mode can still be generated.

Examples:
  cru detect
  cru detect --format json`,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringVarP(&detectOpts.format, "format", "f", "text",
		"Output format (text, json, yaml)")
}

func runDetect(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(detectOpts.format)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	backend := detectBackend()
	displays := newProber(backend).ListDisplays(ctx, backend)
	return output.NewFormatter(format).Format(os.Stdout, output.NewDetection(backend, displays))
}
