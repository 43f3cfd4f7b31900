package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cru/internal/output"
)

var modelineOpts struct {
	timing timingFlags
	format string
}

var modelineCmd = &cobra.Command{
	Use:   "modeline",
	Short: "Calculate a modeline",
	Long: `Calculate the modeline for a resolution and refresh rate.

Examples:
  # Reduced blanking for a 165 Hz panel
  cru modeline -W 1280 -H 1024 -r 165 --reduced-blanking

  # CVT-RBv2 as JSON
  cru modeline -W 2560 -H 1440 -r 144 -a cvt-rbv2 --format json`,
	RunE: runModeline,
}

func init() {
	rootCmd.AddCommand(modelineCmd)

	addTimingFlags(modelineCmd, &modelineOpts.timing)
	modelineCmd.Flags().StringVarP(&modelineOpts.format, "format", "f", "text",
		"Output format (text, json, yaml)")
}

func runModeline(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(modelineOpts.format)
	if err != nil {
		return err
	}
	req, err := modelineOpts.timing.request(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m, err := newCalculator().Calculate(ctx, req)
	if err != nil {
		return err
	}
	return output.NewFormatter(format).Format(os.Stdout, output.NewModelineView(req, m))
}
