package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cru/internal/output"
)

var currentOpts struct {
	display string
	format  string
}

var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the mode a display is running at",
	Long: `Query the display backend for the active mode of an output.

Examples:
  cru current
  cru current --display DP-1 --format json`,
	RunE: runCurrent,
}

func init() {
	rootCmd.AddCommand(currentCmd)

	currentCmd.Flags().StringVarP(&currentOpts.display, "display", "d", "",
		"Output name (default: config or first detected output)")
	currentCmd.Flags().StringVarP(&currentOpts.format, "format", "f", "text",
		"Output format (text, json, yaml)")
}

func runCurrent(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(currentOpts.format)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	backend := detectBackend()
	prober := newProber(backend)

	display := currentOpts.display
	if display == "" {
		display = cfg.Defaults.Display
	}
	if display == "" {
		displays, err := prober.Enumerate(ctx, backend)
		if err != nil {
			return err
		}
		if len(displays) == 0 {
			return errors.New("no active displays found")
		}
		display = displays[0]
	}

	mode, err := prober.CurrentMode(ctx, backend, display)
	if err != nil {
		return err
	}
	return output.NewFormatter(format).Format(os.Stdout, mode)
}
