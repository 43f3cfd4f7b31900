package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cru/internal/model"
	"github.com/jmylchreest/cru/internal/output"
	"github.com/jmylchreest/cru/internal/session"
)

var generateOpts struct {
	timing  timingFlags
	display string
	backend string
	force   bool
	format  string
	outDir  string
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render configuration without installing it",
	Long: `Render the configuration bundle for a mode without touching the system.

The bundle is rendered for the detected display backend unless --backend
selects another one. With --out, each file is written into the directory
instead of printed.

Examples:
  # Preview the xorg.conf fragment for a 144 Hz mode
  cru generate -W 2560 -H 1440 -r 144 --backend x11

  # Write the Sway snippet and kernel module line to ./out
  cru generate -W 1920 -H 1080 -r 75 --backend sway --out ./out`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	addTimingFlags(generateCmd, &generateOpts.timing)
	generateCmd.Flags().StringVarP(&generateOpts.display, "display", "d", "",
		"Output name (default: config or first detected output)")
	generateCmd.Flags().StringVar(&generateOpts.backend, "backend", "",
		"Render for this backend instead of the detected one (x11, sway, hyprland, kde, gnome)")
	generateCmd.Flags().BoolVar(&generateOpts.force, "force", false,
		"Add the X11 mode-validation and EDID overrides (default from config)")
	generateCmd.Flags().StringVarP(&generateOpts.format, "format", "f", "text",
		"Output format (text, json, yaml)")
	generateCmd.Flags().StringVarP(&generateOpts.outDir, "out", "o", "",
		"Write rendered files into this directory")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(generateOpts.format)
	if err != nil {
		return err
	}
	req, err := generateOpts.timing.request(cmd)
	if err != nil {
		return err
	}
	backend, err := parseBackend(generateOpts.backend)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := newApp(ctx, appOptions{
		backend: backend,
		request: req,
		display: generateOpts.display,
		force:   forceEnable(cmd, generateOpts.force),
	})
	if err != nil {
		return err
	}
	defer a.Close()

	p := a.ctrl.Preview(ctx)
	if err := previewError(p); err != nil {
		return err
	}
	if p.Err != nil {
		logger.Warn("configuration is not applicable", "error", p.Err)
	}

	if generateOpts.outDir != "" {
		written, err := output.WriteBundle(generateOpts.outDir, p.Bundle)
		if err != nil {
			return err
		}
		for _, path := range written {
			fmt.Println(path)
		}
		return nil
	}
	return output.NewFormatter(format).Format(os.Stdout, p.Bundle)
}

// previewError returns the preview failure unless it is an unsupported
// backend, which still yields a placeholder bundle worth showing.
func previewError(p session.Preview) error {
	var rerr *model.RenderError
	if p.Err == nil || errors.As(p.Err, &rerr) {
		return nil
	}
	return p.Err
}
