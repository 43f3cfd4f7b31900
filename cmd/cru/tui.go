package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cru/internal/tui"
)

var tuiOpts struct {
	display string
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive mode editor",
	Long: `Launch the interactive terminal user interface.

The TUI provides:
  - Width, height and refresh fields, committed on enter/tab
  - Algorithm, reduced-blanking and force-enable toggles
  - Live preview of the rendered configuration
  - Apply with privilege escalation
  - Display manager restart after confirmation

Key bindings:
  tab/shift+tab  Commit field and move
  enter          Commit field
  m              Cycle algorithm
  b              Toggle reduced blanking
  f              Toggle force enable
  o              Cycle display
  a              Apply
  R              Restart display manager (after a successful apply)
  c              Copy modeline to clipboard
  ?              Show help
  q              Quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)

	tuiCmd.Flags().StringVarP(&tuiOpts.display, "display", "d", "",
		"Initial display (default: config or first detected output)")
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	a, err := newApp(ctx, appOptions{
		request: cfg.TimingRequest(),
		display: tuiOpts.display,
		force:   cfg.Defaults.ForceEnable,
		journal: true,
	})
	cancel()
	if err != nil {
		return err
	}
	defer a.Close()

	return tui.Run(cfg, a.ctrl)
}
