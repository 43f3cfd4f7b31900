package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cru/internal/output"
)

var applyOpts struct {
	timing  timingFlags
	display string
	force   bool
	dryRun  bool
	restart bool
	yes     bool
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Install the configuration for a mode",
	Long: `Render the configuration for the detected display backend and install
it with elevated privileges (pkexec, gksudo, kdesu or beesu).

Files are staged in a private temporary directory and copied into place by
a helper script, which also rebuilds the initramfs when a supported tool is
present. If the helper fails after writing the main file, the apply is
reported as partially applied.

Examples:
  # Install a 165 Hz reduced-blanking mode
  cru apply -W 1280 -H 1024 -r 165 --reduced-blanking

  # Show the helper script and files without running anything
  cru apply -W 1920 -H 1080 -r 75 --dry-run

  # Apply, then restart the display manager after confirmation
  cru apply -W 2560 -H 1440 -r 144 --restart`,
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)

	addTimingFlags(applyCmd, &applyOpts.timing)
	applyCmd.Flags().StringVarP(&applyOpts.display, "display", "d", "",
		"Output name (default: config or first detected output)")
	applyCmd.Flags().BoolVar(&applyOpts.force, "force", false,
		"Add the X11 mode-validation and EDID overrides (default from config)")
	applyCmd.Flags().BoolVar(&applyOpts.dryRun, "dry-run", false,
		"Print the helper script and bundle without installing")
	applyCmd.Flags().BoolVar(&applyOpts.restart, "restart", false,
		"Offer to restart the display manager after a successful apply")
	applyCmd.Flags().BoolVarP(&applyOpts.yes, "yes", "y", false,
		"Do not ask before restarting the display manager")
}

func runApply(cmd *cobra.Command, args []string) error {
	req, err := applyOpts.timing.request(cmd)
	if err != nil {
		return err
	}

	// Apply waits on authentication, so only enumeration is bounded.
	probeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	a, err := newApp(probeCtx, appOptions{
		request: req,
		display: applyOpts.display,
		force:   forceEnable(cmd, applyOpts.force),
		journal: !applyOpts.dryRun,
	})
	cancel()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()

	if applyOpts.dryRun {
		p := a.ctrl.Preview(ctx)
		if p.Err != nil {
			return p.Err
		}
		script, err := a.installer.Plan(p.Bundle)
		if err != nil {
			return err
		}
		fmt.Println("# --- helper script ---")
		fmt.Print(script.Render())
		fmt.Println()
		return output.NewTextFormatter().Format(os.Stdout, p.Bundle)
	}

	out := a.ctrl.Apply(ctx)
	if out.Result.Message != "" {
		if err := output.NewTextFormatter().Format(os.Stdout, out.Result); err != nil {
			return err
		}
	}
	if !out.Kind.Succeeded() {
		return outcomeError(out)
	}
	if out.Preview.Bundle.Notice != "" {
		fmt.Println(out.Preview.Bundle.Notice)
	}

	if !applyOpts.restart {
		return nil
	}
	if !applyOpts.yes && !confirm(os.Stdin, os.Stdout, "Restart the display manager now? This ends your session.") {
		fmt.Println("Restart skipped.")
		return nil
	}
	return reportRestart(a.ctrl.RestartDisplayManager(ctx))
}
