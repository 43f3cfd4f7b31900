package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cru/internal/session"
)

var restartOpts struct {
	yes bool
}

var restartCmd = &cobra.Command{
	Use:   "restart-dm",
	Short: "Restart the display manager",
	Long: `Restart the display manager with elevated privileges so a new X11
configuration takes effect.

This ends the graphical session and closes every open application. You are
asked to confirm unless --yes is given.`,
	RunE: runRestart,
}

func init() {
	rootCmd.AddCommand(restartCmd)

	restartCmd.Flags().BoolVarP(&restartOpts.yes, "yes", "y", false,
		"Do not ask for confirmation")
}

func runRestart(cmd *cobra.Command, args []string) error {
	if !restartOpts.yes && !confirm(os.Stdin, os.Stdout, "Restart the display manager now? This ends your session.") {
		fmt.Println("Restart skipped.")
		return nil
	}

	ctx := context.Background()
	a, err := newApp(ctx, appOptions{request: cfg.TimingRequest(), journal: true})
	if err != nil {
		return err
	}
	defer a.Close()

	return reportRestart(a.ctrl.RestartDisplayManager(ctx))
}

func reportRestart(out session.Outcome) error {
	if !out.Kind.Succeeded() {
		return outcomeError(out)
	}
	fmt.Println(out.Message)
	return nil
}

// outcomeError converts a failed outcome into the command's error.
func outcomeError(out session.Outcome) error {
	if out.Err != nil {
		return fmt.Errorf("%s: %w", out.Kind, out.Err)
	}
	return errors.New(string(out.Kind) + ": " + out.Message)
}
