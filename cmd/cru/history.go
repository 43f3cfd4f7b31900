package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cru/internal/config"
	"github.com/jmylchreest/cru/internal/journal"
	"github.com/jmylchreest/cru/internal/model"
	"github.com/jmylchreest/cru/internal/output"
)

var historyOpts struct {
	since   string
	outcome string
	display string
	limit   int
	format  string
	follow  bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past apply attempts",
	Long: `List the apply journal, newest first.

Examples:
  # Everything from the last day
  cru history --since 24h

  # Only failed attempts as JSON
  cru history --outcome failed --format json

  # Keep printing as new attempts are recorded
  cru history --follow`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyOpts.since, "since", "",
		"Only attempts newer than this duration (e.g., 48h, 7d)")
	historyCmd.Flags().StringVar(&historyOpts.outcome, "outcome", "",
		"Only attempts with this outcome (applied, partial, failed, escalation-failed, ...)")
	historyCmd.Flags().StringVarP(&historyOpts.display, "display", "d", "",
		"Only attempts for this display")
	historyCmd.Flags().IntVarP(&historyOpts.limit, "limit", "n", 0,
		"Maximum number of attempts (0=unlimited)")
	historyCmd.Flags().StringVarP(&historyOpts.format, "format", "f", "text",
		"Output format (text, json, yaml)")
	historyCmd.Flags().BoolVar(&historyOpts.follow, "follow", false,
		"Watch the journal and print it again whenever it changes")
}

func historyFilter() (journal.FilterOptions, error) {
	opts := journal.FilterOptions{
		Display: historyOpts.display,
		Limit:   historyOpts.limit,
	}
	if historyOpts.since != "" {
		var d config.Duration
		if err := d.UnmarshalText([]byte(historyOpts.since)); err != nil {
			return opts, err
		}
		opts.Since = d.Duration()
	}
	if historyOpts.outcome != "" {
		kind := model.OutcomeKind(historyOpts.outcome)
		if !slices.Contains(model.OutcomeKinds, kind) {
			return opts, fmt.Errorf("unknown outcome %q", historyOpts.outcome)
		}
		opts.Outcome = kind
	}
	return opts, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(historyOpts.format)
	if err != nil {
		return err
	}
	filter, err := historyFilter()
	if err != nil {
		return err
	}
	formatter := output.NewFormatter(format)
	path := config.JournalPath()

	records, err := journal.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if err := formatter.Format(os.Stdout, journal.Filter(records, filter)); err != nil {
		return err
	}
	if !historyOpts.follow {
		return nil
	}

	if err := config.EnsureDataDir(); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	watcher, err := journal.NewWatcher(path, func(records []journal.Record) {
		fmt.Println()
		if err := formatter.Format(os.Stdout, journal.Filter(records, filter)); err != nil {
			logger.Warn("failed to print history", "error", err)
		}
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create journal watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to start journal watcher: %w", err)
	}
	defer watcher.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}
