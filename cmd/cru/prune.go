package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cru/internal/config"
	"github.com/jmylchreest/cru/internal/journal"
)

var pruneOpts struct {
	olderThan string
	dryRun    bool
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old attempts from the apply journal",
	Long: `Remove old attempts from the apply journal.

Without --older-than, the [history] retention from the config is used.

Examples:
  # Remove attempts older than 7 days
  cru prune --older-than 7d

  # Preview what would be removed (dry run)
  cru prune --older-than 48h --dry-run`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().StringVar(&pruneOpts.olderThan, "older-than", "",
		"Remove attempts older than this duration (e.g., 48h, 7d)")
	pruneCmd.Flags().BoolVar(&pruneOpts.dryRun, "dry-run", false,
		"Show what would be removed without actually removing")
}

func runPrune(cmd *cobra.Command, args []string) error {
	maxAge := cfg.History.Retention.Duration()
	if pruneOpts.olderThan != "" {
		var d config.Duration
		if err := d.UnmarshalText([]byte(pruneOpts.olderThan)); err != nil {
			return err
		}
		maxAge = d.Duration()
	}
	if maxAge <= 0 {
		return fmt.Errorf("specify --older-than or set [history] retention")
	}

	path := config.JournalPath()
	if pruneOpts.dryRun {
		records, err := journal.ReadFile(path)
		if err != nil {
			return err
		}
		cutoff := time.Now().Add(-maxAge)
		count := 0
		for _, r := range records {
			if r.Time().Before(cutoff) {
				count++
			}
		}
		fmt.Printf("Would remove %d of %d attempts\n", count, len(records))
		return nil
	}

	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	removed, err := j.Prune(maxAge)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d attempts\n", removed)
	return nil
}
