package journal

import (
	"cmp"
	"slices"
	"time"

	"github.com/jmylchreest/cru/internal/model"
)

// FilterOptions selects journal records.
type FilterOptions struct {
	Since   time.Duration     // Only records newer than now-Since (0=all)
	Outcome model.OutcomeKind // Exact outcome match (empty=any)
	Display string            // Exact display match (empty=any)
	Limit   int               // Maximum results (0=unlimited)
}

// Filter returns matching records, newest first.
func Filter(records []Record, opts FilterOptions) []Record {
	now := time.Now()
	result := make([]Record, 0, len(records))

	for _, r := range records {
		if opts.Since > 0 && r.Time().Before(now.Add(-opts.Since)) {
			continue
		}
		if opts.Outcome != "" && r.Outcome != opts.Outcome {
			continue
		}
		if opts.Display != "" && r.Display != opts.Display {
			continue
		}
		result = append(result, r)
	}

	// ULIDs sort by creation time, which breaks ties within one second.
	slices.SortStableFunc(result, func(a, b Record) int {
		if c := cmp.Compare(b.Timestamp, a.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result
}
