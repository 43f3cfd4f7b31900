package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/cru/internal/journal"
	"github.com/jmylchreest/cru/internal/model"
)

// TextFormatter formats values for humans.
type TextFormatter struct{}

// NewTextFormatter creates a new text formatter.
func NewTextFormatter() *TextFormatter {
	return &TextFormatter{}
}

// Format writes v as text. Unknown types are printed with %v.
func (f *TextFormatter) Format(w io.Writer, v any) error {
	var sb strings.Builder

	switch v := v.(type) {
	case model.ConfigBundle:
		writeBundle(&sb, v)
	case *model.ConfigBundle:
		writeBundle(&sb, *v)
	case ModelineView:
		fmt.Fprintf(&sb, "Mode:      %s\n", v.ModeName)
		fmt.Fprintf(&sb, "Algorithm: %s (%s)\n", v.Algorithm, v.Modeline.Origin)
		fmt.Fprintf(&sb, "Modeline:  \"%s\" %s\n", v.ModeName, v.Line)
	case Detection:
		fmt.Fprintf(&sb, "Backend:  %s\n", v.Name)
		fmt.Fprintf(&sb, "Displays: %s\n", strings.Join(v.Displays, ", "))
	case model.CurrentMode:
		fmt.Fprintf(&sb, "%s: %dx%d @ %s Hz\n", v.Display, v.Width, v.Height, model.FormatRefresh(v.Refresh))
	case model.InstallResult:
		status := "FAILED"
		switch {
		case v.Success:
			status = "OK"
		case v.PartialInstallDetected:
			status = "PARTIAL"
		}
		fmt.Fprintf(&sb, "[%s] %s\n", status, v.Message)
	case []journal.Record:
		writeRecords(&sb, v)
	default:
		fmt.Fprintf(&sb, "%v\n", v)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeBundle(sb *strings.Builder, b model.ConfigBundle) {
	for _, e := range b.Entries {
		switch {
		case e.Destination == "":
			fmt.Fprintf(sb, "# --- %s (not installable) ---\n", e.Role)
		case e.Primary:
			fmt.Fprintf(sb, "# --- %s -> %s (primary) ---\n", e.Role, e.Destination)
		default:
			fmt.Fprintf(sb, "# --- %s -> %s ---\n", e.Role, e.Destination)
		}
		sb.WriteString(e.Content)
		if !strings.HasSuffix(e.Content, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	if len(b.PostInstall) > 0 {
		fmt.Fprintf(sb, "# post-install: %s\n", strings.Join(b.PostInstall, ", "))
	}
	if b.Notice != "" {
		fmt.Fprintf(sb, "# note: %s\n", b.Notice)
	}
}

func writeRecords(sb *strings.Builder, records []journal.Record) {
	if len(records) == 0 {
		sb.WriteString("No apply history.\n")
		return
	}
	for i, r := range records {
		fmt.Fprintf(sb, "[%d] %-17s %s", i+1, r.Outcome, r.Backend)
		if r.Display != "" {
			fmt.Fprintf(sb, " %s", r.Display)
		}
		if r.ModeName != "" {
			fmt.Fprintf(sb, " %s", r.ModeName)
		}
		fmt.Fprintf(sb, " (%s)\n", RelativeTime(r.Timestamp))
		if r.Message != "" {
			fmt.Fprintf(sb, "    %s\n", r.Message)
		}
	}
}

// RelativeTime formats a Unix timestamp relative to now.
func RelativeTime(timestamp int64) string {
	if timestamp == 0 {
		return "unknown"
	}
	return humanize.Time(time.Unix(timestamp, 0))
}
