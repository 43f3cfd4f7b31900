package probe

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmylchreest/cru/internal/model"
)

// ParseXrandrOutputs returns the connected outputs listed by `xrandr -q`.
// Mode lines and "disconnected" outputs are skipped.
func ParseXrandrOutputs(data []byte) []string {
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, " connected ") || strings.HasPrefix(line, "+") {
			continue
		}
		if fields := strings.Fields(line); len(fields) > 0 {
			names = append(names, fields[0])
		}
	}
	return names
}

// ParseXrandrCurrentMode finds the mode marked '*' under display in
// `xrandr -q` output.
func ParseXrandrCurrentMode(data []byte, display string) (model.CurrentMode, error) {
	inDisplay := false
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()

		// Output headers start in column 0, mode lines are indented.
		if line != "" && line[0] != ' ' && line[0] != '\t' {
			fields := strings.Fields(line)
			inDisplay = len(fields) > 1 && fields[0] == display && fields[1] == "connected"
			continue
		}
		if !inDisplay || !strings.Contains(line, "*") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		w, h, err := parseResolution(fields[0])
		if err != nil {
			return model.CurrentMode{}, err
		}
		for _, f := range fields[1:] {
			if !strings.Contains(f, "*") {
				continue
			}
			refresh, err := strconv.ParseFloat(strings.TrimRight(f, "*+"), 64)
			if err != nil {
				return model.CurrentMode{}, fmt.Errorf("invalid refresh %q: %w", f, err)
			}
			return model.CurrentMode{Width: w, Height: h, Refresh: refresh}, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return model.CurrentMode{}, err
	}
	return model.CurrentMode{}, fmt.Errorf("no active mode for display %q", display)
}

// parseResolution parses "WxH", ignoring an interlace suffix.
func parseResolution(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid resolution %q", s)
	}
	hs = strings.TrimRight(hs, "i")
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid resolution %q: %w", s, err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid resolution %q: %w", s, err)
	}
	return w, h, nil
}
