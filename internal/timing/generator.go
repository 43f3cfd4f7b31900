package timing

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmylchreest/cru/internal/model"
	"github.com/jmylchreest/cru/internal/sysexec"
)

// Generator produces modeline text from an external standard-timing tool.
type Generator interface {
	// Generate returns the modeline text (without the quoted name).
	Generate(ctx context.Context, width, height int, refresh float64, reduced bool) (string, error)
}

// DefaultCVTPath is the cvt binary looked up on PATH.
const DefaultCVTPath = "cvt"

// CVTGenerator runs the cvt utility.
type CVTGenerator struct {
	runner sysexec.Runner
	path   string
}

// NewCVTGenerator creates a generator that invokes path (DefaultCVTPath if empty).
func NewCVTGenerator(runner sysexec.Runner, path string) *CVTGenerator {
	if path == "" {
		path = DefaultCVTPath
	}
	return &CVTGenerator{runner: runner, path: path}
}

// modelineRe matches `Modeline "<name>" <timings>` in cvt output.
var modelineRe = regexp.MustCompile(`Modeline.*"(.*)"(.*)`)

// Generate runs cvt [-r] W H R and extracts the modeline timings.
func (g *CVTGenerator) Generate(ctx context.Context, width, height int, refresh float64, reduced bool) (string, error) {
	if _, err := g.runner.LookPath(g.path); err != nil {
		return "", fmt.Errorf("%s: %w", g.path, model.ErrGeneratorUnavailable)
	}

	var args []string
	if reduced {
		args = append(args, "-r")
	}
	args = append(args, strconv.Itoa(width), strconv.Itoa(height), model.FormatRefresh(refresh))

	res, err := g.runner.Run(ctx, g.path, args...)
	if err != nil {
		return "", err
	}
	return ExtractModeline(string(res.Stdout))
}

// ExtractModeline returns the timing text following the quoted mode name of
// the first Modeline line in output.
func ExtractModeline(output string) (string, error) {
	match := modelineRe.FindStringSubmatch(output)
	if match == nil {
		return "", fmt.Errorf("no modeline found in generator output")
	}
	text := strings.TrimSpace(match[2])
	if text == "" {
		return "", fmt.Errorf("empty modeline in generator output")
	}
	return text, nil
}

// ParseModeline parses "<clock> <8 timings> <hsync> <vsync>". Sync flags are
// matched case-insensitively. The clock keeps its written precision.
func ParseModeline(text string) (model.Modeline, error) {
	fields := strings.Fields(text)
	if len(fields) != 11 {
		return model.Modeline{}, fmt.Errorf("modeline %q: expected 11 fields, got %d", text, len(fields))
	}

	clock, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return model.Modeline{}, fmt.Errorf("modeline %q: invalid pixel clock: %w", text, err)
	}
	precision := 0
	if _, frac, ok := strings.Cut(fields[0], "."); ok {
		precision = len(frac)
	}

	var nums [8]int
	for i := range nums {
		n, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return model.Modeline{}, fmt.Errorf("modeline %q: invalid timing %q: %w", text, fields[i+1], err)
		}
		nums[i] = n
	}

	polarity, err := model.ParsePolarity(fields[9], fields[10])
	if err != nil {
		return model.Modeline{}, fmt.Errorf("modeline %q: %w", text, err)
	}

	return model.Modeline{
		PixelClockMHz:  clock,
		ClockPrecision: precision,
		HActive:        nums[0],
		HSyncStart:     nums[1],
		HSyncEnd:       nums[2],
		HTotal:         nums[3],
		VActive:        nums[4],
		VSyncStart:     nums[5],
		VSyncEnd:       nums[6],
		VTotal:         nums[7],
		Polarity:       polarity,
		Origin:         model.OriginGenerator,
	}, nil
}
