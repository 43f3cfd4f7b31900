// Package model defines the core data structures for cru.
package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jmylchreest/cru/internal/validate"
)

// Algorithm selects the timing formula used to derive a modeline.
type Algorithm string

const (
	AlgorithmReducedBlanking Algorithm = "reduced-blanking"
	AlgorithmCVT             Algorithm = "cvt"
	AlgorithmCVTRB           Algorithm = "cvt-rb"
	AlgorithmCVTRBv2         Algorithm = "cvt-rbv2"
	AlgorithmCustom          Algorithm = "custom"
)

// Algorithms lists every algorithm in selector order.
var Algorithms = []Algorithm{
	AlgorithmReducedBlanking,
	AlgorithmCVT,
	AlgorithmCVTRB,
	AlgorithmCVTRBv2,
	AlgorithmCustom,
}

// ParseAlgorithm parses an algorithm name. Matching is case-insensitive and
// "auto" is accepted as an alias for the standard CVT formula.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reduced-blanking", "rb", "reduced":
		return AlgorithmReducedBlanking, nil
	case "cvt", "auto", "standard":
		return AlgorithmCVT, nil
	case "cvt-rb":
		return AlgorithmCVTRB, nil
	case "cvt-rbv2", "cvt-rb2":
		return AlgorithmCVTRBv2, nil
	case "custom":
		return AlgorithmCustom, nil
	default:
		return "", &ValidationError{Field: "Algorithm", Value: s, Err: ErrUnknownAlgorithm}
	}
}

// Next returns the algorithm following a in selector order, wrapping around.
func (a Algorithm) Next() Algorithm {
	for i, alg := range Algorithms {
		if alg == a {
			return Algorithms[(i+1)%len(Algorithms)]
		}
	}
	return Algorithms[0]
}

// TimingRequest is the user's requested timing.
type TimingRequest struct {
	Width     int       `json:"width" yaml:"width" validate:"gt=0"`
	Height    int       `json:"height" yaml:"height" validate:"gt=0"`
	Refresh   float64   `json:"refresh" yaml:"refresh" validate:"gt=0"`
	Algorithm Algorithm `json:"algorithm" yaml:"algorithm" validate:"oneof=reduced-blanking cvt cvt-rb cvt-rbv2 custom"`

	// ReducedBlanking overrides Algorithm when set.
	ReducedBlanking bool `json:"reduced_blanking" yaml:"reduced_blanking"`
}

// Validate checks that dimensions and refresh are positive and the
// algorithm is known.
func (r TimingRequest) Validate() error {
	if math.IsNaN(r.Refresh) || math.IsInf(r.Refresh, 0) {
		return &ValidationError{Field: "Refresh", Value: r.Refresh, Err: ErrNonPositive}
	}
	if err := validate.Struct(r); err != nil {
		ff, ok := validate.FirstFailure(err)
		if !ok {
			return &ValidationError{Err: err}
		}
		verr := &ValidationError{Field: ff.Field, Value: ff.Value, Err: ErrNonPositive}
		if ff.Field == "Algorithm" {
			verr.Err = ErrUnknownAlgorithm
		}
		return verr
	}
	return nil
}

// EffectiveAlgorithm returns the algorithm that will actually run.
func (r TimingRequest) EffectiveAlgorithm() Algorithm {
	if r.ReducedBlanking {
		return AlgorithmReducedBlanking
	}
	return r.Algorithm
}

// ModeName returns the cross-backend mode identifier for the request.
func (r TimingRequest) ModeName() string {
	return ModeName(r.Width, r.Height, r.Refresh)
}

// ModeName derives the mode identifier "{width}x{height}_{refresh}".
func ModeName(width, height int, refresh float64) string {
	return fmt.Sprintf("%dx%d_%s", width, height, FormatRefresh(refresh))
}

// FormatRefresh formats a refresh rate with the shortest exact decimal.
func FormatRefresh(refresh float64) string {
	return strconv.FormatFloat(refresh, 'f', -1, 64)
}

// Polarity is the horizontal/vertical sync polarity pair.
type Polarity string

const (
	PolarityNegHPosV Polarity = "-HSync +VSync"
	PolarityPosHNegV Polarity = "+HSync -VSync"
)

// ParsePolarity parses a pair of sync flags such as "-hsync" "+vsync".
func ParsePolarity(hsync, vsync string) (Polarity, error) {
	h := strings.ToLower(hsync)
	v := strings.ToLower(vsync)
	switch {
	case h == "-hsync" && v == "+vsync":
		return PolarityNegHPosV, nil
	case h == "+hsync" && v == "-vsync":
		return PolarityPosHNegV, nil
	default:
		return "", fmt.Errorf("unsupported sync polarity %q %q", hsync, vsync)
	}
}

// Flags returns the HSync and VSync tokens, e.g. "-HSync" and "+VSync".
func (p Polarity) Flags() (string, string) {
	h, v, _ := strings.Cut(string(p), " ")
	return h, v
}

// Lower returns the polarity with lowercase flags ("-hsync +vsync").
func (p Polarity) Lower() string {
	return strings.ToLower(string(p))
}

// Origin records how a modeline was produced.
type Origin string

const (
	OriginFormula   Origin = "formula"
	OriginGenerator Origin = "generator"
	OriginFallback  Origin = "fallback"
	OriginTable     Origin = "table"
)

// Modeline is the flat numeric timing descriptor for one mode.
type Modeline struct {
	PixelClockMHz  float64  `json:"pixel_clock_mhz" yaml:"pixel_clock_mhz"`
	ClockPrecision int      `json:"clock_precision" yaml:"clock_precision"`
	HActive        int      `json:"h_active" yaml:"h_active"`
	HSyncStart     int      `json:"h_sync_start" yaml:"h_sync_start"`
	HSyncEnd       int      `json:"h_sync_end" yaml:"h_sync_end"`
	HTotal         int      `json:"h_total" yaml:"h_total"`
	VActive        int      `json:"v_active" yaml:"v_active"`
	VSyncStart     int      `json:"v_sync_start" yaml:"v_sync_start"`
	VSyncEnd       int      `json:"v_sync_end" yaml:"v_sync_end"`
	VTotal         int      `json:"v_total" yaml:"v_total"`
	Polarity       Polarity `json:"polarity" yaml:"polarity"`
	Origin         Origin   `json:"origin" yaml:"origin"`
}

// Clock returns the pixel clock formatted at the modeline's precision.
func (m Modeline) Clock() string {
	return strconv.FormatFloat(m.PixelClockMHz, 'f', m.ClockPrecision, 64)
}

// Timings returns the eight timing boundaries separated by spaces.
func (m Modeline) Timings() string {
	return fmt.Sprintf("%d %d %d %d %d %d %d %d",
		m.HActive, m.HSyncStart, m.HSyncEnd, m.HTotal,
		m.VActive, m.VSyncStart, m.VSyncEnd, m.VTotal)
}

// String renders the modeline as "<clock> <timings> <polarity>".
func (m Modeline) String() string {
	return m.Clock() + " " + m.Timings() + " " + string(m.Polarity)
}

// Validate checks the ordering invariants of the timing boundaries.
func (m Modeline) Validate() error {
	switch {
	case m.HActive <= 0 || m.VActive <= 0:
		return fmt.Errorf("active area %dx%d is not positive", m.HActive, m.VActive)
	case m.PixelClockMHz <= 0 || math.IsInf(m.PixelClockMHz, 0) || math.IsNaN(m.PixelClockMHz):
		return fmt.Errorf("pixel clock %v is not positive", m.PixelClockMHz)
	case m.HSyncStart >= m.HSyncEnd || m.HSyncEnd >= m.HTotal:
		return fmt.Errorf("horizontal timings out of order: %d %d %d", m.HSyncStart, m.HSyncEnd, m.HTotal)
	case m.VSyncStart >= m.VSyncEnd || m.VSyncEnd >= m.VTotal:
		return fmt.Errorf("vertical timings out of order: %d %d %d", m.VSyncStart, m.VSyncEnd, m.VTotal)
	case m.Polarity != PolarityNegHPosV && m.Polarity != PolarityPosHNegV:
		return fmt.Errorf("unknown polarity %q", m.Polarity)
	}
	return nil
}
