// Package timing computes modelines from a resolution and refresh rate.
package timing

import (
	"math"

	"github.com/jmylchreest/cru/internal/model"
)

// porches is a fixed set of blanking intervals.
type porches struct {
	hFront, hSync, hBack int
	vFront, vSync, vBack int
}

// CVT-RB fallback porches, used when the cvt generator is unavailable.
var cvtRBFallback = porches{
	hFront: 48, hSync: 32, hBack: 80,
	vFront: 3, vSync: 10, vBack: 33,
}

// CVT-RBv2 constants.
const (
	rbv2CellGranularity = 30
	rbv2Margin          = 1
	rbv2MinVBlankMicros = 460.0
	rbv2HFrontPorch     = 1
	rbv2HSyncWidth      = 8
	rbv2VSync           = 8
	rbv2VFrontPorch     = 1
)

// fromPorches builds a modeline by summing active area and porches.
func fromPorches(width, height int, refresh float64, p porches, precision int, polarity model.Polarity, origin model.Origin) model.Modeline {
	hTotal := width + p.hFront + p.hSync + p.hBack
	vTotal := height + p.vFront + p.vSync + p.vBack

	return model.Modeline{
		PixelClockMHz:  float64(hTotal*vTotal) * refresh / 1000000,
		ClockPrecision: precision,
		HActive:        width,
		HSyncStart:     width + p.hFront,
		HSyncEnd:       width + p.hFront + p.hSync,
		HTotal:         hTotal,
		VActive:        height,
		VSyncStart:     height + p.vFront,
		VSyncEnd:       height + p.vFront + p.vSync,
		VTotal:         vTotal,
		Polarity:       polarity,
		Origin:         origin,
	}
}

// ReducedBlanking computes a conservative reduced-blanking modeline whose
// porches scale with the active area.
func ReducedBlanking(width, height int, refresh float64) model.Modeline {
	p := porches{
		hFront: max(16, width/100),
		hSync:  max(32, width/80),
		hBack:  max(48, width/50),
		vFront: 1,
		vSync:  1,
		vBack:  max(3, height/200),
	}
	return fromPorches(width, height, refresh, p, 2, model.PolarityNegHPosV, model.OriginFormula)
}

// CVTRBFallback computes a CVT-RB style modeline from fixed porches.
func CVTRBFallback(width, height int, refresh float64) model.Modeline {
	return fromPorches(width, height, refresh, cvtRBFallback, 2, model.PolarityPosHNegV, model.OriginFallback)
}

// CVTRBv2 computes a CVT reduced blanking v2 modeline.
func CVTRBv2(width, height int, refresh float64) model.Modeline {
	activePixels := float64(width * height)
	hPeriodEst := (float64(rbv2CellGranularity-rbv2Margin) / activePixels) * 1000000 / refresh

	vBackPorch := int(math.Trunc(rbv2MinVBlankMicros/hPeriodEst)) + 1
	vTotal := height + rbv2VFrontPorch + rbv2VSync + vBackPorch

	hTotalEst := float64(width+rbv2HFrontPorch+rbv2HSyncWidth) + float64(width)*0.3
	hTotal := int(math.Trunc(hTotalEst/rbv2CellGranularity)) * rbv2CellGranularity

	return model.Modeline{
		PixelClockMHz:  float64(hTotal*vTotal) * refresh / 1000000,
		ClockPrecision: 6,
		HActive:        width,
		HSyncStart:     width + rbv2HFrontPorch,
		HSyncEnd:       width + rbv2HFrontPorch + rbv2HSyncWidth,
		HTotal:         hTotal,
		VActive:        height,
		VSyncStart:     height + rbv2VFrontPorch,
		VSyncEnd:       height + rbv2VFrontPorch + rbv2VSync,
		VTotal:         vTotal,
		Polarity:       model.PolarityPosHNegV,
		Origin:         model.OriginFormula,
	}
}

// exception is a hand-tuned modeline for a specific panel.
type exception struct {
	name       string
	width      int
	height     int
	minRefresh float64
	maxRefresh float64
	modeline   model.Modeline
}

// exceptions are matched before the custom fallback formula.
var exceptions = []exception{
	{
		// Samsung S95B OLED, 4K at 120-144 Hz.
		name:       "samsung-s95b",
		width:      3840,
		height:     2160,
		minRefresh: 120,
		maxRefresh: 144,
		modeline: model.Modeline{
			PixelClockMHz:  1306.206,
			ClockPrecision: 3,
			HActive:        3840, HSyncStart: 3848, HSyncEnd: 3880, HTotal: 3920,
			VActive: 2160, VSyncStart: 2300, VSyncEnd: 2308, VTotal: 2314,
			Polarity: model.PolarityPosHNegV,
			Origin:   model.OriginTable,
		},
	},
}

// Custom returns a table modeline when one matches, otherwise the
// reduced-blanking formula.
func Custom(width, height int, refresh float64) model.Modeline {
	if m, ok := lookupException(width, height, refresh); ok {
		return m
	}
	return ReducedBlanking(width, height, refresh)
}

func lookupException(width, height int, refresh float64) (model.Modeline, bool) {
	for _, e := range exceptions {
		if e.width == width && e.height == height && refresh >= e.minRefresh && refresh <= e.maxRefresh {
			return e.modeline, true
		}
	}
	return model.Modeline{}, false
}
