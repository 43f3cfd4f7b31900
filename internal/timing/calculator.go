package timing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/cru/internal/model"
)

// Calculator derives modelines from timing requests.
type Calculator struct {
	generator Generator
	logger    *slog.Logger
}

// NewCalculator creates a Calculator. A nil generator makes the generator
// backed algorithms use their fallbacks (or fail when none exists).
func NewCalculator(generator Generator, logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{generator: generator, logger: logger}
}

// Calculate validates req and computes its modeline. The reduced-blanking
// flag overrides the requested algorithm. The returned modeline always
// satisfies the ordering invariants.
func (c *Calculator) Calculate(ctx context.Context, req model.TimingRequest) (model.Modeline, error) {
	if err := req.Validate(); err != nil {
		return model.Modeline{}, err
	}

	alg := req.EffectiveAlgorithm()
	m, err := c.calculate(ctx, alg, req)
	if err != nil {
		return model.Modeline{}, err
	}

	if err := m.Validate(); err != nil {
		return model.Modeline{}, &model.CalculationError{
			Algorithm: alg,
			Reason:    "timing invariants violated",
			Err:       err,
		}
	}
	if m.HActive != req.Width || m.VActive != req.Height {
		return model.Modeline{}, &model.CalculationError{
			Algorithm: alg,
			Reason:    fmt.Sprintf("active area %dx%d does not match %dx%d", m.HActive, m.VActive, req.Width, req.Height),
		}
	}
	return m, nil
}

func (c *Calculator) calculate(ctx context.Context, alg model.Algorithm, req model.TimingRequest) (model.Modeline, error) {
	w, h, r := req.Width, req.Height, req.Refresh

	switch alg {
	case model.AlgorithmReducedBlanking:
		return ReducedBlanking(w, h, r), nil

	case model.AlgorithmCVT:
		m, err := c.generate(ctx, w, h, r, false)
		if err != nil {
			return model.Modeline{}, &model.CalculationError{
				Algorithm: alg,
				Reason:    "standard CVT requires the cvt generator",
				Err:       err,
			}
		}
		return m, nil

	case model.AlgorithmCVTRB:
		m, err := c.generate(ctx, w, h, r, true)
		if err != nil {
			c.logger.Debug("cvt generator failed, using CVT-RB fallback porches", "error", err)
			return CVTRBFallback(w, h, r), nil
		}
		return m, nil

	case model.AlgorithmCVTRBv2:
		return CVTRBv2(w, h, r), nil

	case model.AlgorithmCustom:
		return Custom(w, h, r), nil

	default:
		return model.Modeline{}, &model.CalculationError{
			Algorithm: alg,
			Reason:    "no formula for algorithm",
			Err:       model.ErrUnknownAlgorithm,
		}
	}
}

// generate runs the external generator and parses its output.
func (c *Calculator) generate(ctx context.Context, width, height int, refresh float64, reduced bool) (model.Modeline, error) {
	if c.generator == nil {
		return model.Modeline{}, model.ErrGeneratorUnavailable
	}
	text, err := c.generator.Generate(ctx, width, height, refresh, reduced)
	if err != nil {
		return model.Modeline{}, err
	}
	return ParseModeline(text)
}
