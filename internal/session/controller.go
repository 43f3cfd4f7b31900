// Package session owns the user's current timing choices and turns them
// into previews and applies.
package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jmylchreest/cru/internal/journal"
	"github.com/jmylchreest/cru/internal/model"
	"github.com/jmylchreest/cru/internal/target"
	"github.com/jmylchreest/cru/internal/timing"
)

// Recorder stores apply history.
type Recorder interface {
	Append(r journal.Record) error
}

// Restarter restarts the display manager.
type Restarter interface {
	RestartDisplayManager(ctx context.Context) model.InstallResult
}

// Field names a committable form field.
type Field string

const (
	FieldWidth   Field = "Width"
	FieldHeight  Field = "Height"
	FieldRefresh Field = "Refresh"
)

// Settings are the initial values of a session.
type Settings struct {
	Request     model.TimingRequest
	Display     string
	Displays    []string
	ForceEnable bool
}

// Deps are the collaborators a Controller drives.
type Deps struct {
	Calculator *timing.Calculator
	Target     target.Target
	Restarter  Restarter // Optional
	Journal    Recorder  // Optional
	Logger     *slog.Logger
}

// State is a snapshot of the committed inputs.
type State struct {
	Backend     model.DisplayBackend
	Request     model.TimingRequest
	Display     string
	Displays    []string
	ForceEnable bool
	Busy        bool
}

// Preview is the derived view of the current inputs.
type Preview struct {
	Backend  model.DisplayBackend
	Request  model.TimingRequest
	Display  string
	ModeName string
	Modeline model.Modeline
	Bundle   model.ConfigBundle

	// Err is the calculation or render failure, if any. A RenderError
	// still comes with a placeholder Bundle.
	Err error
}

// HasModeline reports whether the calculation succeeded.
func (p Preview) HasModeline() bool {
	return p.Modeline.HTotal > 0
}

// Outcome is the tagged result of Apply or RestartDisplayManager.
type Outcome struct {
	Kind    model.OutcomeKind
	Message string
	Result  model.InstallResult
	Preview Preview
	Err     error
}

// Controller holds the current TimingRequest, display and options and
// rebuilds the Modeline and ConfigBundle from them on demand.
type Controller struct {
	mu sync.Mutex

	calc      *timing.Calculator
	target    target.Target
	restarter Restarter
	journal   Recorder
	logger    *slog.Logger

	req         model.TimingRequest
	display     string
	displays    []string
	forceEnable bool

	applying atomic.Bool
}

// New creates a Controller. The initial request must be valid.
func New(settings Settings, deps Deps) (*Controller, error) {
	if err := settings.Request.Validate(); err != nil {
		return nil, err
	}
	if deps.Calculator == nil {
		deps.Calculator = timing.NewCalculator(nil, deps.Logger)
	}
	if deps.Target == nil {
		return nil, errors.New("session requires a target")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	displays := slices.Clone(settings.Displays)
	display := settings.Display
	if display == "" && len(displays) > 0 {
		display = displays[0]
	}
	if display != "" && !slices.Contains(displays, display) {
		displays = append(displays, display)
	}

	return &Controller{
		calc:        deps.Calculator,
		target:      deps.Target,
		restarter:   deps.Restarter,
		journal:     deps.Journal,
		logger:      deps.Logger,
		req:         settings.Request,
		display:     display,
		displays:    displays,
		forceEnable: settings.ForceEnable,
	}, nil
}

// State returns a snapshot of the committed inputs.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Backend:     c.target.Backend(),
		Request:     c.req,
		Display:     c.display,
		Displays:    slices.Clone(c.displays),
		ForceEnable: c.forceEnable,
		Busy:        c.applying.Load(),
	}
}

// Busy reports whether an apply is running.
func (c *Controller) Busy() bool {
	return c.applying.Load()
}

// commit stores candidate if it validates; otherwise the previous request
// is kept.
func (c *Controller) commit(modify func(*model.TimingRequest)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	candidate := c.req
	modify(&candidate)
	if err := candidate.Validate(); err != nil {
		c.logger.Debug("rejected input", "error", err)
		return err
	}
	c.req = candidate
	return nil
}

// SetWidth commits a new width.
func (c *Controller) SetWidth(width int) error {
	return c.commit(func(r *model.TimingRequest) { r.Width = width })
}

// SetHeight commits a new height.
func (c *Controller) SetHeight(height int) error {
	return c.commit(func(r *model.TimingRequest) { r.Height = height })
}

// SetRefresh commits a new refresh rate in Hz.
func (c *Controller) SetRefresh(refresh float64) error {
	return c.commit(func(r *model.TimingRequest) { r.Refresh = refresh })
}

// SetAlgorithm commits a new algorithm.
func (c *Controller) SetAlgorithm(alg model.Algorithm) error {
	return c.commit(func(r *model.TimingRequest) { r.Algorithm = alg })
}

// CycleAlgorithm selects the next algorithm and returns it.
func (c *Controller) CycleAlgorithm() model.Algorithm {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.req.Algorithm = c.req.Algorithm.Next()
	return c.req.Algorithm
}

// SetReducedBlanking sets the flag that overrides the algorithm.
func (c *Controller) SetReducedBlanking(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.req.ReducedBlanking = on
}

// SetForceEnable sets the X11 mode-validation override.
func (c *Controller) SetForceEnable(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forceEnable = on
}

// SetDisplay commits the target output name.
func (c *Controller) SetDisplay(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &model.ValidationError{Field: "Display", Value: name, Err: model.ErrRequired}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.display = name
	if !slices.Contains(c.displays, name) {
		c.displays = append(c.displays, name)
	}
	return nil
}

// CycleDisplay selects the next known display and returns it.
func (c *Controller) CycleDisplay() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.displays) == 0 {
		return c.display
	}
	i := slices.Index(c.displays, c.display)
	c.display = c.displays[(i+1)%len(c.displays)]
	return c.display
}

// Commit parses text typed into a numeric field and commits it.
func (c *Controller) Commit(field Field, text string) error {
	text = strings.TrimSpace(text)
	switch field {
	case FieldWidth, FieldHeight:
		n, err := strconv.Atoi(text)
		if err != nil {
			return &model.ValidationError{Field: string(field), Value: text, Err: model.ErrNotANumber}
		}
		if field == FieldWidth {
			return c.SetWidth(n)
		}
		return c.SetHeight(n)
	case FieldRefresh:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return &model.ValidationError{Field: string(field), Value: text, Err: model.ErrNotANumber}
		}
		return c.SetRefresh(f)
	default:
		return &model.ValidationError{Field: string(field), Value: text, Err: errors.New("unknown field")}
	}
}

// Preview recomputes the ModeName, Modeline and ConfigBundle from the
// committed inputs. Nothing from a previous preview is reused.
func (c *Controller) Preview(ctx context.Context) Preview {
	c.mu.Lock()
	req, display, force := c.req, c.display, c.forceEnable
	c.mu.Unlock()

	p := Preview{
		Backend:  c.target.Backend(),
		Request:  req,
		Display:  display,
		ModeName: req.ModeName(),
	}

	m, err := c.calc.Calculate(ctx, req)
	if err != nil {
		p.Err = err
		return p
	}
	p.Modeline = m

	bundle, err := c.target.Render(target.NewModeRequest(display, req, m, target.Options{ForceEnable: force}))
	p.Bundle = bundle.Clone()
	p.Err = err
	return p
}

// Apply renders the current inputs and installs the bundle. Only one
// apply runs at a time; a concurrent call returns a busy outcome.
func (c *Controller) Apply(ctx context.Context) Outcome {
	if !c.applying.CompareAndSwap(false, true) {
		return Outcome{
			Kind:    model.OutcomeBusy,
			Message: "another apply is already in progress",
			Err:     model.ErrApplyInProgress,
		}
	}
	defer c.applying.Store(false)

	p := c.Preview(ctx)
	var out Outcome
	if p.Err != nil {
		out = Outcome{Kind: classifyError(p.Err), Message: p.Err.Error(), Err: p.Err}
	} else {
		res := c.target.Apply(ctx, p.Bundle)
		out = Outcome{Kind: classifyResult(res), Message: res.Message, Result: res, Err: res.Err}
	}
	out.Preview = p

	c.logger.Info("apply finished", "outcome", out.Kind, "backend", p.Backend.String(), "display", p.Display)
	c.record(out)
	return out
}

// RestartDisplayManager restarts the display manager. Callers must have
// confirmed with the user: the graphical session ends.
func (c *Controller) RestartDisplayManager(ctx context.Context) Outcome {
	if c.restarter == nil {
		return Outcome{Kind: model.OutcomeNotApplicable, Message: "display manager restart is not available"}
	}

	res := c.restarter.RestartDisplayManager(ctx)
	out := Outcome{Kind: model.OutcomeRestarted, Message: res.Message, Result: res, Err: res.Err}
	if !res.Success {
		out.Kind = classifyResult(res)
	}
	out.Preview = Preview{Backend: c.target.Backend()}
	c.record(out)
	return out
}

func (c *Controller) record(out Outcome) {
	if c.journal == nil {
		return
	}
	r, err := journal.NewRecord(out.Kind, out.Message)
	if err != nil {
		c.logger.Warn("failed to create journal record", "error", err)
		return
	}

	p := out.Preview
	r.Backend = p.Backend.String()
	r.Display = p.Display
	r.ModeName = p.ModeName
	if p.HasModeline() {
		r.Modeline = p.Modeline.String()
		r.Algorithm = p.Request.EffectiveAlgorithm()
	}
	r.Destinations = p.Bundle.Destinations()

	if err := c.journal.Append(r); err != nil {
		c.logger.Warn("failed to write journal record", "error", err)
	}
}

// classifyError tags a failure that happened before the installer ran.
func classifyError(err error) model.OutcomeKind {
	var verr *model.ValidationError
	var rerr *model.RenderError
	switch {
	case errors.As(err, &verr):
		return model.OutcomeInvalid
	case errors.As(err, &rerr), errors.Is(err, model.ErrNotApplicable):
		return model.OutcomeNotApplicable
	default:
		return model.OutcomeFailed
	}
}

// classifyResult tags an installer result.
func classifyResult(res model.InstallResult) model.OutcomeKind {
	var escErr *model.EscalationError
	switch {
	case res.Success:
		return model.OutcomeApplied
	case res.PartialInstallDetected:
		return model.OutcomePartial
	case errors.Is(res.Err, model.ErrApplyInProgress):
		return model.OutcomeBusy
	case errors.As(res.Err, &escErr):
		return model.OutcomeEscalationFailed
	case res.Err != nil:
		return classifyError(res.Err)
	default:
		return model.OutcomeFailed
	}
}
