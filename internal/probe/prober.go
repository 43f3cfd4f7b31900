package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/jmylchreest/cru/internal/model"
	"github.com/jmylchreest/cru/internal/sysexec"
)

// FallbackDisplay is offered when no output can be enumerated.
const FallbackDisplay = "HDMI-0"

// Prober queries live display state through each backend's native tool.
type Prober struct {
	runner sysexec.Runner
	mutter MutterClient
	logger *slog.Logger
}

// NewProber creates a Prober. mutter may be nil, in which case GNOME
// queries fail and ListDisplays degrades to the fallback.
func NewProber(runner sysexec.Runner, mutter MutterClient, logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{runner: runner, mutter: mutter, logger: logger}
}

// Enumerate returns the connected, active outputs of backend.
// Failures are returned as *model.EnumerationError.
func (p *Prober) Enumerate(ctx context.Context, backend model.DisplayBackend) ([]string, error) {
	names, err := p.enumerate(ctx, backend)
	if err != nil {
		return nil, &model.EnumerationError{Backend: backend, Err: err}
	}
	return dedupe(names), nil
}

func (p *Prober) enumerate(ctx context.Context, backend model.DisplayBackend) ([]string, error) {
	switch {
	case backend.Kind == model.BackendX11:
		out, err := p.run(ctx, "xrandr", "-q")
		if err != nil {
			return nil, err
		}
		return ParseXrandrOutputs(out), nil
	case backend.IsWayland():
		return p.enumerateWayland(ctx, backend.Compositor)
	default:
		return nil, model.ErrUnsupportedBackend
	}
}

func (p *Prober) enumerateWayland(ctx context.Context, compositor model.Compositor) ([]string, error) {
	switch compositor {
	case model.CompositorSway:
		out, err := p.run(ctx, "swaymsg", "-t", "get_outputs", "-r")
		if err != nil {
			return nil, err
		}
		outputs, err := ParseSwayOutputs(out)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, o := range outputs {
			if o.Active {
				names = append(names, o.Name)
			}
		}
		return names, nil

	case model.CompositorHyprland:
		out, err := p.run(ctx, "hyprctl", "monitors", "-j")
		if err != nil {
			return nil, err
		}
		monitors, err := ParseHyprlandMonitors(out)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(monitors))
		for _, m := range monitors {
			if !m.Disabled {
				names = append(names, m.Name)
			}
		}
		return names, nil

	case model.CompositorKDE:
		out, err := p.run(ctx, "kscreen-doctor", "-j")
		if err != nil {
			return nil, err
		}
		outputs, err := ParseKScreenOutputs(out)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, o := range outputs {
			if o.Connected && o.Enabled {
				names = append(names, o.Name)
			}
		}
		return names, nil

	case model.CompositorGNOME:
		state, err := p.mutterState(ctx)
		if err != nil {
			return nil, err
		}
		return state.ActiveConnectors(), nil

	default:
		return nil, model.ErrUnsupportedBackend
	}
}

// ListDisplays returns the outputs of backend. It never fails: when the
// query errors or finds nothing, it logs a warning and returns
// []string{FallbackDisplay}.
func (p *Prober) ListDisplays(ctx context.Context, backend model.DisplayBackend) []string {
	names, err := p.Enumerate(ctx, backend)
	if err != nil {
		p.logger.Warn("display enumeration failed, using fallback", "backend", backend.String(), "error", err)
		return []string{FallbackDisplay}
	}
	if len(names) == 0 {
		p.logger.Warn("no connected displays found, using fallback", "backend", backend.String())
		return []string{FallbackDisplay}
	}
	return names
}

// CurrentMode returns the mode display is currently driven at.
func (p *Prober) CurrentMode(ctx context.Context, backend model.DisplayBackend, display string) (model.CurrentMode, error) {
	mode, err := p.currentMode(ctx, backend, display)
	if err != nil {
		if errors.Is(err, model.ErrUnsupportedBackend) {
			return model.CurrentMode{}, err
		}
		return model.CurrentMode{}, &model.EnumerationError{Backend: backend, Err: err}
	}
	mode.Display = display
	return mode, nil
}

func (p *Prober) currentMode(ctx context.Context, backend model.DisplayBackend, display string) (model.CurrentMode, error) {
	if backend.Kind == model.BackendX11 {
		out, err := p.run(ctx, "xrandr", "-q")
		if err != nil {
			return model.CurrentMode{}, err
		}
		return ParseXrandrCurrentMode(out, display)
	}
	if !backend.IsWayland() {
		return model.CurrentMode{}, model.ErrUnsupportedBackend
	}

	switch backend.Compositor {
	case model.CompositorSway:
		out, err := p.run(ctx, "swaymsg", "-t", "get_outputs", "-r")
		if err != nil {
			return model.CurrentMode{}, err
		}
		outputs, err := ParseSwayOutputs(out)
		if err != nil {
			return model.CurrentMode{}, err
		}
		for _, o := range outputs {
			if o.Name == display && o.CurrentMode.Width > 0 {
				return model.CurrentMode{
					Width:   o.CurrentMode.Width,
					Height:  o.CurrentMode.Height,
					Refresh: roundRefresh(float64(o.CurrentMode.Refresh) / 1000),
				}, nil
			}
		}

	case model.CompositorHyprland:
		out, err := p.run(ctx, "hyprctl", "monitors", "-j")
		if err != nil {
			return model.CurrentMode{}, err
		}
		monitors, err := ParseHyprlandMonitors(out)
		if err != nil {
			return model.CurrentMode{}, err
		}
		for _, m := range monitors {
			if m.Name == display && !m.Disabled {
				return model.CurrentMode{Width: m.Width, Height: m.Height, Refresh: roundRefresh(m.RefreshRate)}, nil
			}
		}

	case model.CompositorKDE:
		out, err := p.run(ctx, "kscreen-doctor", "-j")
		if err != nil {
			return model.CurrentMode{}, err
		}
		outputs, err := ParseKScreenOutputs(out)
		if err != nil {
			return model.CurrentMode{}, err
		}
		for _, o := range outputs {
			if o.Name != display {
				continue
			}
			if m, ok := o.Current(); ok {
				return model.CurrentMode{Width: m.Size.Width, Height: m.Size.Height, Refresh: roundRefresh(m.RefreshRate)}, nil
			}
		}

	case model.CompositorGNOME:
		state, err := p.mutterState(ctx)
		if err != nil {
			return model.CurrentMode{}, err
		}
		if m, ok := state.CurrentMode(display); ok {
			return model.CurrentMode{Width: int(m.Width), Height: int(m.Height), Refresh: roundRefresh(m.Refresh)}, nil
		}

	default:
		return model.CurrentMode{}, model.ErrUnsupportedBackend
	}
	return model.CurrentMode{}, fmt.Errorf("no current mode for display %q", display)
}

func (p *Prober) mutterState(ctx context.Context) (*MutterState, error) {
	if p.mutter == nil {
		return nil, errors.New("mutter display config unavailable")
	}
	return p.mutter.CurrentState(ctx)
}

// run executes a query tool, checking it is installed first.
func (p *Prober) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := p.runner.LookPath(name); err != nil {
		return nil, fmt.Errorf("%s not found: %w", name, err)
	}
	res, err := p.runner.Run(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	return res.Stdout, nil
}

func roundRefresh(hz float64) float64 {
	return math.Round(hz*1000) / 1000
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
