package model

// BackendKind is the display server family.
type BackendKind string

const (
	BackendX11     BackendKind = "x11"
	BackendWayland BackendKind = "wayland"
	BackendUnknown BackendKind = "unknown"
)

// Compositor identifies a Wayland compositor.
type Compositor string

const (
	CompositorSway     Compositor = "sway"
	CompositorKDE      Compositor = "kde"
	CompositorGNOME    Compositor = "gnome"
	CompositorHyprland Compositor = "hyprland"
	CompositorUnknown  Compositor = "unknown"
)

// DisplayBackend is the active graphics stack. Compositor is only
// meaningful when Kind is BackendWayland.
type DisplayBackend struct {
	Kind       BackendKind `json:"kind" yaml:"kind"`
	Compositor Compositor  `json:"compositor,omitempty" yaml:"compositor,omitempty"`
}

// X11 returns the X11 backend.
func X11() DisplayBackend {
	return DisplayBackend{Kind: BackendX11}
}

// Wayland returns a Wayland backend running the given compositor.
func Wayland(c Compositor) DisplayBackend {
	if c == "" {
		c = CompositorUnknown
	}
	return DisplayBackend{Kind: BackendWayland, Compositor: c}
}

// UnknownBackend returns the backend used when no display stack is detected.
func UnknownBackend() DisplayBackend {
	return DisplayBackend{Kind: BackendUnknown}
}

// IsWayland reports whether the backend is a Wayland session.
func (b DisplayBackend) IsWayland() bool {
	return b.Kind == BackendWayland
}

// Supported reports whether cru can render and apply configuration for b.
func (b DisplayBackend) Supported() bool {
	switch b.Kind {
	case BackendX11:
		return true
	case BackendWayland:
		return b.Compositor != CompositorUnknown && b.Compositor != ""
	default:
		return false
	}
}

// String returns "x11", "wayland/<compositor>" or "unknown".
func (b DisplayBackend) String() string {
	if b.Kind == BackendWayland {
		c := b.Compositor
		if c == "" {
			c = CompositorUnknown
		}
		return string(b.Kind) + "/" + string(c)
	}
	if b.Kind == "" {
		return string(BackendUnknown)
	}
	return string(b.Kind)
}

// CurrentMode is the mode a display is driven at right now.
type CurrentMode struct {
	Display string  `json:"display" yaml:"display"`
	Width   int     `json:"width" yaml:"width"`
	Height  int     `json:"height" yaml:"height"`
	Refresh float64 `json:"refresh" yaml:"refresh"`
}

// Request returns a timing request for the mode using the given algorithm.
func (m CurrentMode) Request(alg Algorithm) TimingRequest {
	return TimingRequest{Width: m.Width, Height: m.Height, Refresh: m.Refresh, Algorithm: alg}
}
