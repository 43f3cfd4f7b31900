// Package probe detects the active display backend and queries its outputs.
package probe

import (
	"os"
	"strings"

	"github.com/jmylchreest/cru/internal/model"
)

// Environment provides session variables.
type Environment interface {
	Getenv(key string) string
}

// OSEnvironment reads the process environment.
type OSEnvironment struct{}

// Getenv returns the value of the environment variable key.
func (OSEnvironment) Getenv(key string) string {
	return os.Getenv(key)
}

// MapEnvironment is a fixed set of variables.
type MapEnvironment map[string]string

// Getenv returns m[key].
func (m MapEnvironment) Getenv(key string) string {
	return m[key]
}

// compositorMarker reports whether env carries a compositor's session marker.
type compositorMarker struct {
	compositor model.Compositor
	match      func(env Environment) bool
}

// compositorMarkers are checked in priority order.
var compositorMarkers = []compositorMarker{
	{model.CompositorSway, func(env Environment) bool {
		return env.Getenv("SWAYSOCK") != ""
	}},
	{model.CompositorKDE, func(env Environment) bool {
		return env.Getenv("KDE_FULL_SESSION") != "" || desktopContains(env, "KDE")
	}},
	{model.CompositorGNOME, func(env Environment) bool {
		return env.Getenv("GNOME_DESKTOP_SESSION_ID") != "" || desktopContains(env, "GNOME")
	}},
	{model.CompositorHyprland, func(env Environment) bool {
		return env.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != ""
	}},
}

// desktopContains checks the colon separated XDG_CURRENT_DESKTOP list.
func desktopContains(env Environment, name string) bool {
	for _, d := range strings.Split(env.Getenv("XDG_CURRENT_DESKTOP"), ":") {
		if strings.EqualFold(strings.TrimSpace(d), name) {
			return true
		}
	}
	return false
}

// DetectBackend infers the display backend from session variables.
// A Wayland signal always wins over an X display, so XWayland sessions are
// reported as Wayland.
func DetectBackend(env Environment) model.DisplayBackend {
	if env == nil {
		env = OSEnvironment{}
	}

	sessionType := strings.ToLower(env.Getenv("XDG_SESSION_TYPE"))
	if env.Getenv("WAYLAND_DISPLAY") != "" || sessionType == "wayland" {
		for _, m := range compositorMarkers {
			if m.match(env) {
				return model.Wayland(m.compositor)
			}
		}
		return model.Wayland(model.CompositorUnknown)
	}

	if env.Getenv("DISPLAY") != "" || sessionType == "x11" {
		return model.X11()
	}
	return model.UnknownBackend()
}
