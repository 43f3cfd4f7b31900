package probe

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	mutterBusName   = "org.gnome.Mutter.DisplayConfig"
	mutterPath      = "/org/gnome/Mutter/DisplayConfig"
	mutterInterface = "org.gnome.Mutter.DisplayConfig"
)

// MutterClient reads GNOME's display configuration.
type MutterClient interface {
	CurrentState(ctx context.Context) (*MutterState, error)
}

// MonitorSpec identifies a physical monitor.
type MonitorSpec struct {
	Connector string
	Vendor    string
	Product   string
	Serial    string
}

// MutterMode is one mode advertised for a monitor.
type MutterMode struct {
	ID              string
	Width           int32
	Height          int32
	Refresh         float64
	PreferredScale  float64
	SupportedScales []float64
	Properties      map[string]dbus.Variant
}

// IsCurrent reports whether the mode is active.
func (m MutterMode) IsCurrent() bool {
	v, ok := m.Properties["is-current"]
	if !ok {
		return false
	}
	current, _ := v.Value().(bool)
	return current
}

// MutterMonitor is a physical monitor and its modes.
type MutterMonitor struct {
	Spec       MonitorSpec
	Modes      []MutterMode
	Properties map[string]dbus.Variant
}

// MutterLogicalMonitor is a region of the desktop shown on one or more
// monitors.
type MutterLogicalMonitor struct {
	X          int32
	Y          int32
	Scale      float64
	Transform  uint32
	Primary    bool
	Monitors   []MonitorSpec
	Properties map[string]dbus.Variant
}

// MutterState is the reply of DisplayConfig.GetCurrentState.
type MutterState struct {
	Serial          uint32
	Monitors        []MutterMonitor
	LogicalMonitors []MutterLogicalMonitor
	Properties      map[string]dbus.Variant
}

// ActiveConnectors returns connectors assigned to a logical monitor, primary
// first.
func (s *MutterState) ActiveConnectors() []string {
	var primary, rest []string
	for _, lm := range s.LogicalMonitors {
		for _, spec := range lm.Monitors {
			if lm.Primary {
				primary = append(primary, spec.Connector)
			} else {
				rest = append(rest, spec.Connector)
			}
		}
	}
	return dedupe(append(primary, rest...))
}

// CurrentMode returns the active mode of connector.
func (s *MutterState) CurrentMode(connector string) (MutterMode, bool) {
	for _, m := range s.Monitors {
		if m.Spec.Connector != connector {
			continue
		}
		for _, mode := range m.Modes {
			if mode.IsCurrent() {
				return mode, true
			}
		}
	}
	return MutterMode{}, false
}

// DBusMutter queries Mutter on the session bus.
type DBusMutter struct {
	conn *dbus.Conn
}

// NewDBusMutter connects to the shared session bus.
func NewDBusMutter() (*DBusMutter, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &DBusMutter{conn: conn}, nil
}

// CurrentState calls GetCurrentState.
func (m *DBusMutter) CurrentState(ctx context.Context) (*MutterState, error) {
	obj := m.conn.Object(mutterBusName, dbus.ObjectPath(mutterPath))
	call := obj.CallWithContext(ctx, mutterInterface+".GetCurrentState", 0)
	if call.Err != nil {
		return nil, fmt.Errorf("GetCurrentState: %w", call.Err)
	}

	var state MutterState
	if err := call.Store(&state.Serial, &state.Monitors, &state.LogicalMonitors, &state.Properties); err != nil {
		return nil, fmt.Errorf("failed to decode GetCurrentState reply: %w", err)
	}
	return &state, nil
}
