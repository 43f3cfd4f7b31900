package probe

import (
	"encoding/json"
	"fmt"
)

// SwayOutput is one entry of `swaymsg -t get_outputs -r`.
type SwayOutput struct {
	Name        string   `json:"name"`
	Active      bool     `json:"active"`
	CurrentMode SwayMode `json:"current_mode"`
}

// SwayMode is a sway mode; Refresh is in millihertz.
type SwayMode struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	Refresh int `json:"refresh"`
}

// ParseSwayOutputs parses sway's output list.
func ParseSwayOutputs(data []byte) ([]SwayOutput, error) {
	var outputs []SwayOutput
	if err := json.Unmarshal(data, &outputs); err != nil {
		return nil, fmt.Errorf("failed to parse swaymsg outputs: %w", err)
	}
	return outputs, nil
}

// HyprlandMonitor is one entry of `hyprctl monitors -j`.
type HyprlandMonitor struct {
	Name        string  `json:"name"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	RefreshRate float64 `json:"refreshRate"`
	Disabled    bool    `json:"disabled"`
}

// ParseHyprlandMonitors parses hyprctl's monitor list.
func ParseHyprlandMonitors(data []byte) ([]HyprlandMonitor, error) {
	var monitors []HyprlandMonitor
	if err := json.Unmarshal(data, &monitors); err != nil {
		return nil, fmt.Errorf("failed to parse hyprctl monitors: %w", err)
	}
	return monitors, nil
}

// KScreenOutput is one output reported by `kscreen-doctor -j`.
type KScreenOutput struct {
	Name          string        `json:"name"`
	Connected     bool          `json:"connected"`
	Enabled       bool          `json:"enabled"`
	CurrentModeID string        `json:"currentModeId"`
	Modes         []KScreenMode `json:"modes"`
}

// KScreenMode is a mode of a KScreenOutput.
type KScreenMode struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	RefreshRate float64 `json:"refreshRate"`
	Size        struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"size"`
}

// Current returns the output's active mode.
func (o KScreenOutput) Current() (KScreenMode, bool) {
	for _, m := range o.Modes {
		if m.ID == o.CurrentModeID {
			return m, true
		}
	}
	return KScreenMode{}, false
}

// ParseKScreenOutputs parses kscreen-doctor's JSON document.
func ParseKScreenOutputs(data []byte) ([]KScreenOutput, error) {
	var doc struct {
		Outputs []KScreenOutput `json:"outputs"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse kscreen-doctor output: %w", err)
	}
	return doc.Outputs, nil
}
