package model

import (
	"os"
	"slices"
)

// Logical file roles within a bundle.
const (
	RoleXorg        = "xorg"
	RoleSway        = "sway"
	RoleHyprland    = "hyprland"
	RoleKDE         = "kde"
	RoleGNOME       = "gnome"
	RoleKernel      = "kernel-module"
	RoleUnsupported = "unsupported"
)

// Post-install steps a bundle may request.
const (
	PostInstallInitramfs = "initramfs"
)

// BundleEntry is one rendered file and where it belongs.
type BundleEntry struct {
	Role        string      `json:"role" yaml:"role"`
	Destination string      `json:"destination,omitempty" yaml:"destination,omitempty"`
	Content     string      `json:"content" yaml:"content"`
	Mode        os.FileMode `json:"mode,omitempty" yaml:"mode,omitempty"`
	Primary     bool        `json:"primary,omitempty" yaml:"primary,omitempty"`
}

// ConfigBundle is the set of rendered files plus post-install steps needed
// to activate one timing on one backend.
type ConfigBundle struct {
	Backend     DisplayBackend `json:"backend" yaml:"backend"`
	Display     string         `json:"display" yaml:"display"`
	ModeName    string         `json:"mode_name" yaml:"mode_name"`
	Entries     []BundleEntry  `json:"entries" yaml:"entries"`
	PostInstall []string       `json:"post_install,omitempty" yaml:"post_install,omitempty"`
	Applicable  bool           `json:"applicable" yaml:"applicable"`
	Notice      string         `json:"notice,omitempty" yaml:"notice,omitempty"`
}

// Primary returns the entry whose presence marks the main effect of an apply.
func (b ConfigBundle) Primary() (BundleEntry, bool) {
	for _, e := range b.Entries {
		if e.Primary {
			return e, true
		}
	}
	return BundleEntry{}, false
}

// Entry returns the entry with the given role.
func (b ConfigBundle) Entry(role string) (BundleEntry, bool) {
	for _, e := range b.Entries {
		if e.Role == role {
			return e, true
		}
	}
	return BundleEntry{}, false
}

// Destinations returns every non-empty destination path in entry order.
func (b ConfigBundle) Destinations() []string {
	var dests []string
	for _, e := range b.Entries {
		if e.Destination != "" {
			dests = append(dests, e.Destination)
		}
	}
	return dests
}

// Clone creates a deep copy of the bundle.
func (b ConfigBundle) Clone() ConfigBundle {
	clone := b
	clone.Entries = slices.Clone(b.Entries)
	clone.PostInstall = slices.Clone(b.PostInstall)
	return clone
}

// InstallResult reports the outcome of one apply attempt.
type InstallResult struct {
	Success                bool   `json:"success" yaml:"success"`
	Message                string `json:"message" yaml:"message"`
	PartialInstallDetected bool   `json:"partial_install_detected" yaml:"partial_install_detected"`

	// Err carries the typed cause of a failed attempt.
	Err error `json:"-" yaml:"-"`
}
