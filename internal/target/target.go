// Package target renders a modeline into the configuration dialect of a
// display backend and applies the result.
package target

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmylchreest/cru/internal/model"
	"github.com/jmylchreest/cru/internal/validate"
)

// TimestampFormat is the layout of the generated-on header.
const TimestampFormat = "2006-01-02 15:04:05"

// Target renders and applies configuration for one display backend.
type Target interface {
	// Backend returns the backend this target serves.
	Backend() model.DisplayBackend

	// Render builds the configuration bundle for req. It has no side
	// effects. An unsupported backend returns a non-applicable placeholder
	// bundle together with a *model.RenderError.
	Render(req ModeRequest) (model.ConfigBundle, error)

	// Apply installs a rendered bundle.
	Apply(ctx context.Context, bundle model.ConfigBundle) model.InstallResult
}

// Installer persists bundles with elevated privileges.
type Installer interface {
	Apply(ctx context.Context, bundle model.ConfigBundle) model.InstallResult
}

// Options are the user toggles that affect rendering.
type Options struct {
	// ForceEnable adds the X11 mode-validation and EDID overrides.
	ForceEnable bool `json:"force_enable" yaml:"force_enable"`

	// GeneratedAt is stamped into headers; zero means now.
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
}

// ModeRequest is everything a dialect needs to describe one mode.
type ModeRequest struct {
	Display  string         `validate:"required"`
	ModeName string         `validate:"required"`
	Refresh  float64        `validate:"gt=0"`
	Modeline model.Modeline `validate:"-"`
	Options  Options        `validate:"-"`
}

// NewModeRequest builds a ModeRequest for a calculated modeline.
func NewModeRequest(display string, req model.TimingRequest, m model.Modeline, opts Options) ModeRequest {
	return ModeRequest{
		Display:  display,
		ModeName: req.ModeName(),
		Refresh:  req.Refresh,
		Modeline: m,
		Options:  opts,
	}
}

// Paths are the install destinations of each dialect.
type Paths struct {
	Xorg         string `toml:"xorg" validate:"required"`
	Sway         string `toml:"sway" validate:"required"`
	Hyprland     string `toml:"hyprland" validate:"required"`
	KDE          string `toml:"kde" validate:"required"`
	GNOME        string `toml:"gnome" validate:"required"`
	KernelModule string `toml:"kernel_module" validate:"required"`
}

// DefaultPaths returns the standard system destinations.
func DefaultPaths() Paths {
	return Paths{
		Xorg:         "/etc/X11/xorg.conf.d/10-custom-modes.conf",
		Sway:         "/etc/sway/config.d/10-custom-modes.conf",
		Hyprland:     "/etc/xdg/hypr/custom-modes.conf",
		KDE:          "/etc/xdg/kwin-custom-modes.conf",
		GNOME:        "/etc/profile.d/cru-custom-mode.sh",
		KernelModule: "/etc/modprobe.d/nvidia.conf",
	}
}

// FileMode is the permission of every installed file.
const FileMode os.FileMode = 0o644

// dialect describes how one backend spells its configuration.
type dialect struct {
	role        string
	template    string
	destination func(Paths) string
	notice      string
}

var dialects = map[model.Compositor]dialect{
	model.CompositorSway: {
		role:        model.RoleSway,
		template:    TemplateSway,
		destination: func(p Paths) string { return p.Sway },
		notice:      "Run `swaymsg reload` to load the new mode.",
	},
	model.CompositorHyprland: {
		role:        model.RoleHyprland,
		template:    TemplateHyprland,
		destination: func(p Paths) string { return p.Hyprland },
		notice:      "Source the file from hyprland.conf; Hyprland reloads it automatically.",
	},
	model.CompositorKDE: {
		role:        model.RoleKDE,
		template:    TemplateKWin,
		destination: func(p Paths) string { return p.KDE },
		notice:      "Log out and back in for KWin to pick up the mode.",
	},
	model.CompositorGNOME: {
		role:        model.RoleGNOME,
		template:    TemplateGNOME,
		destination: func(p Paths) string { return p.GNOME },
		notice:      "Add the video= kernel argument from the file to force the mode at boot.",
	},
}

var x11Dialect = dialect{
	role:        model.RoleXorg,
	template:    TemplateXorg,
	destination: func(p Paths) string { return p.Xorg },
	notice:      "Restart the display manager or reboot to load the new mode.",
}

// New selects the target for backend. A nil templates uses the bundled set.
func New(backend model.DisplayBackend, paths Paths, installer Installer, templates *Templates) Target {
	if templates == nil {
		templates = DefaultTemplates()
	}

	if backend.Kind == model.BackendX11 {
		return &fileTarget{backend: backend, dialect: x11Dialect, paths: paths, installer: installer, templates: templates}
	}
	if backend.IsWayland() {
		if d, ok := dialects[backend.Compositor]; ok {
			return &fileTarget{backend: backend, dialect: d, paths: paths, installer: installer, templates: templates}
		}
	}
	return &unsupportedTarget{backend: backend, templates: templates}
}

// templateData is passed to every template.
type templateData struct {
	Backend     string
	Display     string
	ModeName    string
	Modeline    model.Modeline
	SyncFlags   string
	Width       int
	Height      int
	Refresh     string
	Force       bool
	GeneratedAt string
}

func newTemplateData(backend model.DisplayBackend, req ModeRequest) templateData {
	at := req.Options.GeneratedAt
	if at.IsZero() {
		at = time.Now()
	}
	return templateData{
		Backend:     backend.String(),
		Display:     req.Display,
		ModeName:    req.ModeName,
		Modeline:    req.Modeline,
		SyncFlags:   req.Modeline.Polarity.Lower(),
		Width:       req.Modeline.HActive,
		Height:      req.Modeline.VActive,
		Refresh:     model.FormatRefresh(req.Refresh),
		Force:       req.Options.ForceEnable,
		GeneratedAt: at.Format(TimestampFormat),
	}
}

func validateRequest(req ModeRequest) error {
	if err := validate.Struct(req); err != nil {
		if ff, ok := validate.FirstFailure(err); ok {
			return &model.ValidationError{Field: ff.Field, Value: ff.Value, Err: fmt.Errorf("failed %s check", ff.Tag)}
		}
		return &model.ValidationError{Err: err}
	}
	if err := req.Modeline.Validate(); err != nil {
		return &model.ValidationError{Field: "Modeline", Value: req.Modeline.String(), Err: err}
	}
	return nil
}

// fileTarget writes one dialect file plus the kernel module line.
type fileTarget struct {
	backend   model.DisplayBackend
	dialect   dialect
	paths     Paths
	installer Installer
	templates *Templates
}

func (t *fileTarget) Backend() model.DisplayBackend {
	return t.backend
}

func (t *fileTarget) Render(req ModeRequest) (model.ConfigBundle, error) {
	if err := validateRequest(req); err != nil {
		return model.ConfigBundle{}, err
	}
	data := newTemplateData(t.backend, req)

	primary, err := t.templates.Execute(t.dialect.template, data)
	if err != nil {
		return model.ConfigBundle{}, err
	}
	kernel, err := t.templates.Execute(TemplateKernel, data)
	if err != nil {
		return model.ConfigBundle{}, err
	}

	return model.ConfigBundle{
		Backend:  t.backend,
		Display:  req.Display,
		ModeName: req.ModeName,
		Entries: []model.BundleEntry{
			{
				Role:        t.dialect.role,
				Destination: t.dialect.destination(t.paths),
				Content:     primary,
				Mode:        FileMode,
				Primary:     true,
			},
			{
				Role:        model.RoleKernel,
				Destination: t.paths.KernelModule,
				Content:     kernel,
				Mode:        FileMode,
			},
		},
		PostInstall: []string{model.PostInstallInitramfs},
		Applicable:  true,
		Notice:      t.dialect.notice,
	}, nil
}

func (t *fileTarget) Apply(ctx context.Context, bundle model.ConfigBundle) model.InstallResult {
	if res, ok := refuse(bundle); !ok {
		return res
	}
	if t.installer == nil {
		return model.InstallResult{Message: "no installer configured", Err: model.ErrNotApplicable}
	}
	return t.installer.Apply(ctx, bundle)
}

// unsupportedTarget explains that the backend cannot be configured.
type unsupportedTarget struct {
	backend   model.DisplayBackend
	templates *Templates
}

func (t *unsupportedTarget) Backend() model.DisplayBackend {
	return t.backend
}

func (t *unsupportedTarget) Render(req ModeRequest) (model.ConfigBundle, error) {
	renderErr := &model.RenderError{Backend: t.backend, Reason: "no configuration dialect for this session"}

	content, err := t.templates.Execute(TemplateUnsupported, newTemplateData(t.backend, req))
	if err != nil {
		content = "# " + renderErr.Error() + "\n"
	}
	return model.ConfigBundle{
		Backend:  t.backend,
		Display:  req.Display,
		ModeName: req.ModeName,
		Entries: []model.BundleEntry{
			{Role: model.RoleUnsupported, Content: content},
		},
		Applicable: false,
		Notice:     renderErr.Error(),
	}, renderErr
}

func (t *unsupportedTarget) Apply(_ context.Context, bundle model.ConfigBundle) model.InstallResult {
	if res, ok := refuse(bundle); !ok {
		return res
	}
	return model.InstallResult{
		Message: fmt.Sprintf("cannot apply configuration for %s", t.backend),
		Err:     &model.RenderError{Backend: t.backend, Reason: "unsupported backend"},
	}
}

// refuse rejects bundles that must never reach the installer.
func refuse(bundle model.ConfigBundle) (model.InstallResult, bool) {
	if !bundle.Applicable {
		msg := "configuration cannot be applied"
		if bundle.Notice != "" {
			msg += ": " + bundle.Notice
		}
		return model.InstallResult{Message: msg, Err: model.ErrNotApplicable}, false
	}
	if _, ok := bundle.Primary(); !ok {
		return model.InstallResult{Message: "bundle has no primary entry", Err: model.ErrNotApplicable}, false
	}
	return model.InstallResult{}, true
}
