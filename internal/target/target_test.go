package target

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/cru/internal/model"
)

var generatedAt = time.Date(2026, 10, 16, 12, 30, 5, 0, time.Local)

func rbModeline() model.Modeline {
	return model.Modeline{
		PixelClockMHz:  234.07824,
		ClockPrecision: 2,
		HActive:        1280, HSyncStart: 1296, HSyncEnd: 1328, HTotal: 1376,
		VActive: 1024, VSyncStart: 1025, VSyncEnd: 1026, VTotal: 1031,
		Polarity: model.PolarityNegHPosV,
		Origin:   model.OriginFormula,
	}
}

func modeRequest(force bool) ModeRequest {
	return ModeRequest{
		Display:  "DP-1",
		ModeName: "1280x1024_165",
		Refresh:  165,
		Modeline: rbModeline(),
		Options:  Options{ForceEnable: force, GeneratedAt: generatedAt},
	}
}

type recordingInstaller struct {
	bundles []model.ConfigBundle
}

func (r *recordingInstaller) Apply(_ context.Context, b model.ConfigBundle) model.InstallResult {
	r.bundles = append(r.bundles, b)
	return model.InstallResult{Success: true, Message: "ok"}
}

func TestRender_X11(t *testing.T) {
	tgt := New(model.X11(), DefaultPaths(), nil, nil)

	b, err := tgt.Render(modeRequest(false))
	require.NoError(t, err)

	want := `# Generated by Linux CRU on 2026-10-16 12:30:05

Section "Monitor"
    Identifier "DP-1"
    Option "PreferredMode" "1280x1024_165"
    Modeline "1280x1024_165" 234.08 1280 1296 1328 1376 1024 1025 1026 1031 -HSync +VSync
    Option "ExactModeTimingsDVI" "True"
EndSection

Section "Screen"
    Identifier "Screen0"
    Device "Device0"
    Monitor "DP-1"
    Option "AllowIndirectGLXProtocol" "off"
    Option "TripleBuffer" "on"
EndSection
`
	primary, ok := b.Primary()
	require.True(t, ok)
	assert.Equal(t, want, primary.Content)
	assert.Equal(t, model.RoleXorg, primary.Role)
	assert.Equal(t, "/etc/X11/xorg.conf.d/10-custom-modes.conf", primary.Destination)
	assert.Equal(t, FileMode, primary.Mode)

	kernel, ok := b.Entry(model.RoleKernel)
	require.True(t, ok)
	assert.Equal(t, "/etc/modprobe.d/nvidia.conf", kernel.Destination)
	assert.Equal(t, `options nvidia NVreg_RegistryDwords="CustomEDID=1280x1024_165;EnableBrightnessControl=1"`+"\n", kernel.Content)

	assert.True(t, b.Applicable)
	assert.Equal(t, []string{model.PostInstallInitramfs}, b.PostInstall)
	assert.Equal(t, "DP-1", b.Display)
	assert.Equal(t, "1280x1024_165", b.ModeName)
}

func TestRender_X11Force(t *testing.T) {
	tgt := New(model.X11(), DefaultPaths(), nil, nil)

	b, err := tgt.Render(modeRequest(true))
	require.NoError(t, err)

	primary, _ := b.Primary()
	assert.Contains(t, primary.Content, `    Option "ExactModeTimingsDVI" "True"
    Option "ModeValidation" "AllowNonEdidModes,NoMaxPClkCheck,NoEdidMaxPClkCheck,NoMaxSizeCheck,NoHorizSyncCheck,NoVertRefreshCheck"
    Option "IgnoreEDID" "True"
EndSection`)
}

func TestRender_Wayland(t *testing.T) {
	tests := []struct {
		compositor  model.Compositor
		role        string
		destination string
		lines       []string
	}{
		{
			compositor:  model.CompositorSway,
			role:        model.RoleSway,
			destination: "/etc/sway/config.d/10-custom-modes.conf",
			lines: []string{
				"output DP-1 modeline 234.08 1280 1296 1328 1376 1024 1025 1026 1031 -hsync +vsync",
				"output DP-1 mode --custom 1280x1024@165Hz",
			},
		},
		{
			compositor:  model.CompositorHyprland,
			role:        model.RoleHyprland,
			destination: "/etc/xdg/hypr/custom-modes.conf",
			lines: []string{
				"monitor = DP-1, modeline 234.08 1280 1296 1328 1376 1024 1025 1026 1031 -hsync +vsync, auto, 1",
				"# monitor = DP-1, 1280x1024@165, auto, 1",
			},
		},
		{
			compositor:  model.CompositorKDE,
			role:        model.RoleKDE,
			destination: "/etc/xdg/kwin-custom-modes.conf",
			lines: []string{
				"[CustomModes][DP-1]",
				"Mode=1280x1024_165",
				"Width=1280",
				"Height=1024",
				"RefreshRate=165",
				"Modeline=234.08 1280 1296 1328 1376 1024 1025 1026 1031 -HSync +VSync",
			},
		},
		{
			compositor:  model.CompositorGNOME,
			role:        model.RoleGNOME,
			destination: "/etc/profile.d/cru-custom-mode.sh",
			lines: []string{
				`export CRU_OUTPUT="DP-1"`,
				`export CRU_MODE_NAME="1280x1024_165"`,
				`export CRU_MODE="1280x1024@165"`,
				`export CRU_MODELINE="234.08 1280 1296 1328 1376 1024 1025 1026 1031 -HSync +VSync"`,
				"#   video=DP-1:1280x1024@165",
			},
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.compositor), func(t *testing.T) {
			tgt := New(model.Wayland(tt.compositor), DefaultPaths(), nil, nil)
			assert.Equal(t, model.Wayland(tt.compositor), tgt.Backend())

			b, err := tgt.Render(modeRequest(false))
			require.NoError(t, err)

			primary, ok := b.Primary()
			require.True(t, ok)
			assert.Equal(t, tt.role, primary.Role)
			assert.Equal(t, tt.destination, primary.Destination)

			lines := strings.Split(primary.Content, "\n")
			assert.Equal(t, "# Generated by Linux CRU on 2026-10-16 12:30:05", lines[0])
			for _, want := range tt.lines {
				assert.Contains(t, lines, want)
			}

			kernel, ok := b.Entry(model.RoleKernel)
			require.True(t, ok)
			assert.Contains(t, kernel.Content, "CustomEDID=1280x1024_165;")
			assert.True(t, b.Applicable)
			assert.NotEmpty(t, b.Notice)
		})
	}
}

var numberRe = regexp.MustCompile(`\d+(\.\d+)?`)

func TestRender_SameTimingNumbersAcrossDialects(t *testing.T) {
	req := modeRequest(false)

	x11, err := New(model.X11(), DefaultPaths(), nil, nil).Render(req)
	require.NoError(t, err)
	sway, err := New(model.Wayland(model.CompositorSway), DefaultPaths(), nil, nil).Render(req)
	require.NoError(t, err)

	timingNumbers := func(content, prefix string) []string {
		for _, line := range strings.Split(content, "\n") {
			if _, rest, ok := strings.Cut(line, prefix); ok {
				return numberRe.FindAllString(rest, -1)
			}
		}
		return nil
	}

	x11Primary, _ := x11.Primary()
	swayPrimary, _ := sway.Primary()

	x11Nums := timingNumbers(x11Primary.Content, `Modeline "1280x1024_165" `)
	swayNums := timingNumbers(swayPrimary.Content, "output DP-1 modeline ")
	require.Len(t, x11Nums, 9)
	assert.Equal(t, x11Nums, swayNums)
	assert.Equal(t, []string{"234.08", "1280", "1296", "1328", "1376", "1024", "1025", "1026", "1031"}, x11Nums)
}

func TestRender_IsDeterministic(t *testing.T) {
	tgt := New(model.Wayland(model.CompositorHyprland), DefaultPaths(), nil, nil)

	a, err := tgt.Render(modeRequest(true))
	require.NoError(t, err)
	b, err := tgt.Render(modeRequest(true))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRender_CustomPaths(t *testing.T) {
	paths := DefaultPaths()
	paths.Xorg = "/tmp/xorg.conf"
	paths.KernelModule = "/tmp/nvidia.conf"

	b, err := New(model.X11(), paths, nil, nil).Render(modeRequest(false))
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/xorg.conf", "/tmp/nvidia.conf"}, b.Destinations())
}

func TestRender_InvalidRequest(t *testing.T) {
	tgt := New(model.X11(), DefaultPaths(), nil, nil)

	req := modeRequest(false)
	req.Display = ""
	_, err := tgt.Render(req)
	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Display", verr.Field)

	req = modeRequest(false)
	req.Modeline.HSyncEnd = req.Modeline.HTotal
	_, err = tgt.Render(req)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Modeline", verr.Field)
}

func TestRender_Unsupported(t *testing.T) {
	for _, backend := range []model.DisplayBackend{
		model.Wayland(model.CompositorUnknown),
		model.UnknownBackend(),
	} {
		t.Run(backend.String(), func(t *testing.T) {
			installer := &recordingInstaller{}
			tgt := New(backend, DefaultPaths(), installer, nil)

			b, err := tgt.Render(modeRequest(false))
			var renderErr *model.RenderError
			require.True(t, errors.As(err, &renderErr))
			assert.ErrorIs(t, err, model.ErrUnsupportedBackend)

			assert.False(t, b.Applicable)
			require.Len(t, b.Entries, 1)
			assert.Equal(t, model.RoleUnsupported, b.Entries[0].Role)
			assert.Empty(t, b.Entries[0].Destination)
			assert.Contains(t, b.Entries[0].Content, backend.String())

			res := tgt.Apply(context.Background(), b)
			assert.False(t, res.Success)
			assert.ErrorIs(t, res.Err, model.ErrNotApplicable)

			b.Applicable = true
			b.Entries[0].Primary = true
			res = tgt.Apply(context.Background(), b)
			assert.False(t, res.Success)
			assert.Empty(t, installer.bundles)
		})
	}
}

func TestApply_DelegatesToInstaller(t *testing.T) {
	installer := &recordingInstaller{}
	tgt := New(model.X11(), DefaultPaths(), installer, nil)

	b, err := tgt.Render(modeRequest(false))
	require.NoError(t, err)

	res := tgt.Apply(context.Background(), b)
	assert.True(t, res.Success)
	require.Len(t, installer.bundles, 1)
	assert.Equal(t, b, installer.bundles[0])
}

func TestApply_RefusesNonApplicable(t *testing.T) {
	installer := &recordingInstaller{}
	tgt := New(model.X11(), DefaultPaths(), installer, nil)

	b, err := tgt.Render(modeRequest(false))
	require.NoError(t, err)
	b.Applicable = false

	res := tgt.Apply(context.Background(), b)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, model.ErrNotApplicable)
	assert.Empty(t, installer.bundles)

	res = New(model.X11(), DefaultPaths(), nil, nil).Apply(context.Background(), model.ConfigBundle{Applicable: true})
	assert.False(t, res.Success)
}

func TestLoadTemplates_UserOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nvidia.conf.tmpl"), []byte("# kernel {{.ModeName}}\n"), 0o644))

	templates, err := LoadTemplates(dir, nil)
	require.NoError(t, err)

	b, err := New(model.X11(), DefaultPaths(), nil, templates).Render(modeRequest(false))
	require.NoError(t, err)

	kernel, _ := b.Entry(model.RoleKernel)
	assert.Equal(t, "# kernel 1280x1024_165\n", kernel.Content)

	primary, _ := b.Primary()
	assert.Contains(t, primary.Content, `Section "Monitor"`)

	// The bundled set is untouched.
	b, err = New(model.X11(), DefaultPaths(), nil, nil).Render(modeRequest(false))
	require.NoError(t, err)
	kernel, _ = b.Entry(model.RoleKernel)
	assert.Contains(t, kernel.Content, "options nvidia")
}

func TestLoadTemplates_Errors(t *testing.T) {
	templates, err := LoadTemplates(filepath.Join(t.TempDir(), "missing"), nil)
	require.NoError(t, err)
	assert.Same(t, DefaultTemplates(), templates)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sway.conf.tmpl"), []byte("{{.Broken"), 0o644))
	_, err = LoadTemplates(dir, nil)
	assert.Error(t, err)
}

func TestListEmbeddedTemplates(t *testing.T) {
	names := ListEmbeddedTemplates()
	for _, name := range []string{TemplateXorg, TemplateSway, TemplateHyprland, TemplateKWin, TemplateGNOME, TemplateKernel, TemplateUnsupported} {
		assert.Contains(t, names, name)
	}
}
