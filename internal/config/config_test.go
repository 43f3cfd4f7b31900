package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/cru/internal/model"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1280, cfg.Defaults.Width)
	assert.Equal(t, 1024, cfg.Defaults.Height)
	assert.Equal(t, 165.0, cfg.Defaults.Refresh)
	assert.Equal(t, model.AlgorithmCVT, cfg.Defaults.Algorithm)
	assert.True(t, cfg.Defaults.ReducedBlanking)
	assert.True(t, cfg.Defaults.ForceEnable)
	assert.Equal(t, model.AlgorithmReducedBlanking, cfg.TimingRequest().EffectiveAlgorithm())
	assert.Equal(t, "/etc/X11/xorg.conf.d/10-custom-modes.conf", cfg.Paths.Xorg)
	assert.Equal(t, "/etc/modprobe.d/nvidia.conf", cfg.Paths.KernelModule)
	assert.Equal(t, []string{"pkexec", "gksudo", "kdesu", "beesu"}, cfg.Install.Escalators)
	assert.Equal(t, "/bin/bash", cfg.Install.Shell)
	assert.Equal(t, "cvt", cfg.Generator.CVTPath)
	assert.True(t, cfg.History.Enabled)
	assert.True(t, cfg.TUI.ShowHelp)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_ParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[defaults]
width = 3840
height = 2160
refresh = 144.0
algorithm = "custom"
reduced_blanking = false
force_enable = true
display = "DP-1"

[paths]
xorg = "/etc/X11/xorg.conf.d/20-cru.conf"
templates_dir = "/home/user/.config/cru/templates"

[install]
escalators = ["pkexec"]
staging_root = "/var/tmp"

[generator]
cvt_path = "/usr/local/bin/cvt"

[history]
retention = "30d"

[tui]
show_help = false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 3840, cfg.Defaults.Width)
	assert.Equal(t, 144.0, cfg.Defaults.Refresh)
	assert.Equal(t, model.AlgorithmCustom, cfg.Defaults.Algorithm)
	assert.True(t, cfg.Defaults.ForceEnable)
	assert.Equal(t, "DP-1", cfg.Defaults.Display)
	assert.Equal(t, "/etc/X11/xorg.conf.d/20-cru.conf", cfg.Paths.Xorg)
	assert.Equal(t, "/etc/sway/config.d/10-custom-modes.conf", cfg.Paths.Sway)
	assert.Equal(t, "/home/user/.config/cru/templates", cfg.Paths.TemplatesDir)
	assert.Equal(t, []string{"pkexec"}, cfg.Install.Escalators)
	assert.Equal(t, "/var/tmp", cfg.Install.StagingRoot)
	assert.Equal(t, "/bin/bash", cfg.Install.Shell)
	assert.Equal(t, "/usr/local/bin/cvt", cfg.Generator.CVTPath)
	assert.Equal(t, 30*24*time.Hour, cfg.History.Retention.Duration())
	assert.False(t, cfg.TUI.ShowHelp)

	req := cfg.TimingRequest()
	assert.Equal(t, model.TimingRequest{Width: 3840, Height: 2160, Refresh: 144, Algorithm: model.AlgorithmCustom}, req)

	ic := cfg.InstallerConfig()
	assert.Equal(t, "/var/tmp", ic.StagingRoot)
	assert.Equal(t, []string{"pkexec"}, ic.Escalators)
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[defaults\nwidth = "), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"negative width":    "[defaults]\nwidth = -1\n",
		"unknown algorithm": "[defaults]\nalgorithm = \"gtf\"\n",
		"no escalators":     "[install]\nescalators = []\n",
		"empty path":        "[paths]\nsway = \"\"\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0644))

			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := DefaultConfig()
	cfg.Defaults.Display = "HDMI-0"
	cfg.History.Retention = Duration(36 * time.Hour)
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestDuration_UnmarshalText(t *testing.T) {
	tests := map[string]time.Duration{
		"0":     0,
		"7":     7 * 24 * time.Hour,
		"1.5d":  36 * time.Hour,
		"36h":   36 * time.Hour,
		"1h30m": 90 * time.Minute,
	}
	for in, want := range tests {
		var d Duration
		require.NoError(t, d.UnmarshalText([]byte(in)), in)
		assert.Equal(t, want, d.Duration(), in)
	}

	var d Duration
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/cfg")
	t.Setenv("XDG_DATA_HOME", "/tmp/data")

	assert.Equal(t, "/tmp/cfg/cru/config.toml", ConfigPath())
	assert.Equal(t, "/tmp/data/cru", DataPath())
	assert.Equal(t, "/tmp/data/cru/journal.jsonl", JournalPath())
}

func TestEnsureDataDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	require.NoError(t, EnsureDataDir())
	assert.DirExists(t, filepath.Join(dir, "cru"))
}
