package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/cru/internal/model"
	"github.com/jmylchreest/cru/internal/sysexec"
)

type fixture struct {
	stagingRoot string
	primary     string
	kernel      string
	bundle      model.ConfigBundle
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dest := t.TempDir()
	f := fixture{
		stagingRoot: t.TempDir(),
		primary:     filepath.Join(dest, "xorg.conf.d", "10-custom-modes.conf"),
		kernel:      filepath.Join(dest, "modprobe.d", "nvidia.conf"),
	}
	f.bundle = model.ConfigBundle{
		Backend: model.X11(),
		Entries: []model.BundleEntry{
			{Role: model.RoleXorg, Destination: f.primary, Content: "Section \"Monitor\"\nEndSection\n", Mode: 0o644, Primary: true},
			{Role: model.RoleKernel, Destination: f.kernel, Content: "options nvidia\n", Mode: 0o644},
		},
		Applicable: true,
	}
	return f
}

func (f fixture) installer(runner sysexec.Runner, escalators ...string) *Installer {
	cfg := DefaultConfig()
	cfg.StagingRoot = f.stagingRoot
	if len(escalators) > 0 {
		cfg.Escalators = escalators
	}
	return New(runner, cfg, nil)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func exitErr(name string, code int) error {
	return &sysexec.ExitError{Name: name, ExitCode: code}
}

func TestApply_RunsHelperScript(t *testing.T) {
	if _, err := os.Stat(DefaultShell); err != nil {
		t.Skip("bash not available")
	}
	f := newFixture(t)

	stub := &sysexec.Stub{
		Installed: map[string]bool{"pkexec": true},
		Handler: func(ctx context.Context, _ string, args []string) (sysexec.Result, error) {
			out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
			if err != nil {
				return sysexec.Result{Stderr: out}, fmt.Errorf("%w: %s", err, out)
			}
			return sysexec.Result{}, nil
		},
	}

	res := f.installer(stub).Apply(context.Background(), f.bundle)
	require.True(t, res.Success, res.Message)
	assert.False(t, res.PartialInstallDetected)

	data, err := os.ReadFile(f.primary)
	require.NoError(t, err)
	assert.Equal(t, f.bundle.Entries[0].Content, string(data))

	info, err := os.Stat(f.kernel)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	// Re-running is harmless.
	res = f.installer(stub).Apply(context.Background(), f.bundle)
	assert.True(t, res.Success, res.Message)

	entries, err := os.ReadDir(f.stagingRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestApply_StagingDirectory(t *testing.T) {
	f := newFixture(t)

	var stagingDir, script string
	stub := &sysexec.Stub{
		Installed: map[string]bool{"pkexec": true},
		Handler: func(_ context.Context, _ string, args []string) (sysexec.Result, error) {
			require.Len(t, args, 3)
			assert.Equal(t, DefaultShell, args[0])
			script, stagingDir = args[1], args[2]

			data, err := os.ReadFile(script)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(string(data), "#!/bin/bash\n"))

			staged, err := os.ReadFile(filepath.Join(stagingDir, "00-xorg.conf"))
			require.NoError(t, err)
			assert.Equal(t, f.bundle.Entries[0].Content, string(staged))
			return sysexec.Result{}, nil
		},
	}

	res := f.installer(stub).Apply(context.Background(), f.bundle)
	require.True(t, res.Success)

	assert.Equal(t, f.stagingRoot, filepath.Dir(stagingDir))
	assert.True(t, strings.HasPrefix(filepath.Base(stagingDir), fmt.Sprintf("cru_%d_", os.Getpid())))
	assert.Equal(t, filepath.Join(stagingDir, ScriptName), script)
	assert.NoDirExists(t, stagingDir)
}

func TestApply_PartialInstall(t *testing.T) {
	f := newFixture(t)

	stub := &sysexec.Stub{
		Installed: map[string]bool{"pkexec": true},
		Handler: func(context.Context, string, []string) (sysexec.Result, error) {
			writeFile(t, f.primary, f.bundle.Entries[0].Content)
			return sysexec.Result{ExitCode: 1}, exitErr("pkexec", 1)
		},
	}

	res := f.installer(stub, "pkexec").Apply(context.Background(), f.bundle)
	assert.False(t, res.Success)
	assert.True(t, res.PartialInstallDetected)

	var installErr *model.InstallError
	require.True(t, errors.As(res.Err, &installErr))
	assert.True(t, installErr.Partial)
	assert.Contains(t, res.Message, f.primary)
}

func TestApply_FailureWithoutWrite(t *testing.T) {
	f := newFixture(t)

	stub := &sysexec.Stub{
		Installed: map[string]bool{"pkexec": true},
		Handler: func(context.Context, string, []string) (sysexec.Result, error) {
			return sysexec.Result{ExitCode: 1}, exitErr("pkexec", 1)
		},
	}

	res := f.installer(stub, "pkexec").Apply(context.Background(), f.bundle)
	assert.False(t, res.Success)
	assert.False(t, res.PartialInstallDetected)

	var installErr *model.InstallError
	require.True(t, errors.As(res.Err, &installErr))
	assert.False(t, installErr.Partial)
}

func TestApply_StaleIdenticalFileIsNotPartial(t *testing.T) {
	f := newFixture(t)
	writeFile(t, f.primary, f.bundle.Entries[0].Content)
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(f.primary, old, old))

	stub := &sysexec.Stub{
		Installed: map[string]bool{"pkexec": true},
		Handler: func(context.Context, string, []string) (sysexec.Result, error) {
			return sysexec.Result{ExitCode: 1}, exitErr("pkexec", 1)
		},
	}

	res := f.installer(stub, "pkexec").Apply(context.Background(), f.bundle)
	assert.False(t, res.Success)
	assert.False(t, res.PartialInstallDetected)
}

func TestApply_DifferentContentIsNotPartial(t *testing.T) {
	f := newFixture(t)

	stub := &sysexec.Stub{
		Installed: map[string]bool{"pkexec": true},
		Handler: func(context.Context, string, []string) (sysexec.Result, error) {
			writeFile(t, f.primary, "something else\n")
			return sysexec.Result{ExitCode: 1}, exitErr("pkexec", 1)
		},
	}

	res := f.installer(stub, "pkexec").Apply(context.Background(), f.bundle)
	assert.False(t, res.PartialInstallDetected)
}

func TestApply_NoEscalator(t *testing.T) {
	f := newFixture(t)

	res := f.installer(&sysexec.Stub{}).Apply(context.Background(), f.bundle)
	assert.False(t, res.Success)

	var escErr *model.EscalationError
	require.True(t, errors.As(res.Err, &escErr))
	assert.Empty(t, escErr.Tried)
	assert.Equal(t, "no privilege escalation program found", res.Message)

	entries, err := os.ReadDir(f.stagingRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestApply_EscalatorOrder(t *testing.T) {
	f := newFixture(t)

	stub := &sysexec.Stub{
		Installed: map[string]bool{"pkexec": true, "kdesu": true, "beesu": true},
		Handler: func(_ context.Context, name string, _ []string) (sysexec.Result, error) {
			if name == "pkexec" {
				return sysexec.Result{ExitCode: exitAuthDismissed}, exitErr(name, exitAuthDismissed)
			}
			return sysexec.Result{Stderr: []byte("Warning: Could not find mkinitcpio. Initramfs not updated.\n")}, nil
		},
	}

	res := f.installer(stub).Apply(context.Background(), f.bundle)
	require.True(t, res.Success)
	assert.Contains(t, res.Message, "Warning: Could not find mkinitcpio")

	calls := stub.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "pkexec", calls[0].Name)
	assert.Equal(t, "kdesu", calls[1].Name)
}

func TestApply_AllEscalatorsRefused(t *testing.T) {
	f := newFixture(t)

	stub := &sysexec.Stub{
		Installed: map[string]bool{"pkexec": true, "gksudo": true},
		Handler: func(_ context.Context, name string, _ []string) (sysexec.Result, error) {
			return sysexec.Result{ExitCode: exitAuthFailed}, exitErr(name, exitAuthFailed)
		},
	}

	res := f.installer(stub).Apply(context.Background(), f.bundle)
	var escErr *model.EscalationError
	require.True(t, errors.As(res.Err, &escErr))
	assert.Equal(t, []string{"pkexec", "gksudo"}, escErr.Tried)
	assert.False(t, res.PartialInstallDetected)
}

func TestApply_RejectsConcurrentApply(t *testing.T) {
	f := newFixture(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	stub := &sysexec.Stub{
		Installed: map[string]bool{"pkexec": true},
		Handler: func(context.Context, string, []string) (sysexec.Result, error) {
			close(entered)
			<-release
			return sysexec.Result{}, nil
		},
	}
	inst := f.installer(stub)

	var wg sync.WaitGroup
	var first model.InstallResult
	wg.Add(1)
	go func() {
		defer wg.Done()
		first = inst.Apply(context.Background(), f.bundle)
	}()

	<-entered
	assert.True(t, inst.Busy())
	second := inst.Apply(context.Background(), f.bundle)
	assert.False(t, second.Success)
	assert.ErrorIs(t, second.Err, model.ErrApplyInProgress)

	close(release)
	wg.Wait()
	assert.True(t, first.Success)
	assert.False(t, inst.Busy())
	assert.Len(t, stub.Calls(), 1)
}

func TestApply_RefusesNonApplicable(t *testing.T) {
	f := newFixture(t)
	f.bundle.Applicable = false

	stub := &sysexec.Stub{Installed: map[string]bool{"pkexec": true}}
	res := f.installer(stub).Apply(context.Background(), f.bundle)
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, model.ErrNotApplicable)
	assert.Empty(t, stub.Calls())
}

func TestPlan(t *testing.T) {
	f := newFixture(t)
	f.bundle.PostInstall = []string{model.PostInstallInitramfs}

	s, err := f.installer(&sysexec.Stub{}).Plan(f.bundle)
	require.NoError(t, err)
	assert.Equal(t, []string{f.primary, f.kernel}, s.Destinations())
	assert.Equal(t, PostStepInitramfs, s.PostStep)
}

func TestRestartDisplayManager(t *testing.T) {
	stub := &sysexec.Stub{
		Installed: map[string]bool{"gksudo": true},
		Handler:   sysexec.Output(""),
	}
	inst := New(stub, DefaultConfig(), nil)

	res := inst.RestartDisplayManager(context.Background())
	assert.True(t, res.Success)
	require.Len(t, stub.Calls(), 1)
	assert.Equal(t, "gksudo systemctl restart display-manager", stub.Calls()[0].String())

	res = New(&sysexec.Stub{}, DefaultConfig(), nil).RestartDisplayManager(context.Background())
	assert.False(t, res.Success)
	var escErr *model.EscalationError
	assert.True(t, errors.As(res.Err, &escErr))
}
