package install

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/cru/internal/model"
	"github.com/jmylchreest/cru/internal/sysexec"
)

// DefaultEscalators are the privilege-escalation front-ends tried in order.
var DefaultEscalators = []string{"pkexec", "gksudo", "kdesu", "beesu"}

// DefaultShell runs the helper script.
const DefaultShell = "/bin/bash"

// pkexec exits 126 when authorization is dismissed and 127 when it fails.
const (
	exitAuthDismissed = 126
	exitAuthFailed    = 127
)

// Config controls how the installer stages and escalates.
type Config struct {
	// Escalators are tried in order; programs not on PATH are skipped.
	Escalators []string

	// StagingRoot is where staging directories are created; empty means
	// the system temp dir.
	StagingRoot string

	// Shell interprets the helper script.
	Shell string
}

// DefaultConfig returns the standard installer configuration.
func DefaultConfig() Config {
	return Config{
		Escalators: append([]string(nil), DefaultEscalators...),
		Shell:      DefaultShell,
	}
}

// Installer stages bundles and runs the helper script through a privilege
// escalation front-end. Only one Apply may run at a time.
type Installer struct {
	runner sysexec.Runner
	cfg    Config
	logger *slog.Logger
	busy   atomic.Bool
	now    func() time.Time
}

// New creates an Installer.
func New(runner sysexec.Runner, cfg Config, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Escalators) == 0 {
		cfg.Escalators = append([]string(nil), DefaultEscalators...)
	}
	if cfg.Shell == "" {
		cfg.Shell = DefaultShell
	}
	return &Installer{runner: runner, cfg: cfg, logger: logger, now: time.Now}
}

// Busy reports whether an Apply is in flight.
func (i *Installer) Busy() bool {
	return i.busy.Load()
}

// Plan returns the helper script Apply would run for bundle.
func (i *Installer) Plan(bundle model.ConfigBundle) (Script, error) {
	return ScriptFor(bundle)
}

// Apply installs bundle. It blocks until the escalated helper exits; there
// is no timeout beyond ctx. The staging directory is always removed.
func (i *Installer) Apply(ctx context.Context, bundle model.ConfigBundle) model.InstallResult {
	script, err := ScriptFor(bundle)
	if err != nil {
		return model.InstallResult{Message: "configuration cannot be applied: " + err.Error(), Err: err}
	}

	if !i.busy.CompareAndSwap(false, true) {
		return model.InstallResult{
			Message: "another apply is already in progress",
			Err:     model.ErrApplyInProgress,
		}
	}
	defer i.busy.Store(false)

	started := i.now()
	primary, _ := bundle.Primary()

	dir, err := i.stage(bundle, script)
	if dir != "" {
		defer i.cleanup(dir)
	}
	if err != nil {
		return failed(&model.InstallError{Message: "failed to stage configuration", Err: err})
	}

	res, err := i.escalate(ctx, i.cfg.Shell, filepath.Join(dir, ScriptName), dir)
	if err == nil {
		msg := "Configuration applied successfully."
		if warn := warnings(res.Stderr); warn != "" {
			msg += " " + warn
		}
		i.logger.Info("configuration applied", "backend", bundle.Backend.String(), "destinations", script.Destinations())
		return model.InstallResult{Success: true, Message: msg}
	}

	partial := i.primaryWritten(primary, started)
	i.logger.Warn("apply failed", "error", err, "partial", partial)

	var escErr *model.EscalationError
	if errors.As(err, &escErr) && !partial {
		return failed(escErr)
	}
	installErr := &model.InstallError{Partial: partial, Err: err}
	if partial {
		installErr.Message = fmt.Sprintf("%s was written but the helper reported: %v", primary.Destination, err)
	}
	result := failed(installErr)
	result.PartialInstallDetected = partial
	return result
}

// RestartDisplayManager restarts the display manager through the escalation
// front-end. This ends the graphical session, so callers must confirm first.
func (i *Installer) RestartDisplayManager(ctx context.Context) model.InstallResult {
	if _, err := i.escalate(ctx, "systemctl", "restart", "display-manager"); err != nil {
		return failed(err)
	}
	return model.InstallResult{Success: true, Message: "Display manager restarted."}
}

func failed(err error) model.InstallResult {
	return model.InstallResult{Message: err.Error(), Err: err}
}

// stage writes every entry and the helper into a fresh directory. The
// returned dir is non-empty whenever something was created.
func (i *Installer) stage(bundle model.ConfigBundle, script Script) (string, error) {
	root := i.cfg.StagingRoot
	if root == "" {
		root = os.TempDir()
	}
	dir, err := os.MkdirTemp(root, fmt.Sprintf("cru_%d_*", os.Getpid()))
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}

	for idx, e := range bundle.Entries {
		if e.Destination == "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, stagedName(idx, e)), []byte(e.Content), 0o644); err != nil {
			return dir, fmt.Errorf("failed to stage %s: %w", e.Role, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, ScriptName), []byte(script.Render()), 0o755); err != nil {
		return dir, fmt.Errorf("failed to write helper script: %w", err)
	}
	i.logger.Debug("staged configuration", "dir", dir, "files", len(script.Copies))
	return dir, nil
}

func (i *Installer) cleanup(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		i.logger.Warn("failed to remove staging directory", "dir", dir, "error", err)
	}
}

// escalate runs name with args through the first escalator that succeeds.
// If every escalator failed authorization, or none is installed, the error
// is a *model.EscalationError; otherwise it is the last helper failure.
func (i *Installer) escalate(ctx context.Context, name string, args ...string) (sysexec.Result, error) {
	var (
		tried   []string
		lastErr error
		runErr  error
	)
	for _, esc := range i.cfg.Escalators {
		if _, err := i.runner.LookPath(esc); err != nil {
			i.logger.Debug("escalator not found", "escalator", esc)
			continue
		}
		tried = append(tried, esc)

		res, err := i.runner.Run(ctx, esc, append([]string{name}, args...)...)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		i.logger.Debug("escalated command failed", "escalator", esc, "error", err)
		lastErr = err

		var exitErr *sysexec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode != exitAuthDismissed && exitErr.ExitCode != exitAuthFailed {
			runErr = err
		}
	}

	if runErr != nil {
		return sysexec.Result{}, runErr
	}
	return sysexec.Result{}, &model.EscalationError{Tried: tried, Err: lastErr}
}

// primaryWritten reports whether the primary destination holds this
// apply's content. The file must have been modified since the apply began
// and, when readable, match the staged content.
func (i *Installer) primaryWritten(primary model.BundleEntry, started time.Time) bool {
	if primary.Destination == "" {
		return false
	}
	info, err := os.Stat(primary.Destination)
	if err != nil || info.IsDir() {
		return false
	}
	if info.ModTime().Before(started.Truncate(time.Second)) {
		return false
	}

	data, err := os.ReadFile(primary.Destination)
	if err != nil {
		return true
	}
	return sha256.Sum256(data) == sha256.Sum256([]byte(primary.Content))
}

// warnings extracts "Warning:" lines from helper stderr.
func warnings(stderr []byte) string {
	var out []string
	for _, line := range bytes.Split(stderr, []byte("\n")) {
		if s := strings.TrimSpace(string(line)); strings.HasPrefix(s, "Warning:") {
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}
