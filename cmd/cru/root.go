package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/cru/internal/config"
	"github.com/jmylchreest/cru/internal/install"
	"github.com/jmylchreest/cru/internal/journal"
	"github.com/jmylchreest/cru/internal/model"
	"github.com/jmylchreest/cru/internal/probe"
	"github.com/jmylchreest/cru/internal/session"
	"github.com/jmylchreest/cru/internal/sysexec"
	"github.com/jmylchreest/cru/internal/target"
	"github.com/jmylchreest/cru/internal/timing"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
	}
	logger *slog.Logger

	// runner executes every external program
	runner sysexec.Runner = sysexec.NewExecRunner()
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "cru",
	Short: "Custom display resolutions for Linux",
	Long: `cru calculates custom display modes and installs them for X11 and
Wayland compositors.

It derives a modeline from a resolution and refresh rate, renders it into
the configuration dialect of the running display stack (xorg.conf, Sway,
Hyprland, KWin or GNOME) and installs the result with elevated privileges.

Running cru without a subcommand launches the interactive TUI.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	// Default to TUI when no subcommand is provided
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/cru/config.toml)")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// detectBackend inspects the process environment once.
func detectBackend() model.DisplayBackend {
	backend := probe.DetectBackend(probe.OSEnvironment{})
	logger.Debug("detected display backend", "backend", backend.String())
	return backend
}

// newProber creates a prober. The Mutter D-Bus client is only connected
// for GNOME sessions.
func newProber(backend model.DisplayBackend) *probe.Prober {
	var mutter probe.MutterClient
	if backend.IsWayland() && backend.Compositor == model.CompositorGNOME {
		m, err := probe.NewDBusMutter()
		if err != nil {
			logger.Warn("failed to connect to session bus", "error", err)
		} else {
			mutter = m
		}
	}
	return probe.NewProber(runner, mutter, logger)
}

func newCalculator() *timing.Calculator {
	return timing.NewCalculator(timing.NewCVTGenerator(runner, cfg.Generator.CVTPath), logger)
}

func newInstaller() *install.Installer {
	return install.New(runner, cfg.InstallerConfig(), logger)
}

func newTarget(backend model.DisplayBackend, installer target.Installer) (target.Target, error) {
	templates, err := target.LoadTemplates(cfg.Paths.TemplatesDir, logger)
	if err != nil {
		return nil, err
	}
	return target.New(backend, cfg.Paths.Paths, installer, templates), nil
}

// openJournal opens the apply journal and drops records past the
// retention period. Returns nil when history is disabled.
func openJournal() *journal.Journal {
	if !cfg.History.Enabled {
		return nil
	}
	if err := config.EnsureDataDir(); err != nil {
		logger.Warn("failed to create data directory", "error", err)
		return nil
	}
	j, err := journal.Open(config.JournalPath())
	if err != nil {
		logger.Warn("failed to open journal", "error", err)
		return nil
	}
	if retention := cfg.History.Retention.Duration(); retention > 0 {
		if n, err := j.Prune(retention); err != nil {
			logger.Warn("failed to prune journal", "error", err)
		} else if n > 0 {
			logger.Debug("pruned journal", "removed", n)
		}
	}
	return j
}

// app bundles the collaborators one command needs.
type app struct {
	backend   model.DisplayBackend
	prober    *probe.Prober
	installer *install.Installer
	target    target.Target
	journal   *journal.Journal
	ctrl      *session.Controller
}

// Close releases the journal.
func (a *app) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logger.Warn("failed to close journal", "error", err)
		}
	}
}

// appOptions select what newApp wires.
type appOptions struct {
	backend *model.DisplayBackend // nil = detect
	request model.TimingRequest
	display string // Empty = config default or first detected output
	force   bool
	journal bool
}

// newApp wires a session for the given options.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	a := &app{}
	if opts.backend != nil {
		a.backend = *opts.backend
	} else {
		a.backend = detectBackend()
	}
	a.prober = newProber(a.backend)
	a.installer = newInstaller()

	var err error
	a.target, err = newTarget(a.backend, a.installer)
	if err != nil {
		return nil, err
	}

	display := opts.display
	if display == "" {
		display = cfg.Defaults.Display
	}
	displays := a.prober.ListDisplays(ctx, a.backend)

	deps := session.Deps{
		Calculator: newCalculator(),
		Target:     a.target,
		Restarter:  a.installer,
		Logger:     logger,
	}
	if opts.journal {
		a.journal = openJournal()
		if a.journal != nil {
			deps.Journal = a.journal
		}
	}

	a.ctrl, err = session.New(session.Settings{
		Request:     opts.request,
		Display:     display,
		Displays:    displays,
		ForceEnable: opts.force,
	}, deps)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// parseBackend parses a --backend value: x11, unknown, or a compositor name.
func parseBackend(s string) (*model.DisplayBackend, error) {
	var b model.DisplayBackend
	switch s {
	case "":
		return nil, nil
	case "x11":
		b = model.X11()
	case "unknown":
		b = model.UnknownBackend()
	case string(model.CompositorSway), string(model.CompositorHyprland), string(model.CompositorKDE), string(model.CompositorGNOME):
		b = model.Wayland(model.Compositor(s))
	default:
		return nil, fmt.Errorf("unknown backend %q (want x11, sway, hyprland, kde or gnome)", s)
	}
	return &b, nil
}
