// Package bootstrap prepares the tracker's runtime environment and hands
// execution off to the tracker binary. Setup is idempotent: the state
// directory and the install marker are created once and only checked on
// later runs.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// ErrConfigMissing is returned when the configuration file does not exist.
// The remediation steps have already been written to stderr at that point.
var ErrConfigMissing = errors.New("configuration file missing")

// depsMarker records that the one-time install step completed. Its mere
// existence is the record; the file stays empty.
const depsMarker = ".deps-installed"

// InstallFunc performs the one-time dependency install step.
type InstallFunc func(ctx context.Context) error

// DelegateFunc runs the tracker program and returns its exit code.
type DelegateFunc func(ctx context.Context) (int, error)

// Launcher runs the bootstrap sequence: ensure the state directory, run
// the install step once, require the configuration file, then delegate.
type Launcher struct {
	stateDir       string
	configPath     string
	configTemplate string

	install  InstallFunc
	delegate DelegateFunc

	stderr io.Writer
	log    *slog.Logger
}

// Option configures the Launcher.
type Option func(*Launcher)

// WithStderr redirects the remediation message for testing.
func WithStderr(w io.Writer) Option {
	return func(l *Launcher) {
		l.stderr = w
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Launcher) {
		l.log = log
	}
}

// New creates a Launcher. configTemplate is only named in the remediation
// message shown when configPath is missing.
func New(
	stateDir string,
	configPath string,
	configTemplate string,
	install InstallFunc,
	delegate DelegateFunc,
	opts ...Option,
) *Launcher {
	l := &Launcher{
		stateDir:       stateDir,
		configPath:     configPath,
		configTemplate: configTemplate,
		install:        install,
		delegate:       delegate,
		stderr:         os.Stderr,
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes the bootstrap sequence and returns the process exit code.
// A missing configuration file prints remediation steps and returns 1 with
// ErrConfigMissing; once delegation starts, the delegate's exit code is
// passed through unchanged.
func (l *Launcher) Run(ctx context.Context) (int, error) {
	if err := os.MkdirAll(l.stateDir, 0o755); err != nil {
		return 1, fmt.Errorf("creating state directory: %w", err)
	}

	installed, err := l.depsInstalled()
	if err != nil {
		return 1, err
	}
	if !installed {
		l.log.Info("running one-time install step", "state_dir", l.stateDir)
		if err := l.install(ctx); err != nil {
			return 1, fmt.Errorf("installing dependencies: %w", err)
		}
		if err := l.writeDepsMarker(); err != nil {
			return 1, err
		}
	}

	if err := l.checkConfig(); err != nil {
		return 1, err
	}

	return l.delegate(ctx)
}

func (l *Launcher) depsInstalled() (bool, error) {
	_, err := os.Stat(filepath.Join(l.stateDir, depsMarker))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking install marker: %w", err)
	}
	return true, nil
}

func (l *Launcher) writeDepsMarker() error {
	marker := filepath.Join(l.stateDir, depsMarker)
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		return fmt.Errorf("writing install marker: %w", err)
	}
	return nil
}

func (l *Launcher) checkConfig() error {
	_, err := os.Stat(l.configPath)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(l.stderr,
			"Configuration file %s not found.\n\nTo get started:\n  1. cp %s %s\n  2. Edit %s and fill in your eBay API credentials\n",
			l.configPath,
			l.configTemplate,
			l.configPath,
			l.configPath,
		)
		return ErrConfigMissing
	}
	if err != nil {
		return fmt.Errorf("checking configuration file: %w", err)
	}
	return nil
}

// Command returns a DelegateFunc that runs the named program with inherited
// stdio and passes its exit code through.
func Command(name string, args ...string) DelegateFunc {
	return func(ctx context.Context) (int, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		err := cmd.Run()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		if err != nil {
			return 1, fmt.Errorf("running %s: %w", name, err)
		}
		return 0, nil
	}
}
