// Package main implements the bootstrap launcher. It prepares the runtime
// environment on first use (state directory, database schema), verifies the
// configuration file exists, and then hands off to `ebay-tracker serve`,
// passing its exit code through.
package main

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/skireal/ebay-tracker/internal/bootstrap"
	"github.com/skireal/ebay-tracker/internal/store"
	"github.com/skireal/ebay-tracker/pkg/logger"
)

const (
	defaultStateDir   = "db"
	defaultConfigPath = "config.yaml"
	configTemplate    = "config.example.yaml"
	trackerName       = "ebay-tracker"
)

func main() {
	log := logger.New("info", "text")

	stateDir := envOr("EBAY_LAUNCHER_STATE_DIR", defaultStateDir)
	configPath := envOr("EBAY_LAUNCHER_CONFIG", defaultConfigPath)

	launcher := bootstrap.New(
		stateDir,
		configPath,
		configTemplate,
		installDatabase(stateDir),
		bootstrap.Command(trackerBinary(), "serve", "--config", configPath),
		bootstrap.WithLogger(log),
	)

	code, err := launcher.Run(context.Background())
	if err != nil && !errors.Is(err, bootstrap.ErrConfigMissing) {
		log.Error("bootstrap failed", "error", err)
	}
	os.Exit(code)
}

// installDatabase creates the SQLite database and applies the schema.
// Opening the store runs all pending migrations.
func installDatabase(stateDir string) bootstrap.InstallFunc {
	return func(_ context.Context) error {
		s, err := store.Open(filepath.Join(stateDir, "tracker.db"))
		if err != nil {
			return err
		}
		return s.Close()
	}
}

// trackerBinary locates the tracker executable: the EBAY_LAUNCHER_TRACKER
// override first, then next to the launcher itself, then on PATH.
func trackerBinary() string {
	if override := os.Getenv("EBAY_LAUNCHER_TRACKER"); override != "" {
		return override
	}
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), trackerName)
		if _, err := os.Stat(sibling); err == nil {
			return sibling
		}
	}
	if path, err := exec.LookPath(trackerName); err == nil {
		return path
	}
	return trackerName
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
