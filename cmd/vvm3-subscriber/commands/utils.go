package commands

import (
	"os"
	"path/filepath"

	"github.com/vvmprov/vvm3-subscriber/pkg/errors"
)

// ensureDirectories creates all necessary directories for the application
func ensureDirectories(sqlitePath, fsmDBPath, spoolDir string) error {
	// Create database directory
	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
		return errors.Wrap(err, "failed to create database directory")
	}

	// FSM journal directory (only needed for subscribe command)
	if fsmDBPath != "" {
		if err := os.MkdirAll(filepath.Dir(fsmDBPath), 0755); err != nil {
			return errors.Wrap(err, "failed to create FSM directory")
		}
	}

	// SMS spool directory (only needed for subscribe command)
	if spoolDir != "" {
		if err := os.MkdirAll(spoolDir, 0755); err != nil {
			return errors.Wrap(err, "failed to create spool directory")
		}
	}

	return nil
}
