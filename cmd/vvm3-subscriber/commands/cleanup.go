package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vvmprov/vvm3-subscriber/internal/config"
	"github.com/vvmprov/vvm3-subscriber/pkg/db"
	"github.com/vvmprov/vvm3-subscriber/pkg/errors"
)

var (
	cleanupSpool bool
	cleanupFSM   bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove finished attempts and stale artifacts",
	Long: `Removes attempts in a terminal state (ready, new, failed) from the
database. Optionally also clears the SMS spool and the FSM journal.`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().BoolVar(&cleanupSpool, "spool", false, "Also clear the SMS spool directory")
	cleanupCmd.Flags().BoolVar(&cleanupFSM, "fsm", false, "Also remove the FSM journal")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	removed, err := repo.DeleteTerminal()
	if err != nil {
		return errors.Wrap(err, "cleanup failed")
	}
	fmt.Printf("Removed %d finished attempts\n", removed)

	if cleanupSpool {
		if err := clearSpool(cfg.SMSSpoolDir); err != nil {
			return errors.Wrap(err, "spool cleanup failed")
		}
		fmt.Printf("Cleared spool: %s\n", cfg.SMSSpoolDir)
	}

	if cleanupFSM {
		if err := os.Remove(cfg.FSMDBPath); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "FSM journal cleanup failed")
		}
		fmt.Printf("Removed FSM journal: %s\n", cfg.FSMDBPath)
	}

	return nil
}

func clearSpool(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
