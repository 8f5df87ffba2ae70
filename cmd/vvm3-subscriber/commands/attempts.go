package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vvmprov/vvm3-subscriber/internal/config"
	"github.com/vvmprov/vvm3-subscriber/pkg/db"
	"github.com/vvmprov/vvm3-subscriber/pkg/errors"
)

var attemptsCmd = &cobra.Command{
	Use:   "attempts",
	Short: "List all subscription attempts and their status",
	RunE:  runAttempts,
}

func init() {
	rootCmd.AddCommand(attemptsCmd)
}

func runAttempts(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}

	if err := ensureDirectories(cfg.SQLitePath, "", ""); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	attempts, err := repo.List()
	if err != nil {
		return errors.Wrap(err, "list failed")
	}

	if len(attempts) == 0 {
		fmt.Println("No attempts found")
		return nil
	}

	fmt.Printf("%-6s %-16s %-12s %-22s %-30s\n", "ID", "SUBSCRIBER", "STATUS", "FAILURE", "GATEWAY")
	fmt.Println("----------------------------------------------------------------------------------------")

	for _, attempt := range attempts {
		failure := attempt.FailureKind
		if failure == "" {
			failure = "-"
		}
		gatewayURL := attempt.GatewayURL
		if gatewayURL == "" {
			gatewayURL = "-"
		}

		fmt.Printf("%-6d %-16s %-12s %-22s %-30s\n",
			attempt.ID, attempt.SubscriberNumber, attempt.Status, failure, gatewayURL)
	}

	return nil
}
