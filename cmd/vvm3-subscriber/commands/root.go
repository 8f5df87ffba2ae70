package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "vvm3-subscriber",
	Short: "VVM3 visual voicemail self-provisioning client",
	Long:  `Subscribes a line to basic visual voicemail: resolves the self-provisioning gateway, clicks the subscribe link, and waits for the carrier's SMS confirmation.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("vmg-url", "", "Voicemail management gateway URL")
	rootCmd.PersistentFlags().String("device-model", "DROID_4G", "Device model reported to the gateway")
	rootCmd.PersistentFlags().Duration("request-timeout", 30*time.Second, "Per-request gateway timeout")
	rootCmd.PersistentFlags().Duration("confirmation-timeout", 60*time.Second, "SMS confirmation wait timeout")
	rootCmd.PersistentFlags().String("sms-spool-dir", ".artifacts/sms-spool", "Inbound SMS spool directory")
	rootCmd.PersistentFlags().String("sqlite-path", ".artifacts/attempts.db", "SQLite database path")
	rootCmd.PersistentFlags().String("fsm-db-path", ".artifacts/fsm.db", "FSM BoltDB path")
	rootCmd.PersistentFlags().Bool("allow-insecure", false, "Allow plain-HTTP gateway endpoints")

	viper.BindPFlag("vmg-url", rootCmd.PersistentFlags().Lookup("vmg-url"))
	viper.BindPFlag("device-model", rootCmd.PersistentFlags().Lookup("device-model"))
	viper.BindPFlag("request-timeout", rootCmd.PersistentFlags().Lookup("request-timeout"))
	viper.BindPFlag("confirmation-timeout", rootCmd.PersistentFlags().Lookup("confirmation-timeout"))
	viper.BindPFlag("sms-spool-dir", rootCmd.PersistentFlags().Lookup("sms-spool-dir"))
	viper.BindPFlag("sqlite-path", rootCmd.PersistentFlags().Lookup("sqlite-path"))
	viper.BindPFlag("fsm-db-path", rootCmd.PersistentFlags().Lookup("fsm-db-path"))
	viper.BindPFlag("allow-insecure", rootCmd.PersistentFlags().Lookup("allow-insecure"))
}
