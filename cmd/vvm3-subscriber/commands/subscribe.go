package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/superfly/fsm"

	"github.com/vvmprov/vvm3-subscriber/internal/config"
	"github.com/vvmprov/vvm3-subscriber/pkg/db"
	"github.com/vvmprov/vvm3-subscriber/pkg/errors"
	"github.com/vvmprov/vvm3-subscriber/pkg/events"
	"github.com/vvmprov/vvm3-subscriber/pkg/gateway"
	"github.com/vvmprov/vvm3-subscriber/pkg/security"
	"github.com/vvmprov/vvm3-subscriber/pkg/sms"
	"github.com/vvmprov/vvm3-subscriber/pkg/subscription"
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <subscriber-number>",
	Short: "Subscribe a line to basic visual voicemail",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubscribe,
}

func init() {
	rootCmd.AddCommand(subscribeCmd)
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	subscriberNumber := args[0]

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "config load failed")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "config invalid")
	}

	if err := ensureDirectories(cfg.SQLitePath, cfg.FSMDBPath, cfg.SMSSpoolDir); err != nil {
		return err
	}

	repo, err := db.NewRepository(cfg.SQLitePath)
	if err != nil {
		return errors.Wrap(err, "db init failed")
	}
	defer repo.Close()

	sink := events.LogSink()

	// One attempt, one client: the session jar must not outlive the attempt.
	client, err := gateway.NewClient(nil, sink, cfg.RequestTimeout)
	if err != nil {
		return errors.Wrap(err, "gateway client failed")
	}
	defer client.Close()

	source := sms.NewSpoolSource(cfg.SMSSpoolDir, cfg.SMSSpoolInterval)
	waiter := sms.NewWaiter(source, sink, cfg.ConfirmationTimeout)
	validator := security.NewValidator(cfg.AllowInsecure)

	handlers := subscription.Handlers{
		Commit: func(ctx context.Context, msg sms.StatusMessage) error {
			slog.Info("voicemail_activated", "subscriber", subscriberNumber, "return_code", msg.ReturnCode())
			return nil
		},
		Continue: func(ctx context.Context, msg sms.StatusMessage) error {
			slog.Info("subscriber_new_continuing_provisioning", "subscriber", subscriberNumber)
			return nil
		},
		Abort: func(err error) {
			slog.Error("subscription_aborted", "subscriber", subscriberNumber, "error", err)
		},
	}

	manager, err := fsm.New(fsm.Config{DBPath: cfg.FSMDBPath})
	if err != nil {
		return errors.Wrap(err, "FSM manager failed")
	}
	defer manager.Shutdown(10 * time.Second)

	machine := subscription.NewMachine(repo, client, waiter, validator, sink, handlers, cfg.VMGURL)
	start, _, err := machine.Register(ctx, manager)
	if err != nil {
		return errors.Wrap(err, "FSM register failed")
	}

	req := &subscription.SubscribeRequest{
		SubscriberNumber: subscriberNumber,
		DeviceModel:      cfg.DeviceModel,
	}
	resp := &subscription.SubscribeResponse{}

	version, err := start(ctx, subscriberNumber, fsm.NewRequest(req, resp))
	if err != nil {
		return errors.Wrap(err, "FSM start failed")
	}

	slog.Info("fsm started", "version", version)

	if err := manager.Wait(ctx, version); err != nil {
		return errors.Wrap(err, "subscription attempt failed")
	}

	slog.Info("subscribe completed", "status", resp.Status, "attempt_id", resp.AttemptID)

	return nil
}
