package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/connecmaq/marketplace-api/api/handlers"
	"github.com/connecmaq/marketplace-api/api/scheduler"
	"github.com/connecmaq/marketplace-api/databases"
)

var digestTimeout time.Duration

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Send the unread message digest once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := handlers.App{Config: *conf}
		if err := a.Initialize(); err != nil {
			return err
		}
		defer a.Disconnect(context.Background())

		ctx, cancel := context.WithTimeout(cmd.Context(), digestTimeout)
		defer cancel()

		sent, err := newScheduler(a).RunOnce(ctx)
		if err != nil {
			zap.S().Errorw("unread digest failed", "error", err)
			return err
		}
		zap.S().Infow("unread digest sent", "emails", sent)
		return nil
	},
}

func init() {
	digestCmd.Flags().DurationVar(&digestTimeout, "timeout", 5*time.Minute, "upper bound for the whole run")
	rootCmd.AddCommand(digestCmd)
}

func newScheduler(a handlers.App) *scheduler.Scheduler {
	db := a.DB()
	return scheduler.NewScheduler(
		databases.NewChatRoomDatabase(db),
		databases.NewMessageDatabase(db),
		databases.NewUserDatabase(db),
		scheduler.NewSendgridMailer(conf.SendgridAPIKey, conf.DigestFromEmail),
		conf.BaseURL,
	)
}
