package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/slotwatch/internal/booking/application"
	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify <message>",
	Short: "Send a test message to every notification channel",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := requireContainer()
		if err != nil {
			return err
		}
		return sendNotification(cmd.Context(), cmd.OutOrStdout(), container.Notifier, strings.Join(args, " "))
	},
}

func sendNotification(ctx context.Context, out io.Writer, hub *application.NotificationHub, message string) error {
	if hub == nil {
		return fmt.Errorf("notifier not configured")
	}
	channels := hub.Channels()
	if len(channels) == 0 {
		fmt.Fprintln(out, "No notification channels configured.")
		return nil
	}
	hub.Notify(ctx, message)
	fmt.Fprintf(out, "Dispatched to: %s\n", strings.Join(channels, ", "))
	return nil
}

func init() {
	rootCmd.AddCommand(notifyCmd)
}
