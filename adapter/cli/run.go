package cli

import (
	"fmt"
	"net/http"

	internalApp "github.com/felixgeelhaar/slotwatch/internal/app"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll for an earlier slot and reschedule",
	Long: `Run the reschedule loop. Each cycle verifies the session, searches the
primary calendar for a date before the held appointment and commits the
first date that resolves to a full slot pair.

Exits 0 after a successful reschedule and 1 once the exception ceiling is
exceeded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := requireContainer()
		if err != nil {
			return err
		}
		if err := container.Config.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		orch, err := container.RescheduleOrchestrator()
		if err != nil {
			return err
		}
		return runLoop(cmd.Context(), cmd.OutOrStdout(), orch, container.Config.HealthAddr, healthHandlers(container))
	},
}

func healthHandlers(container *internalApp.Container) map[string]http.Handler {
	handlers := make(map[string]http.Handler, 2)
	if container.Health != nil {
		handlers["/readyz"] = container.Health.Handler()
	}
	if container.Metrics != nil {
		handlers["/metrics"] = container.Metrics.Handler()
	}
	return handlers
}

func init() {
	rootCmd.AddCommand(runCmd)
}
