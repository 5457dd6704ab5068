package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
	"github.com/spf13/cobra"
)

var attemptsLimit int

var attemptsCmd = &cobra.Command{
	Use:   "attempts",
	Short: "List recorded reschedule attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := requireContainer()
		if err != nil {
			return err
		}
		return listAttempts(cmd.Context(), cmd.OutOrStdout(), container.AttemptRepo, container.Config.PortalScheduleID, attemptsLimit)
	},
}

func listAttempts(ctx context.Context, out io.Writer, repo domain.RescheduleAttemptRepository, caseID string, limit int) error {
	if repo == nil {
		return fmt.Errorf("attempt store not configured")
	}
	attempts, err := repo.ListByCase(ctx, caseID, limit)
	if err != nil {
		return fmt.Errorf("list attempts: %w", err)
	}
	if len(attempts) == 0 {
		fmt.Fprintln(out, "No reschedule attempts recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ATTEMPTED\tRESULT\tCONSULAR\tASC\tREASON")
	for _, a := range attempts {
		result := "failed"
		if a.Success {
			result = "success"
		}
		asc := "-"
		if a.SecondaryDate != nil {
			asc = fmt.Sprintf("%s %s", domain.FormatDate(*a.SecondaryDate), a.SecondaryTime)
		}
		reason := a.FailureReason
		if reason == "" {
			reason = "-"
		}
		if !verbose && len(reason) > 40 {
			reason = reason[:40] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\n",
			a.AttemptedAt.Format("2006-01-02 15:04"),
			result,
			domain.FormatDate(a.PrimaryDate), a.PrimaryTime,
			asc,
			reason,
		)
	}
	return w.Flush()
}

func init() {
	attemptsCmd.Flags().IntVarP(&attemptsLimit, "limit", "n", 20, "maximum number of attempts to show (0 for all)")
	rootCmd.AddCommand(attemptsCmd)
}
