package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/felixgeelhaar/slotwatch/internal/booking/application"
	"github.com/felixgeelhaar/slotwatch/internal/booking/domain"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one search and print the candidate without booking",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := requireContainer()
		if err != nil {
			return err
		}
		if err := container.Config.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		target, err := container.Target()
		if err != nil {
			return err
		}
		return checkCandidate(cmd.Context(), cmd.OutOrStdout(), container.Guard, container.Search, target)
	},
}

func checkCandidate(
	ctx context.Context,
	out io.Writer,
	auth application.Authenticator,
	finder application.CandidateFinder,
	target domain.TargetSchedule,
) error {
	if err := auth.EnsureAuthenticated(ctx); err != nil {
		return err
	}
	candidate, err := finder.FindCandidate(ctx, target)
	if err != nil {
		return err
	}
	if candidate == nil {
		fmt.Fprintf(out, "no slot earlier than %s\n", target)
		return nil
	}

	primary := candidate.Primary()
	fmt.Fprintf(out, "earlier slot: %s %s (facility %s)\n",
		domain.FormatDate(primary.Date()), primary.Time(), primary.FacilityID())
	if secondary, ok := candidate.Secondary(); ok {
		fmt.Fprintf(out, "asc slot:     %s %s (facility %s)\n",
			domain.FormatDate(secondary.Date()), secondary.Time(), secondary.FacilityID())
	}
	return nil
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
