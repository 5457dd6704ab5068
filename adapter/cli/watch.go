package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/slotwatch/internal/booking/application"
	"github.com/spf13/cobra"
)

var watchWeekdays []string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the primary facility and notify on earlier dates",
	Long: `Watch polls the primary facility only and sends a notification when a
date earlier than the held appointment appears. Nothing is booked.

An empty listing is treated as a suspected ban and triggers the cooldown.`,
	Example: `  slotwatch watch
  slotwatch watch --weekdays mon,tue,fri`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := weekdayFilter(watchWeekdays)
		if err != nil {
			return err
		}
		container, err := requireContainer()
		if err != nil {
			return err
		}
		if err := container.Config.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		orch, err := container.WatchOrchestrator(filter)
		if err != nil {
			return err
		}
		return runLoop(cmd.Context(), cmd.OutOrStdout(), orch, container.Config.HealthAddr, healthHandlers(container))
	},
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// weekdayFilter accepts dates on the named weekdays. No names means no filter.
func weekdayFilter(names []string) (application.DateFilter, error) {
	if len(names) == 0 {
		return nil, nil
	}
	allowed := make(map[time.Weekday]bool, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if len(key) > 3 {
			key = key[:3]
		}
		day, ok := weekdayNames[key]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		allowed[day] = true
	}
	return func(date time.Time) bool {
		return allowed[date.Weekday()]
	}, nil
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchWeekdays, "weekdays", nil, "only report dates on these weekdays (e.g. mon,tue)")
	rootCmd.AddCommand(watchCmd)
}
