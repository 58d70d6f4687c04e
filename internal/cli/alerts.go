package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"homewatch/internal/models"
	"homewatch/internal/store"
)

func newAlertsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Inspect generated alerts",
	}

	listCmd := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's alerts",
		Example: `  homewatch alerts list u-42
  homewatch alerts list u-42 --area downtown --limit 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				output.Error("Store not available")
				return fmt.Errorf("store not available")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			areaID, _ := cmd.Flags().GetString("area")
			limit, _ := cmd.Flags().GetInt("limit")
			sinceDays, _ := cmd.Flags().GetInt("days")

			filter := store.AlertFilter{
				Kind:   models.AlertKindPriceReduction,
				AreaID: areaID,
				Limit:  limit,
			}
			if sinceDays > 0 {
				filter.Since = time.Now().UTC().AddDate(0, 0, -sinceDays)
			}

			alerts, err := app.Store.GetAlerts(ctx, args[0], filter)
			if err != nil {
				output.Error("Failed to list alerts: %v", err)
				return err
			}

			if output.IsJSON() {
				return output.JSON(alerts)
			}

			output.Bold("Alerts for %s", args[0])
			output.Printf("  %d alerts\n\n", len(alerts))
			if len(alerts) == 0 {
				return nil
			}

			rows := make([][]string, 0, len(alerts))
			for _, a := range alerts {
				rows = append(rows, []string{
					a.ListingID,
					a.AreaID,
					fmt.Sprintf("%d", a.PreviousPrice),
					fmt.Sprintf("%d", a.NewPrice),
					fmt.Sprintf("-%.1f%%", a.DropPercent*100),
					a.DetectedAt.Format("2006-01-02 15:04"),
				})
			}
			output.Table([]string{"Listing", "Area", "Was", "Now", "Drop", "Detected"}, rows)
			return nil
		},
	}
	listCmd.Flags().String("area", "", "filter by target area ID")
	listCmd.Flags().Int("limit", 50, "maximum alerts to show")
	listCmd.Flags().Int("days", 0, "only alerts detected in the last N days")
	cmd.AddCommand(listCmd)

	return cmd
}
