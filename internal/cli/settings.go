package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"homewatch/internal/models"
)

func newSettingsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage per-user alert settings",
	}

	setCmd := &cobra.Command{
		Use:   "set <user-id>",
		Short: "Create or replace a user's alert settings",
		Example: `  homewatch settings set u-42 --areas downtown,westside
  homewatch settings set u-42 --areas downtown --min 400000 --max 900000`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				output.Error("Store not available")
				return fmt.Errorf("store not available")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			areasFlag, _ := cmd.Flags().GetString("areas")
			minPrice, _ := cmd.Flags().GetInt64("min")
			maxPrice, _ := cmd.Flags().GetInt64("max")
			disabled, _ := cmd.Flags().GetBool("disabled")

			var areas []models.TargetArea
			for _, id := range strings.Split(areasFlag, ",") {
				id = strings.TrimSpace(id)
				if id != "" {
					areas = append(areas, models.TargetArea{ID: id, Name: id})
				}
			}

			settings := &models.AlertSettings{
				UserID:      args[0],
				TargetAreas: areas,
				UpdatedAt:   time.Now().UTC(),
			}
			if !disabled {
				settings.EnabledAlertTypes = []string{models.AlertKindPriceReduction}
			}
			if minPrice > 0 || maxPrice > 0 {
				pr := models.PriceRange{Min: minPrice, Max: maxPrice}
				if !pr.Valid() {
					output.Error("Invalid price range: min %d, max %d", minPrice, maxPrice)
					return fmt.Errorf("invalid price range")
				}
				settings.PriceRange = &pr
			}

			if err := app.Store.SaveAlertSettings(ctx, settings); err != nil {
				output.Error("Failed to save settings: %v", err)
				return err
			}

			output.Success("Settings saved for %s (%d areas)", args[0], len(areas))
			return nil
		},
	}
	setCmd.Flags().String("areas", "", "comma-separated target area IDs")
	setCmd.Flags().Int64("min", 0, "minimum alert price (0 = unbounded)")
	setCmd.Flags().Int64("max", 0, "maximum alert price (0 = unbounded)")
	setCmd.Flags().Bool("disabled", false, "store settings with price-reduction alerts disabled")
	cmd.AddCommand(setCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a user's alert settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.Store == nil {
				output.Error("Store not available")
				return fmt.Errorf("store not available")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			settings, err := app.Store.GetAlertSettings(ctx, args[0])
			if err != nil {
				output.Error("Failed to get settings: %v", err)
				return err
			}
			if settings == nil {
				output.Warning("No settings for %s", args[0])
				return nil
			}

			if output.IsJSON() {
				return output.JSON(settings)
			}

			output.Bold("Settings for %s", settings.UserID)
			output.Printf("  Alert types: %s\n", strings.Join(settings.EnabledAlertTypes, ", "))
			output.Printf("  Areas:       ")
			ids := make([]string, 0, len(settings.TargetAreas))
			for _, a := range settings.TargetAreas {
				ids = append(ids, a.ID)
			}
			output.Printf("%s\n", strings.Join(ids, ", "))
			if settings.PriceRange != nil {
				output.Printf("  Price range: %d - %d\n", settings.PriceRange.Min, settings.PriceRange.Max)
			}
			return nil
		},
	})

	return cmd
}
