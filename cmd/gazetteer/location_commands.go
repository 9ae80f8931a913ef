package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gazetteer/internal/catalog"
	"gazetteer/internal/textutil"
)

func newLocationCommand(ctx *commandContext) *cobra.Command {
	locationCmd := &cobra.Command{
		Use:   "location",
		Short: "Manage cataloged locations",
	}
	locationCmd.AddCommand(newLocationAddCommand(ctx))
	locationCmd.AddCommand(newLocationListCommand(ctx))
	return locationCmd
}

func newLocationAddCommand(ctx *commandContext) *cobra.Command {
	var (
		name         string
		jurisdiction string
		category     string
		subcategory  string
		author       string
		lat          float64
		lon          float64
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a location",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			// Jurisdiction and category codes are slugged by the store.
			location := &catalog.Location{
				Name:         strings.TrimSpace(name),
				Jurisdiction: jurisdiction,
				Category:     category,
				Subcategory:  subcategory,
				Author:       strings.TrimSpace(author),
			}

			latSet := cmd.Flags().Changed("lat")
			lonSet := cmd.Flags().Changed("lon")
			if latSet != lonSet {
				return fmt.Errorf("--lat and --lon must be provided together")
			}
			if latSet {
				location.GPSLat = &lat
				location.GPSLon = &lon
				location.GPSSource = "operator"
			}

			if existing, err := store.FindLocation(cmd.Context(), location.Name, location.Jurisdiction); err != nil {
				return err
			} else if existing != nil {
				return fmt.Errorf("location %q in %s already exists as %s", location.Name, location.Jurisdiction, existing.ID)
			}

			created, err := store.NewLocation(cmd.Context(), location)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s, %s) as %s\n",
				created.Name, textutil.TitleCase(created.Jurisdiction), textutil.TitleCase(created.Category), created.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Location name")
	cmd.Flags().StringVar(&jurisdiction, "jurisdiction", "", "Containing jurisdiction (town, county, region)")
	cmd.Flags().StringVar(&category, "category", "", "Category, normalized to a slug")
	cmd.Flags().StringVar(&subcategory, "subcategory", "", "Optional subcategory, normalized to a slug")
	cmd.Flags().StringVar(&author, "author", "", "Operator recording the location")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude in decimal degrees")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude in decimal degrees")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("jurisdiction")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func newLocationListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cataloged locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			locations, err := store.ListLocations(cmd.Context())
			if err != nil {
				return err
			}
			if len(locations) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No locations registered")
				return nil
			}

			rows := make([][]string, 0, len(locations))
			for _, location := range locations {
				gps := ""
				if location.HasGPS() {
					gps = fmt.Sprintf("%.5f, %.5f", *location.GPSLat, *location.GPSLon)
					if location.GPSSource != "" {
						gps += " (" + location.GPSSource + ")"
					}
				}
				rows = append(rows, []string{
					location.ID,
					location.Name,
					textutil.TitleCase(location.Jurisdiction),
					textutil.TitleCase(location.Category),
					gps,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Jurisdiction", "Category", "GPS"},
				rows,
				nil,
			))
			return nil
		},
	}
}
