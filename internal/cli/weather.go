package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vietddude/livesync/internal/infra/fetch"
	"github.com/vietddude/livesync/internal/integrations/weather"
)

var weatherCmd = &cobra.Command{
	Use:   "weather <place>",
	Short: "Geocode a place and print its current weather",
	Args:  cobra.MinimumNArgs(1),
	Run:   runWeather,
}

func init() {
	rootCmd.AddCommand(weatherCmd)
}

func runWeather(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	name := strings.Join(args, " ")

	policy := cfg.Fetch.Policy()
	f := fetch.NewFetcher(fetch.NewHTTPClient(cfg.Fetch.Timeout), fetch.WithLogger(slog.Default()))
	client := weather.NewClient(f, cfg.Weather.Client(policy), slog.Default())

	loc, cond, err := client.Lookup(context.Background(), name)
	switch {
	case errors.Is(err, weather.ErrLocationNotFound):
		fmt.Printf("No location found for %q\n", name)
		return
	case errors.Is(err, fetch.ErrValidation):
		slog.Error("Weather service returned an unexpected response", "error", err)
		os.Exit(1)
	case err != nil:
		slog.Error("Weather lookup failed", "place", name, "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s", loc.Name)
	if loc.Country != "" {
		fmt.Printf(", %s", loc.Country)
	}
	fmt.Printf(" (%.2f, %.2f)\n", loc.Latitude, loc.Longitude)
	fmt.Printf("  %s at %s\n", weather.Describe(cond.WeatherCode), cond.Time)
	fmt.Printf("  temperature %.1f°C, wind %.1f km/h, precipitation %.1f mm\n",
		cond.Temperature, cond.WindSpeed, cond.Precipitation)
}
