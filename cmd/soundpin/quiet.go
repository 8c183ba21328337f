package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/soundpin/internal/quiet"
)

var quietOpts struct {
	at string
}

// errQuiet makes the command exit non-zero while quiet hours are in effect.
var errQuiet = errors.New("quiet hours in effect")

var quietCmd = &cobra.Command{
	Use:   "quiet",
	Short: "Check whether quiet hours are in effect",
	Long: `Evaluate the configured quiet window now, or at the time of day given
with --at (HH:mm, today). Exits with status 1 while quiet hours are in
effect.

A window whose start is later than its end never matches.`,
	Example: `  soundpin quiet
  soundpin quiet --at 22:30`,
	RunE: runQuiet,
}

func init() {
	rootCmd.AddCommand(quietCmd)

	quietCmd.Flags().StringVar(&quietOpts.at, "at", "",
		"Time of day to evaluate (HH:mm, default: now)")
}

func runQuiet(cmd *cobra.Command, args []string) error {
	at, err := parseAt(quietOpts.at, time.Now())
	if err != nil {
		return err
	}

	inEffect, err := quiet.IsQuietNow(cfg.Quiet, at)
	if err != nil {
		return fmt.Errorf("invalid quiet window %s: %w", cfg.Quiet, err)
	}

	fmt.Println(describeQuiet(cfg.Quiet, inEffect, at))
	if inEffect {
		cmd.SilenceErrors = true
		return errQuiet
	}
	return nil
}

// parseAt places an HH:mm time of day on now's date. Empty means now.
func parseAt(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	t, err := time.ParseInLocation("15:04", s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: want HH:mm", s)
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location()), nil
}

func describeQuiet(w *quiet.Window, inEffect bool, at time.Time) string {
	if w == nil || w.Start == "" || w.End == "" {
		return "Quiet hours: not configured"
	}
	state := "not in effect"
	if inEffect {
		state = "in effect"
	}
	return fmt.Sprintf("Quiet hours %s: %s at %s", w, state, at.Format("15:04"))
}
