package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/soundpin/internal/dbus"
	"github.com/jmylchreest/soundpin/internal/model"
)

var playOpts struct {
	delay time.Duration
	pin   string
}

var playCmd = &cobra.Command{
	Use:   "play SOUND",
	Short: "Play a sound",
	Long: `Ask soundpind to play SOUND after a delay.

Without --delay the daemon's default delay applies. With --pin the
playback can be stopped later with 'soundpin stop SOUND --pin PIN';
playing again with the same pin replaces the binding.

Nothing is played while quiet hours are in effect, or if SOUND does
not exist in the sounds directory when the request arrives.`,
	Example: `  soundpin play ding.wav
  soundpin play ringtone.ogg --pin call-42 --delay 500ms`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().DurationVar(&playOpts.delay, "delay", 0,
		"Delay before playback (0 or unset: the daemon's default delay)")
	playCmd.Flags().StringVar(&playOpts.pin, "pin", "",
		"Pin the playback so it can be stopped later")
}

func runPlay(cmd *cobra.Command, args []string) error {
	req := model.PlayRequest{
		Sound: args[0],
		Pin:   model.Pin(playOpts.pin),
	}
	if cmd.Flags().Changed("delay") {
		req.Delay = delayFlag(playOpts.delay)
	}

	return withClient(func(c *dbus.Client) error {
		if err := c.Play(req); err != nil {
			return err
		}
		logger.Debug("play requested", "sound", req.Sound, "pin", playOpts.pin)
		return nil
	})
}

// delayFlag converts a --delay value into a request delay. Negative values
// are clamped to zero.
func delayFlag(d time.Duration) *time.Duration {
	if d < 0 {
		d = 0
	}
	return model.Millis(d.Milliseconds())
}

var stopOpts struct {
	delay time.Duration
	pin   string
}

var stopCmd = &cobra.Command{
	Use:   "stop SOUND",
	Short: "Stop a pinned sound",
	Long: `Ask soundpind to stop the playback bound to --pin.

The stop happens after --delay (immediately by default). If nothing is
bound to the pin when the delay elapses, nothing happens.`,
	Example: `  soundpin stop ringtone.ogg --pin call-42`,
	Args:    cobra.ExactArgs(1),
	RunE:    runStop,
}

func init() {
	rootCmd.AddCommand(stopCmd)

	stopCmd.Flags().DurationVar(&stopOpts.delay, "delay", 0,
		"Delay before stopping")
	stopCmd.Flags().StringVar(&stopOpts.pin, "pin", "",
		"Pin the playback was started with (required)")
	_ = stopCmd.MarkFlagRequired("pin")
}

func runStop(cmd *cobra.Command, args []string) error {
	if stopOpts.pin == "" {
		return fmt.Errorf("--pin must not be empty")
	}

	req := model.StopRequest{
		Sound: args[0],
		Pin:   model.Pin(stopOpts.pin),
	}
	if cmd.Flags().Changed("delay") {
		req.Delay = delayFlag(stopOpts.delay)
	}

	return withClient(func(c *dbus.Client) error {
		return c.Stop(req)
	})
}
