package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/soundpin/internal/daemon"
	"github.com/jmylchreest/soundpin/internal/dbus"
)

var statusOpts struct {
	output string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show soundpind status",
	Long: `Show whether soundpind is configured, whether quiet hours are in
effect, the pins currently bound and the play and stop requests still
waiting for their delay.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusOpts.output, "output", "o", "text",
		"Output format (text, json, yaml)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	var raw string
	err := withClient(func(c *dbus.Client) error {
		var err error
		raw, err = c.Status()
		return err
	})
	if err != nil {
		return err
	}

	var status daemon.Status
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return fmt.Errorf("failed to decode status: %w", err)
	}

	return writeStatus(os.Stdout, status, statusOpts.output, time.Now())
}

// writeStatus renders status in the requested format.
func writeStatus(w io.Writer, status daemon.Status, format string, now time.Time) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(status); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		_, err := io.WriteString(w, formatStatus(status, now))
		return err
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

// formatStatus renders status for humans.
func formatStatus(status daemon.Status, now time.Time) string {
	var b strings.Builder

	if !status.Configured {
		b.WriteString("Configured: no (waiting for configuration)\n")
		return b.String()
	}

	b.WriteString("Configured: yes\n")
	fmt.Fprintf(&b, "Sounds:     %s\n", status.SoundsDir)

	switch {
	case status.QuietWindow == "":
		b.WriteString("Quiet:      never\n")
	case status.Quiet:
		fmt.Fprintf(&b, "Quiet:      in effect (%s)\n", status.QuietWindow)
	default:
		fmt.Fprintf(&b, "Quiet:      not in effect (%s)\n", status.QuietWindow)
	}

	fmt.Fprintf(&b, "Delay:      %s by default\n", status.DefaultDelay.Duration())

	if len(status.Pins) == 0 {
		b.WriteString("Pins:       none\n")
	} else {
		fmt.Fprintf(&b, "Pins:       %s\n", strings.Join(status.Pins, ", "))
	}

	if len(status.Pending) == 0 {
		b.WriteString("Pending:    none\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Pending:    %s\n", humanize.Comma(int64(len(status.Pending))))
	for _, t := range status.Pending {
		line := fmt.Sprintf("  %-4s %s", t.Kind, t.Sound)
		if t.Pin != "" {
			line += fmt.Sprintf(" [pin %s]", t.Pin)
		}
		line += " " + humanize.RelTime(t.Due, now, "ago", "from now")
		b.WriteString(line + "\n")
	}

	return b.String()
}
