package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vthunder/jarvis/internal/assistant"
	"github.com/vthunder/jarvis/internal/tui"
)

func newStatsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show commands, learning totals and the restored conversation context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), cfg, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			stats := a.assistant.Stats()
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			printStats(out, stats, a.assistant.Context().Format())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stats as JSON")
	return cmd
}

func printStats(out io.Writer, s assistant.Stats, transcript string) {
	heading := lipgloss.NewStyle().Foreground(tui.Accent).Bold(true)

	fmt.Fprintln(out, heading.Render(fmt.Sprintf("Commands (%d)", len(s.Commands))))
	fmt.Fprintf(out, "  %s\n", strings.Join(s.Commands, ", "))

	fmt.Fprintln(out, heading.Render("Learning"))
	if s.Learning == nil {
		fmt.Fprintln(out, "  disabled")
	} else {
		fmt.Fprintf(out, "  %s interactions, %s succeeded, %s failed\n",
			humanize.Comma(int64(s.Learning.Total)),
			humanize.Comma(int64(s.Learning.Successes)),
			humanize.Comma(int64(s.Learning.Failures)))
		if len(s.Learning.ByIntent) > 0 {
			fmt.Fprintf(out, "  by intent: %s\n", countList(s.Learning.ByIntent))
		}
		if len(s.Learning.ByCommand) > 0 {
			fmt.Fprintf(out, "  by command: %s\n", countList(s.Learning.ByCommand))
		}
	}

	fmt.Fprintln(out, heading.Render("Context"))
	if transcript == "" {
		fmt.Fprintln(out, "  (empty)")
		return
	}
	for _, line := range strings.Split(strings.TrimRight(transcript, "\n"), "\n") {
		fmt.Fprintf(out, "  %s\n", line)
	}
}

// countList renders counts as "a 3, b 1", highest first
func countList(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s %d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}
