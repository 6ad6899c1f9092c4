package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vthunder/jarvis/internal/intent"
	"github.com/vthunder/jarvis/internal/storage"
	"github.com/vthunder/jarvis/internal/tasks"
	"github.com/vthunder/jarvis/internal/tui"
	"github.com/vthunder/jarvis/internal/types"
)

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage the task list",
	}

	var due, priority string
	add := &cobra.Command{
		Use:   "add TITLE...",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, _, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			now := time.Now()
			var dueAt *time.Time
			if strings.TrimSpace(due) != "" {
				t, ok := intent.ParseDate(due, now)
				if !ok {
					return fmt.Errorf("could not understand due date %q", due)
				}
				dueAt = &t
			}
			task, err := tasks.NewManager(db).AddTask(ctx, strings.Join(args, " "), dueAt, priority)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", task.Title, task.ID)
			return nil
		},
	}
	add.Flags().StringVar(&due, "due", "", "due date, e.g. tomorrow, friday, 2025-03-14, in 2 hours")
	add.Flags().StringVar(&priority, "priority", "", "low, medium, high or urgent (default medium)")

	var filter string
	list := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, _, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			list, err := tasks.NewManager(db).ListTasks(ctx, filter)
			if err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), list, time.Now())
			return nil
		},
	}
	list.Flags().StringVar(&filter, "filter", "open", "open, completed, all, or a priority level")

	done := &cobra.Command{
		Use:   "done ID",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, _, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			task, err := tasks.NewManager(db).CompleteTask(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Completed %s\n", task.Title)
			return nil
		},
	}

	cmd.AddCommand(add, list, done)
	return cmd
}

func printTasks(out io.Writer, list []storage.Task, now time.Time) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No tasks.")
		return
	}
	rows := make([][]string, 0, len(list))
	for _, t := range list {
		dueText := "-"
		if t.DueDate != nil {
			dueText = humanize.RelTime(*t.DueDate, now, "ago", "from now")
		}
		status := "open"
		if t.Completed {
			status = "done"
		}
		rows = append(rows, []string{shortID(t.ID), t.Title, t.Priority, dueText, status})
	}

	cell := lipgloss.NewStyle().Padding(0, 1)
	header := cell.Foreground(tui.Accent).Bold(true)
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(tui.Muted)).
		Headers("ID", "TITLE", "PRIORITY", "DUE", "STATUS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return header
			case row < 0 || row >= len(rows):
				return cell
			case col == 2 && rows[row][2] == "urgent":
				return cell.Foreground(tui.Danger)
			case col == 4 && rows[row][4] == "done":
				return cell.Foreground(tui.Muted)
			}
			return cell
		})
	fmt.Fprintln(out, tbl.Render())
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newMoodCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "mood",
		Short: "Show mood trends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, _, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			logs, err := db.MoodTrends(ctx, time.Now(), days)
			if err != nil {
				return err
			}
			printMoods(cmd.OutOrStdout(), logs, days)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "window in days")
	return cmd
}

func printMoods(out io.Writer, logs []storage.MoodLog, days int) {
	if len(logs) == 0 {
		fmt.Fprintf(out, "No mood logs in the last %d days.\n", days)
		return
	}
	fmt.Fprintf(out, "%s over the last %d days:\n", humanize.Comma(int64(len(logs)))+" exchanges", days)
	for _, c := range storage.SummarizeMoods(logs) {
		pct := float64(c.Count) * 100 / float64(len(logs))
		bar := lipgloss.NewStyle().Foreground(tui.MoodColor(types.Mood(c.Mood))).Render(strings.Repeat("#", int(pct/5)))
		fmt.Fprintf(out, "  %-13s %4d  %5.1f%%  %s\n", c.Mood, c.Count, pct, bar)
	}
}

func newPersonalityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "personality [NAME]",
		Short: "Show or set the personality",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, session, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				cur := session.Current()
				fmt.Fprintf(out, "Personality: %s (style %s, theme %s)\n", cur.Name, cur.ResponseStyle, session.Theme())
				fmt.Fprintf(out, "Available: %s\n", strings.Join(session.Catalog().Names(), ", "))
				return nil
			}
			p, err := session.SetPersonality(ctx, strings.ToLower(args[0]))
			if err != nil {
				return fmt.Errorf("%w (available: %s)", err, strings.Join(session.Catalog().Names(), ", "))
			}
			fmt.Fprintf(out, "Personality changed to %s.\n", p.Name)
			return nil
		},
	}
}
