package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/foreman/internal/ingest"
	"github.com/zulandar/foreman/internal/task"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import tasks from external sources",
	}

	cmd.AddCommand(newImportGCalCmd())
	return cmd
}

func newImportGCalCmd() *cobra.Command {
	var (
		configPath string
		from       string
		to         string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "gcal",
		Short: "Import tasks from Google Calendar",
		Long: `Reads events from the calendar configured under calendar.calendar_id and
upserts them as tasks. Extended private properties on an event carry the
trade, location, depends_on and resources fields. Cancelled events are
imported as deleted tasks.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportGCal(cmd, configPath, from, to, dryRun)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&from, "from", "", "window start, YYYY-MM-DD (default: project start or 90 days ago)")
	cmd.Flags().StringVar(&to, "to", "", "window end, YYYY-MM-DD (default: project end or one year ahead)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be imported without writing")
	return cmd
}

func runImportGCal(cmd *cobra.Command, configPath, from, to string, dryRun bool) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Calendar.CredentialsFile == "" || cfg.Calendar.CalendarID == "" {
		return fmt.Errorf("calendar.credentials_file and calendar.calendar_id must be set in %s", configPath)
	}

	now := time.Now()
	window := cfg.ProjectRange()
	start, end := now.AddDate(0, 0, -90), now.AddDate(1, 0, 0)
	if !window.Start.IsZero() {
		start = window.Start
	}
	if !window.End.IsZero() {
		end = window.End.AddDate(0, 0, 1)
	}
	if from != "" {
		if start, err = parseDay(from); err != nil {
			return err
		}
	}
	if to != "" {
		if end, err = parseDay(to); err != nil {
			return err
		}
	}

	cal, err := ingest.NewCalendar(ctx, cfg.Calendar.CredentialsFile, cfg.Calendar.CalendarID, cfg.Project.ID)
	if err != nil {
		return err
	}
	events, err := cal.Events(ctx, start, end)
	if err != nil {
		return err
	}
	tasks := task.FromEvents(events, now)
	fmt.Fprintf(out, "Read %d events from %s (%s to %s)\n", len(events), cfg.Calendar.CalendarID, formatDay(start), formatDay(end))

	imported, deleted := 0, 0
	for i := range tasks {
		t := &tasks[i]
		if dryRun {
			fmt.Fprintf(out, "  %s  %s  %s .. %s\n", t.ID, truncate(t.Title, 40), formatDay(t.StartDate), formatDay(t.EndDate))
			continue
		}
		if err := task.Upsert(gormDB, t); err != nil {
			return err
		}
		if t.Deleted() {
			deleted++
		} else {
			imported++
		}
	}

	if dryRun {
		fmt.Fprintln(out, "Dry run: nothing written.")
		return nil
	}
	fmt.Fprintf(out, "Imported %d tasks (%d cancelled)\n", imported, deleted)
	return nil
}
