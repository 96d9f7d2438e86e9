package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/foreman/internal/conflict"
	"github.com/zulandar/foreman/internal/cpm"
	"github.com/zulandar/foreman/internal/export"
	"github.com/zulandar/foreman/internal/models"
	"github.com/zulandar/foreman/internal/planner"
	"github.com/zulandar/foreman/internal/reschedule"
	"github.com/zulandar/foreman/internal/schedule"
)

func newScheduleCmd() *cobra.Command {
	var (
		configPath string
		scale      string
		width      int
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show the schedule as a Gantt chart",
		Long:  "Prints the task hierarchy against the time axis. Critical path tasks are drawn with '#'.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := schedule.ParseTimescale(scale)
			if err != nil {
				return err
			}
			if width <= 0 {
				width = terminalWidth()
			}
			return runSchedule(cmd, configPath, ts, width)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&scale, "scale", "week", "time scale (hour, day, week, month, quarter, year)")
	cmd.Flags().IntVar(&width, "width", 0, "output width in columns (default: terminal width)")
	return cmd
}

func runSchedule(cmd *cobra.Command, configPath string, scale schedule.Timescale, width int) error {
	ctx := context.Background()
	ws, err := openWorkspace(ctx, configPath)
	if err != nil {
		return err
	}
	pl := ws.planner(ctx, planner.Options{})
	defer pl.Close()

	out := cmd.OutOrStdout()
	if len(pl.Snapshot().Tasks) == 0 {
		fmt.Fprintln(out, "No tasks scheduled.")
		return nil
	}

	fmt.Fprintf(out, "%s\n\n", ws.project.Name)
	renderGantt(out, pl.Tree(), pl.Timeline(scale), width)
	return nil
}

func newCriticalCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "critical",
		Short: "Show the critical path",
		Long:  "Runs the critical path method over the dependency graph and prints each task's early/late dates and float.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCritical(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runCritical(cmd *cobra.Command, configPath string) error {
	ctx := context.Background()
	ws, err := openWorkspace(ctx, configPath)
	if err != nil {
		return err
	}
	pl := ws.planner(ctx, planner.Options{})
	defer pl.Close()

	snap := pl.Snapshot()
	if snap.CriticalErr != nil {
		var ce *cpm.CycleError
		if errors.As(snap.CriticalErr, &ce) {
			return fmt.Errorf("dependency cycle among %s; remove a link with 'fm task dep remove'", strings.Join(ce.TaskIDs, ", "))
		}
		return snap.CriticalErr
	}

	out := cmd.OutOrStdout()
	cp := snap.Critical
	if len(snap.Tasks) == 0 {
		fmt.Fprintln(out, "No tasks scheduled.")
		return nil
	}
	fmt.Fprintf(out, "Project: %s to %s (%d days)\n", formatDay(cp.ProjectStart), formatDay(cp.ProjectFinish()), cp.Length)
	fmt.Fprintf(out, "Critical path: %s\n\n", strings.Join(cp.Critical, " -> "))

	tasks := append([]models.Task(nil), snap.Tasks...)
	sort.SliceStable(tasks, func(i, j int) bool {
		return cp.Times[tasks[i].ID].EarlyStart < cp.Times[tasks[j].ID].EarlyStart
	})

	day := func(offset int) string { return formatDay(schedule.AddDays(cp.ProjectStart, offset)) }
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tTITLE\tEARLY START\tEARLY FINISH\tLATE START\tLATE FINISH\tFLOAT")
	for _, t := range tasks {
		tm := cp.Times[t.ID]
		mark := ""
		if t.CriticalPath {
			mark = "*"
		}
		// Finish offsets are exclusive.
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			mark, t.ID, truncate(t.Title, 30),
			day(tm.EarlyStart), day(tm.EarlyFinish-1), day(tm.LateStart), day(tm.LateFinish-1), tm.Float)
	}
	w.Flush()
	return nil
}

func newAnalyzeCmd() *cobra.Command {
	var (
		configPath  string
		perspective string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Detect scheduling conflicts",
		Long: `Evaluates every task pair against the trade rule base and prints the
conflicts the chosen perspective surfaces, with a 0-100 health score.

Perspectives: strict (everything), balanced (medium and above),
flexible (high and above).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, configPath, perspective)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&perspective, "perspective", "p", "", "analysis perspective (default from config)")
	return cmd
}

func runAnalyze(cmd *cobra.Command, configPath, perspective string) error {
	ctx := context.Background()
	ws, err := openWorkspace(ctx, configPath)
	if err != nil {
		return err
	}

	p := ws.cfg.Perspective()
	if perspective != "" {
		if p, err = conflict.ParsePerspective(perspective); err != nil {
			return err
		}
	}

	pl := ws.planner(ctx, planner.Options{})
	defer pl.Close()
	res := pl.Analyze(p)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Health score: %d/100 (%s)\n", res.Score, p)
	if len(res.Conflicts) == 0 {
		fmt.Fprintln(out, "No conflicts found.")
		return nil
	}
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEVERITY\tRULE\tTASKS\tSUGGESTION")
	for _, c := range res.Conflicts {
		tasks := c.TaskA
		if c.TaskB != "" {
			tasks += ", " + c.TaskB
		}
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\n", c.Severity, c.Rule.ID, c.Rule.Name, tasks, c.Suggestion)
	}
	w.Flush()

	if len(res.Suggestions) > 0 {
		fmt.Fprintln(out, "\nSuggestions:")
		for _, s := range res.Suggestions {
			fmt.Fprintf(out, "  - %s\n", s)
		}
	}
	return nil
}

func newMoveCmd() *cobra.Command {
	var (
		configPath string
		start      string
		status     string
	)

	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Reschedule a task",
		Long:  "Moves a task to a new start date keeping its duration, or to a new status column, then re-runs conflict analysis.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := reschedule.DropTarget{Status: status}
			if start != "" {
				d, err := parseDay(start)
				if err != nil {
					return err
				}
				target.Date = &d
			}
			if target.Date == nil && target.Status == "" {
				return fmt.Errorf("nothing to move; use --start or --status")
			}
			if status != "" && !schedule.ValidStatus(status) {
				return fmt.Errorf("invalid status %q", status)
			}
			return runMove(cmd, configPath, args[0], target)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&start, "start", "", "new start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	return cmd
}

func runMove(cmd *cobra.Command, configPath, id string, target reschedule.DropTarget) error {
	ctx := context.Background()
	ws, err := openWorkspace(ctx, configPath)
	if err != nil {
		return err
	}
	pl := ws.planner(ctx, planner.Options{})

	var (
		mu      sync.Mutex
		saveErr error
	)
	unsubscribe := pl.Subscribe(func(u planner.Update) {
		if u.Type == planner.UpdateError && u.TaskID == id {
			mu.Lock()
			saveErr = errors.New(u.Error)
			mu.Unlock()
		}
	})
	before := pl.Analyze(ws.cfg.Perspective())

	t, err := pl.Reschedule(ctx, id, target)
	if err != nil {
		pl.Close()
		unsubscribe()
		return err
	}
	pl.Close()
	unsubscribe()
	mu.Lock()
	defer mu.Unlock()
	if saveErr != nil {
		return saveErr
	}

	after := pl.Analyze(ws.cfg.Perspective())
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Moved %s to %s .. %s (%s)\n", t.ID, formatDay(t.StartDate), formatDay(t.EndDate), t.Status)
	fmt.Fprintf(out, "Health score: %d -> %d, conflicts: %d -> %d\n",
		before.Score, after.Score, len(before.Conflicts), len(after.Conflicts))
	return nil
}

func newExportCmd() *cobra.Command {
	var (
		configPath string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the schedule as project XML",
		Long:  "Writes the schedule in MS Project XML (MSPDI) format for import into other scheduling tools.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, configPath, outPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func runExport(cmd *cobra.Command, configPath, outPath string) error {
	ctx := context.Background()
	ws, err := openWorkspace(ctx, configPath)
	if err != nil {
		return err
	}
	pl := ws.planner(ctx, planner.Options{})
	defer pl.Close()
	tasks := pl.Snapshot().Tasks

	if outPath == "" {
		return export.WriteXML(cmd.OutOrStdout(), ws.project, tasks, time.Now())
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	if err := export.WriteXML(f, ws.project, tasks, time.Now()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d tasks to %s\n", len(tasks), outPath)
	return nil
}
