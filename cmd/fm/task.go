package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/foreman/internal/task"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Task management commands",
	}

	cmd.AddCommand(newTaskCreateCmd())
	cmd.AddCommand(newTaskListCmd())
	cmd.AddCommand(newTaskShowCmd())
	cmd.AddCommand(newTaskUpdateCmd())
	cmd.AddCommand(newTaskDeleteCmd())
	cmd.AddCommand(newTaskRestoreCmd())
	cmd.AddCommand(newTaskAssignCmd())
	cmd.AddCommand(newTaskDepCmd())
	return cmd
}

func newTaskCreateCmd() *cobra.Command {
	var (
		configPath  string
		title       string
		start       string
		end         string
		duration    int
		priority    string
		trade       string
		location    string
		description string
		parentID    string
		milestone   bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new task",
		Long:  "Creates a task with an auto-generated ID. Progress and status are derived from the dates.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := task.CreateOpts{
				Title:       title,
				Description: description,
				Duration:    duration,
				Priority:    priority,
				Trade:       trade,
				Location:    location,
				ParentID:    parentID,
				Milestone:   milestone,
			}
			var err error
			if opts.Start, err = parseDay(start); err != nil {
				return err
			}
			if end != "" {
				if opts.End, err = parseDay(end); err != nil {
					return err
				}
			}
			return runTaskCreate(cmd, configPath, opts)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&title, "title", "", "task title (required)")
	cmd.Flags().StringVar(&start, "start", "", "start date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&end, "end", "", "end date, YYYY-MM-DD")
	cmd.Flags().IntVar(&duration, "duration", 1, "duration in days when --end is not given")
	cmd.Flags().StringVar(&priority, "priority", "medium", "priority (low, medium, high, critical)")
	cmd.Flags().StringVar(&trade, "trade", "", "trade, e.g. framing or electrical")
	cmd.Flags().StringVar(&location, "location", "", "work area")
	cmd.Flags().StringVar(&description, "description", "", "detailed description")
	cmd.Flags().StringVar(&parentID, "parent", "", "parent task ID")
	cmd.Flags().BoolVar(&milestone, "milestone", false, "mark the task as a milestone")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("start")
	return cmd
}

func runTaskCreate(cmd *cobra.Command, configPath string, opts task.CreateOpts) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	opts.ProjectID = cfg.Project.ID

	t, err := task.Create(gormDB, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created task %s\n", t.ID)
	fmt.Fprintf(out, "Dates: %s to %s (%d days)\n", formatDay(t.StartDate), formatDay(t.EndDate), t.Duration)
	if t.ParentID != nil {
		fmt.Fprintf(out, "Parent: %s\n", *t.ParentID)
	}
	return nil
}

func newTaskListCmd() *cobra.Command {
	var (
		configPath string
		status     string
		trade      string
		parentID   string
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Long:  "Lists the project's tasks with optional filters. Output is formatted as a table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskList(cmd, configPath, task.ListFilters{
				Status:         status,
				Trade:          trade,
				ParentID:       parentID,
				IncludeDeleted: all,
			})
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&trade, "trade", "", "filter by trade")
	cmd.Flags().StringVar(&parentID, "parent", "", "filter by parent task")
	cmd.Flags().BoolVar(&all, "all", false, "include deleted tasks")
	return cmd
}

func runTaskList(cmd *cobra.Command, configPath string, filters task.ListFilters) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	filters.ProjectID = cfg.Project.ID

	tasks, err := task.List(gormDB, filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No tasks found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTART\tEND\tSTATUS\tPROG\tTRADE\tPRI")
	for _, t := range tasks {
		status := t.Status
		if t.Deleted() {
			status = "deleted"
		}
		trade := t.Trade
		if trade == "" {
			trade = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d%%\t%s\t%s\n",
			t.ID, truncate(t.Title, 40), formatDay(t.StartDate), formatDay(t.EndDate),
			status, t.Progress, trade, t.Priority)
	}
	w.Flush()
	return nil
}

func newTaskShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show task details",
		Long:  "Displays full details of a task including dependencies and resource assignments.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTaskShow(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runTaskShow(cmd *cobra.Command, configPath, id string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	t, err := task.Get(gormDB, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %s\n", t.ID)
	fmt.Fprintf(out, "Title:       %s\n", t.Title)
	fmt.Fprintf(out, "Dates:       %s to %s (%d days)\n", formatDay(t.StartDate), formatDay(t.EndDate), t.Duration)
	fmt.Fprintf(out, "Status:      %s (%d%%)\n", t.Status, t.Progress)
	fmt.Fprintf(out, "Priority:    %s\n", t.Priority)
	if t.Trade != "" {
		fmt.Fprintf(out, "Trade:       %s\n", t.Trade)
	}
	if t.Location != "" {
		fmt.Fprintf(out, "Location:    %s\n", t.Location)
	}
	if t.ParentID != nil {
		fmt.Fprintf(out, "Parent:      %s\n", *t.ParentID)
	}
	if t.Milestone {
		fmt.Fprintln(out, "Milestone:   yes")
	}
	if t.DeletedAt != nil {
		fmt.Fprintf(out, "Deleted:     %s\n", t.DeletedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(out, "Created:     %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Updated:     %s\n", t.UpdatedAt.Format("2006-01-02 15:04:05"))

	if t.Description != "" {
		fmt.Fprintf(out, "\nDescription:\n%s\n", t.Description)
	}

	if len(t.Deps) > 0 {
		fmt.Fprintln(out, "\nDepends on:")
		for _, d := range t.Deps {
			lag := ""
			if d.Lag != 0 {
				lag = fmt.Sprintf(" %+dd", d.Lag)
			}
			fmt.Fprintf(out, "  %s %s%s\n", d.DependsOn, d.Type, lag)
		}
	}

	if len(t.Resources) > 0 {
		fmt.Fprintln(out, "\nResources:")
		for _, a := range t.Resources {
			fmt.Fprintf(out, "  %s x%g\n", a.ResourceID, a.Units)
		}
	}
	return nil
}

func newTaskUpdateCmd() *cobra.Command {
	var (
		configPath  string
		title       string
		start       string
		end         string
		status      string
		progress    int
		priority    string
		trade       string
		location    string
		description string
		parentID    string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task",
		Long:  "Updates task fields. Status and priority are validated; changing a date recomputes the duration.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates := make(map[string]interface{})

			for flag, col := range map[string]string{"start": "start_date", "end": "end_date"} {
				if !cmd.Flags().Changed(flag) {
					continue
				}
				v, _ := cmd.Flags().GetString(flag)
				d, err := parseDay(v)
				if err != nil {
					return err
				}
				updates[col] = d
			}
			if cmd.Flags().Changed("title") {
				updates["title"] = title
			}
			if cmd.Flags().Changed("status") {
				updates["status"] = status
			}
			if cmd.Flags().Changed("progress") {
				updates["progress"] = progress
			}
			if cmd.Flags().Changed("priority") {
				updates["priority"] = priority
			}
			if cmd.Flags().Changed("trade") {
				updates["trade"] = trade
			}
			if cmd.Flags().Changed("location") {
				updates["location"] = location
			}
			if cmd.Flags().Changed("description") {
				updates["description"] = description
			}

			reparent := cmd.Flags().Changed("parent")
			if len(updates) == 0 && !reparent {
				return fmt.Errorf("no fields to update; use --title, --start, --end, --status, --progress, --priority, --trade, --location, --description or --parent")
			}
			return runTaskUpdate(cmd, configPath, args[0], updates, reparent, parentID)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&start, "start", "", "new start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "new end date, YYYY-MM-DD")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().IntVar(&progress, "progress", 0, "new progress percentage")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&trade, "trade", "", "new trade")
	cmd.Flags().StringVar(&location, "location", "", "new location")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&parentID, "parent", "", "new parent task ID; empty moves the task to the top level")
	return cmd
}

func runTaskUpdate(cmd *cobra.Command, configPath, id string, updates map[string]interface{}, reparent bool, parentID string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	if len(updates) > 0 {
		if err := task.Update(gormDB, id, updates); err != nil {
			return err
		}
	}
	if reparent {
		if err := task.SetParent(gormDB, id, parentID); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Updated task %s\n", id)
	return nil
}

func newTaskDeleteCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Long:  "Soft-deletes a task. Use 'fm task restore' to bring it back.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := task.SoftDelete(gormDB, args[0], time.Now()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[0])
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newTaskRestoreCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a deleted task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := task.Restore(gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored task %s\n", args[0])
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newTaskAssignCmd() *cobra.Command {
	var (
		configPath string
		resource   string
		units      float64
	)

	cmd := &cobra.Command{
		Use:   "assign <id>",
		Short: "Assign a resource to a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := task.Assign(gormDB, args[0], resource, units); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s x%g to %s\n", resource, units, args[0])
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&resource, "resource", "", "resource ID (required)")
	cmd.Flags().Float64Var(&units, "units", 1, "units allocated")
	cmd.MarkFlagRequired("resource")
	return cmd
}

func newTaskDepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage task dependencies",
	}

	cmd.AddCommand(newTaskDepAddCmd())
	cmd.AddCommand(newTaskDepListCmd())
	cmd.AddCommand(newTaskDepRemoveCmd())
	return cmd
}

func newTaskDepAddCmd() *cobra.Command {
	var (
		configPath string
		dependsOn  string
		depType    string
		lag        int
	)

	cmd := &cobra.Command{
		Use:   "add <task-id>",
		Short: "Add a dependency",
		Long:  "Links the task to a predecessor. Links that would close a cycle are rejected.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			depType = strings.ToUpper(depType)
			if err := task.AddDep(gormDB, args[0], dependsOn, depType, lag); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added dependency: %s depends on %s (%s)\n", args[0], dependsOn, depType)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&dependsOn, "on", "", "predecessor task ID (required)")
	cmd.Flags().StringVar(&depType, "type", "FS", "link type (FS, SS, FF, SF)")
	cmd.Flags().IntVar(&lag, "lag", 0, "lag in days, negative for lead")
	cmd.MarkFlagRequired("on")
	return cmd
}

func newTaskDepListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <task-id>",
		Short: "List task dependencies",
		Long:  "Shows the task's predecessors and the tasks that depend on it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			preds, succs, err := task.ListDeps(gormDB, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(preds) == 0 && len(succs) == 0 {
				fmt.Fprintf(out, "No dependencies for %s\n", args[0])
				return nil
			}

			if len(preds) > 0 {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(out, "Depends on:")
				fmt.Fprintln(w, "  PREDECESSOR\tTYPE\tLAG")
				for _, d := range preds {
					fmt.Fprintf(w, "  %s\t%s\t%d\n", d.DependsOn, d.Type, d.Lag)
				}
				w.Flush()
			}

			if len(succs) > 0 {
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(out, "Required by:")
				fmt.Fprintln(w, "  SUCCESSOR\tTYPE\tLAG")
				for _, d := range succs {
					fmt.Fprintf(w, "  %s\t%s\t%d\n", d.TaskID, d.Type, d.Lag)
				}
				w.Flush()
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newTaskDepRemoveCmd() *cobra.Command {
	var (
		configPath string
		dependsOn  string
	)

	cmd := &cobra.Command{
		Use:   "remove <task-id>",
		Short: "Remove a dependency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := task.RemoveDep(gormDB, args[0], dependsOn); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed dependency: %s on %s\n", args[0], dependsOn)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&dependsOn, "on", "", "predecessor task ID to unlink (required)")
	cmd.MarkFlagRequired("on")
	return cmd
}
