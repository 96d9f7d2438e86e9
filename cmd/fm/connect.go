package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/foreman/internal/config"
	"github.com/zulandar/foreman/internal/conflict"
	"github.com/zulandar/foreman/internal/db"
	"github.com/zulandar/foreman/internal/models"
	"github.com/zulandar/foreman/internal/planner"
	"github.com/zulandar/foreman/internal/store"
	"gorm.io/gorm"
)

const defaultConfigPath = "foreman.yaml"

func addConfigFlag(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", defaultConfigPath, "path to Foreman config file")
}

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// workspace is everything a scheduling command needs: config, store and
// the project's live tasks.
type workspace struct {
	cfg       *config.Config
	db        *gorm.DB
	tasks     *store.Tasks
	project   models.Project
	resources []models.Resource
	live      []models.Task
}

func openWorkspace(ctx context.Context, configPath string) (*workspace, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	ws := &workspace{cfg: cfg, db: gormDB, tasks: store.NewTasks(gormDB)}

	if ws.project, err = ws.tasks.Project(ctx, cfg.Project.ID); err != nil {
		return nil, err
	}
	if ws.resources, err = ws.tasks.Resources(ctx); err != nil {
		return nil, err
	}
	if ws.live, err = ws.tasks.List(ctx, cfg.Project.ID); err != nil {
		return nil, err
	}
	return ws, nil
}

func (ws *workspace) engine() *conflict.Engine {
	e := conflict.NewEngine(ws.cfg.KnowledgeBase())
	e.Weights = ws.cfg.Weights()
	return e
}

// planner builds a live planner persisting through the store.
func (ws *workspace) planner(ctx context.Context, opts planner.Options) *planner.Planner {
	opts.Project = ws.project
	opts.Engine = ws.engine()
	opts.Perspective = ws.cfg.Perspective()
	opts.Weather = &ws.cfg.Analysis.Weather
	opts.Disabled = ws.cfg.DisabledRules()
	opts.Resources = ws.resources
	opts.Persister = ws.tasks
	opts.Feedback = &store.Feedback{DB: ws.db}
	opts.Debounce = ws.cfg.Reschedule.Debounce
	opts.DeletionGrace = ws.cfg.Reschedule.DeletionGrace
	opts.ActivationDistance = ws.cfg.Reschedule.ActivationDistance
	return planner.New(ctx, ws.live, opts)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func parseDay(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}
