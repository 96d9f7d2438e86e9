package main

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/foreman/internal/config"
	"github.com/zulandar/foreman/internal/conflict"
	"github.com/zulandar/foreman/internal/notify"
	"github.com/zulandar/foreman/internal/planner"
)

// buildNotifiers returns every alert destination configured in cfg.
func buildNotifiers(ctx context.Context, cfg *config.Config) (notify.Multi, error) {
	var out notify.Multi
	n := cfg.Notify

	if n.Slack.Channel != "" {
		s, err := notify.NewSlack(notify.SlackOpts{Token: n.Slack.Token, Channel: n.Slack.Channel})
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if n.Discord.Channel != "" {
		d, err := notify.NewDiscord(notify.DiscordOpts{Token: n.Discord.Token, Channel: n.Discord.Channel})
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if n.GitHub.Repo != "" {
		g, err := notify.NewGitHub(ctx, notify.GitHubOpts{
			Token:       n.GitHub.Token,
			Repo:        n.GitHub.Repo,
			MinSeverity: conflict.Severity(n.GitHub.MinSeverity),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// digestBuilder renders the schedule digest from the planner's latest state.
func digestBuilder(pl *planner.Planner, perspective conflict.Perspective) notify.BuildFunc {
	return func(ctx context.Context, now time.Time) (notify.Alert, bool, error) {
		snap := pl.Snapshot()
		r := notify.BuildReport(snap.Tasks, pl.Analyze(perspective), snap.Critical, now)
		if r == nil {
			return notify.Alert{}, false, nil
		}
		return notify.FormatReport(pl.Project().Name, r), true, nil
	}
}

func describeNotifiers(m notify.Multi) string {
	if len(m) == 0 {
		return "none"
	}
	return fmt.Sprintf("%d destination(s)", len(m))
}
