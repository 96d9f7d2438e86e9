// Package config provides YAML-based configuration loading for Foreman.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/zulandar/foreman/internal/conflict"
	"github.com/zulandar/foreman/internal/models"
	"github.com/zulandar/foreman/internal/notify"
	"github.com/zulandar/foreman/internal/reschedule"
	"github.com/zulandar/foreman/internal/schedule"
	"gopkg.in/yaml.v3"
)

// dateLayout is the format of project dates in foreman.yaml.
const dateLayout = "2006-01-02"

// Config is the top-level Foreman configuration, loaded from foreman.yaml.
type Config struct {
	Project    ProjectConfig                       `yaml:"project"`
	Database   DatabaseConfig                      `yaml:"database"`
	Analysis   AnalysisConfig                      `yaml:"analysis"`
	Reschedule RescheduleConfig                    `yaml:"reschedule"`
	Server     ServerConfig                        `yaml:"server"`
	Notify     NotifyConfig                        `yaml:"notify"`
	Calendar   CalendarConfig                      `yaml:"calendar"`
	Trades     map[string]conflict.TradeDependency `yaml:"trades"`
	Resources  []ResourceConfig                    `yaml:"resources"`
}

// ProjectConfig names the project and its declared window.
type ProjectConfig struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// DatabaseConfig selects and addresses the task store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Path     string `yaml:"path"` // sqlite file
}

// AnalysisConfig tunes the conflict engine.
type AnalysisConfig struct {
	Perspective   string           `yaml:"perspective"`
	DisabledRules []string         `yaml:"disabled_rules"`
	Weights       map[string]int   `yaml:"weights"`
	Weather       conflict.Weather `yaml:"weather"`
}

// RescheduleConfig tunes drag handling and deletion.
type RescheduleConfig struct {
	Debounce           time.Duration `yaml:"debounce"`
	DeletionGrace      time.Duration `yaml:"deletion_grace"`
	ActivationDistance float64       `yaml:"activation_distance"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// NotifyConfig holds alert destinations and the digest schedule.
type NotifyConfig struct {
	// MinSeverity is the lowest conflict severity that triggers an alert.
	MinSeverity string        `yaml:"min_severity"`
	Slack       SlackConfig   `yaml:"slack"`
	Discord     DiscordConfig `yaml:"discord"`
	GitHub      GitHubConfig  `yaml:"github"`
	Digest      DigestConfig  `yaml:"digest"`
}

// SlackConfig holds Slack bot settings.
type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// DiscordConfig holds Discord bot settings.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// GitHubConfig enables issue escalation for severe conflicts.
type GitHubConfig struct {
	Token       string `yaml:"token"`
	Repo        string `yaml:"repo"`
	MinSeverity string `yaml:"min_severity"`
}

// DigestConfig schedules the periodic schedule digest.
type DigestConfig struct {
	Cron string `yaml:"cron"`
}

// CalendarConfig points at a Google Calendar to import from.
type CalendarConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	CalendarID      string `yaml:"calendar_id"`
}

// ResourceConfig declares a crew, material or piece of equipment that is
// seeded into the store on db init.
type ResourceConfig struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Rate     float64  `yaml:"rate"`
	MaxUnits float64  `yaml:"max_units"`
	Skills   []string `yaml:"skills"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config. Secrets may be given
// as $VAR references and are expanded from the environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.expandSecrets()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) expandSecrets() {
	for _, s := range []*string{
		&c.Database.Password,
		&c.Notify.Slack.Token,
		&c.Notify.Discord.Token,
		&c.Notify.GitHub.Token,
	} {
		*s = os.ExpandEnv(*s)
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Project.ID == "" {
		c.Project.ID = "default"
	}
	if c.Project.Name == "" {
		c.Project.Name = c.Project.ID
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "foreman.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Database == "" {
		c.Database.Database = "foreman"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Analysis.Perspective == "" {
		c.Analysis.Perspective = string(conflict.PerspectiveBalanced)
	}
	if c.Reschedule.Debounce == 0 {
		c.Reschedule.Debounce = reschedule.DefaultDebounce
	}
	if c.Reschedule.DeletionGrace == 0 {
		c.Reschedule.DeletionGrace = reschedule.DefaultDeletionGrace
	}
	if c.Reschedule.ActivationDistance == 0 {
		c.Reschedule.ActivationDistance = reschedule.DefaultActivationDistance
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Notify.MinSeverity == "" {
		c.Notify.MinSeverity = string(conflict.SeverityHigh)
	}
	if c.Notify.GitHub.MinSeverity == "" {
		c.Notify.GitHub.MinSeverity = string(conflict.SeverityCritical)
	}
	for i := range c.Resources {
		if c.Resources[i].Type == "" {
			c.Resources[i].Type = models.ResourceLabor
		}
		if c.Resources[i].MaxUnits == 0 {
			c.Resources[i].MaxUnits = 1
		}
		if c.Resources[i].Name == "" {
			c.Resources[i].Name = c.Resources[i].ID
		}
	}
}

// validate checks that all fields are present and consistent.
func (c *Config) validate() error {
	var errs []string

	start, startErr := parseDate(c.Project.Start)
	if startErr != nil {
		errs = append(errs, "project.start: "+startErr.Error())
	}
	end, endErr := parseDate(c.Project.End)
	if endErr != nil {
		errs = append(errs, "project.end: "+endErr.Error())
	}
	if start != nil && end != nil && end.Before(*start) {
		errs = append(errs, "project.end is before project.start")
	}

	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be mysql or sqlite", c.Database.Driver))
	}

	if _, err := conflict.ParsePerspective(c.Analysis.Perspective); err != nil {
		errs = append(errs, fmt.Sprintf("analysis.perspective %q is not strict, balanced or flexible", c.Analysis.Perspective))
	}
	for _, r := range c.Analysis.DisabledRules {
		if !validRuleType(r) {
			errs = append(errs, fmt.Sprintf("analysis.disabled_rules: unknown rule type %q", r))
		}
	}
	for sev, w := range c.Analysis.Weights {
		if conflict.Severity(sev).Level() == 0 {
			errs = append(errs, fmt.Sprintf("analysis.weights: unknown severity %q", sev))
		}
		if w < 0 {
			errs = append(errs, fmt.Sprintf("analysis.weights.%s must not be negative", sev))
		}
	}

	if c.Reschedule.Debounce < 0 || c.Reschedule.DeletionGrace < 0 || c.Reschedule.ActivationDistance < 0 {
		errs = append(errs, "reschedule timings must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}

	if conflict.Severity(c.Notify.MinSeverity).Level() == 0 {
		errs = append(errs, fmt.Sprintf("notify.min_severity: unknown severity %q", c.Notify.MinSeverity))
	}
	if conflict.Severity(c.Notify.GitHub.MinSeverity).Level() == 0 {
		errs = append(errs, fmt.Sprintf("notify.github.min_severity: unknown severity %q", c.Notify.GitHub.MinSeverity))
	}
	if (c.Notify.Slack.Token == "") != (c.Notify.Slack.Channel == "") {
		errs = append(errs, "notify.slack needs both token and channel")
	}
	if (c.Notify.Discord.Token == "") != (c.Notify.Discord.Channel == "") {
		errs = append(errs, "notify.discord needs both token and channel")
	}
	if c.Notify.GitHub.Token != "" && !strings.Contains(c.Notify.GitHub.Repo, "/") {
		errs = append(errs, "notify.github.repo must be owner/name")
	}
	if c.Notify.Digest.Cron != "" {
		if err := notify.ValidateCron(c.Notify.Digest.Cron); err != nil {
			errs = append(errs, "notify.digest.cron: "+err.Error())
		}
	}

	for trade, td := range c.Trades {
		if trade == "" {
			errs = append(errs, "trades: empty trade name")
		}
		for _, dep := range td.DependsOn {
			if strings.EqualFold(dep, trade) {
				errs = append(errs, fmt.Sprintf("trades.%s depends on itself", trade))
			}
		}
	}

	seen := make(map[string]bool, len(c.Resources))
	for i, r := range c.Resources {
		if r.ID == "" {
			errs = append(errs, fmt.Sprintf("resources[%d].id is required", i))
		} else if seen[r.ID] {
			errs = append(errs, fmt.Sprintf("resources[%d].id %q is duplicated", i, r.ID))
		}
		seen[r.ID] = true
		switch r.Type {
		case models.ResourceLabor, models.ResourceMaterial, models.ResourceEquipment:
		default:
			errs = append(errs, fmt.Sprintf("resources[%d].type %q must be labor, material or equipment", i, r.Type))
		}
		if r.MaxUnits < 0 {
			errs = append(errs, fmt.Sprintf("resources[%d].max_units must not be negative", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ProjectRange returns the declared project window. Unset bounds are zero.
func (c *Config) ProjectRange() schedule.Range {
	var r schedule.Range
	if t, _ := parseDate(c.Project.Start); t != nil {
		r.Start = *t
	}
	if t, _ := parseDate(c.Project.End); t != nil {
		r.End = *t
	}
	return r
}

// KnowledgeBase returns the built-in trade rules with configured overrides.
func (c *Config) KnowledgeBase() conflict.KnowledgeBase {
	return conflict.DefaultKnowledgeBase().Merge(c.Trades)
}

// Perspective returns the configured default perspective.
func (c *Config) Perspective() conflict.Perspective {
	p, _ := conflict.ParsePerspective(c.Analysis.Perspective)
	return p
}

// DisabledRules returns the disabled rule categories as a set.
func (c *Config) DisabledRules() map[conflict.RuleType]bool {
	out := make(map[conflict.RuleType]bool, len(c.Analysis.DisabledRules))
	for _, r := range c.Analysis.DisabledRules {
		out[conflict.RuleType(strings.ToLower(r))] = true
	}
	return out
}

// Weights returns the score deductions with configured overrides applied.
func (c *Config) Weights() map[conflict.Severity]int {
	out := make(map[conflict.Severity]int, len(conflict.DefaultWeights))
	for k, v := range conflict.DefaultWeights {
		out[k] = v
	}
	for k, v := range c.Analysis.Weights {
		out[conflict.Severity(k)] = v
	}
	return out
}

func validRuleType(s string) bool {
	for _, rt := range conflict.AllRuleTypes {
		if strings.EqualFold(s, string(rt)) {
			return true
		}
	}
	return false
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("%q is not YYYY-MM-DD", s)
	}
	return &t, nil
}
