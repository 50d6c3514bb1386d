package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"taskdesk/internal/deps"
	"taskdesk/internal/domain"
)

// Config models taskdesk.yml.
type Config struct {
	Workspace struct {
		Name     string `yaml:"name"`
		Timezone string `yaml:"timezone"`
	} `yaml:"workspace"`
	Engine struct {
		DependencyPolicy deps.Policy     `yaml:"dependency_policy"`
		DefaultType      domain.TaskType `yaml:"default_type"`
		DefaultPriority  domain.Priority `yaml:"default_priority"`
	} `yaml:"engine"`
	Calendars []Calendar            `yaml:"calendars"`
	Templates []domain.TaskTemplate `yaml:"templates"`
	Scheduler SchedulerConfig       `yaml:"scheduler"`
	Log       LogConfig             `yaml:"log"`
	Server    ServerConfig          `yaml:"server"`
}

type Calendar struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Color   string `yaml:"color"`
	Visible bool   `yaml:"visible"`
}

type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Ledger   string        `yaml:"ledger"`
	Webhooks []Webhook     `yaml:"webhooks"`
}

type Webhook struct {
	URL            string `yaml:"url"`
	Secret         string `yaml:"secret"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`
	BasePath  string `yaml:"base_path"`
	JWTSecret string `yaml:"jwt_secret"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	cfg, err := FromFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config %s not found; create one with td init", path)
	}
	return cfg, err
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Workspace.Name == "" {
		return fmt.Errorf("config.workspace.name is required")
	}
	if c.Workspace.Timezone != "" {
		if _, err := time.LoadLocation(c.Workspace.Timezone); err != nil {
			return fmt.Errorf("config.workspace.timezone: %w", err)
		}
	}
	if !c.Engine.DependencyPolicy.Valid() {
		return fmt.Errorf("config.engine.dependency_policy must be off, warn or enforce")
	}
	if !c.Engine.DefaultType.Valid() {
		return fmt.Errorf("config.engine.default_type %q is not a task type", c.Engine.DefaultType)
	}
	if !c.Engine.DefaultPriority.Valid() {
		return fmt.Errorf("config.engine.default_priority %q is not a priority", c.Engine.DefaultPriority)
	}
	seen := map[string]bool{}
	for _, cal := range c.Calendars {
		if cal.ID == "" {
			return fmt.Errorf("config.calendars contains empty id")
		}
		if seen[cal.ID] {
			return fmt.Errorf("calendar %s defined twice", cal.ID)
		}
		seen[cal.ID] = true
	}
	for _, tpl := range c.Templates {
		if strings.TrimSpace(tpl.Name) == "" {
			return fmt.Errorf("config.templates contains a template without name")
		}
		if tpl.Type != "" && !tpl.Type.Valid() {
			return fmt.Errorf("template %s has unknown type %s", tpl.Name, tpl.Type)
		}
		if tpl.Priority != "" && !tpl.Priority.Valid() {
			return fmt.Errorf("template %s has unknown priority %s", tpl.Name, tpl.Priority)
		}
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval < time.Second {
		return fmt.Errorf("config.scheduler.interval must be at least 1s")
	}
	for _, wh := range c.Scheduler.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("config.scheduler.webhooks contains empty url")
		}
		if wh.TimeoutSeconds < 0 {
			return fmt.Errorf("config.scheduler.webhooks timeout_seconds must not be negative")
		}
	}
	switch c.Log.Encoding {
	case "", "json", "console":
	default:
		return fmt.Errorf("config.log.encoding must be json or console")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	return nil
}

// Location returns the workspace timezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	if c == nil || c.Workspace.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Workspace.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// VisibleCalendars lists the calendar ids shown by default.
func (c *Config) VisibleCalendars() []string {
	out := []string{}
	if c == nil {
		return out
	}
	for _, cal := range c.Calendars {
		if cal.Visible {
			out = append(out, cal.ID)
		}
	}
	return out
}

// LedgerPath resolves the scheduler ledger relative to the workspace.
func (c *Config) LedgerPath(workspace string) string {
	p := c.Scheduler.Ledger
	if p == "" {
		p = filepath.Join(".taskdesk", "scheduler.db")
	}
	if filepath.IsAbs(p) {
		return p
	}
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, p)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskdesk.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault(name string) string {
	return fmt.Sprintf(defaultTemplate, name)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a workspace.
func Default(name string) *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(GenerateDefault(name))).Decode(&cfg)
	cfg.applyDefaults()
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Omitted engine
// settings fall back to the defaults.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// WriteFile stores the YAML form of cfg at the workspace config path.
func WriteFile(workspace string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(Path(workspace), data, 0o644)
}

func (c *Config) applyDefaults() {
	if c.Engine.DependencyPolicy == "" {
		c.Engine.DependencyPolicy = deps.PolicyWarn
	}
	if c.Engine.DefaultType == "" {
		c.Engine.DefaultType = domain.TypeOther
	}
	if c.Engine.DefaultPriority == "" {
		c.Engine.DefaultPriority = domain.PriorityMedium
	}
	if c.Scheduler.Interval == 0 {
		c.Scheduler.Interval = time.Minute
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}
}

const defaultTemplate = `workspace:
  name: %s
  timezone: ""

engine:
  dependency_policy: warn
  default_type: other
  default_priority: medium

calendars:
  - id: work
    name: Work
    color: "#2563eb"
    visible: true
  - id: personal
    name: Personal
    color: "#16a34a"
    visible: false

templates:
  - name: Client follow-up
    description: Check in after a meeting or proposal
    type: follow-up
    priority: medium
    estimated_duration: 30
    subtasks: [Review last conversation, Send follow-up email, Log outcome]
    tags: [sales]
  - name: Discovery call
    type: call
    priority: high
    estimated_duration: 45
    subtasks: [Research company, Prepare questions, Share notes]
    tags: [sales, discovery]

scheduler:
  enabled: true
  interval: 1m
  ledger: .taskdesk/scheduler.db
  webhooks: []

log:
  level: info
  encoding: console

server:
  addr: 127.0.0.1:8080
  base_path: ""
  jwt_secret: ""
`
