// Package config loads and validates auditor configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/web-presence-auditor/internal/audit"
	"github.com/JakeFAU/web-presence-auditor/internal/browser"
	"github.com/JakeFAU/web-presence-auditor/internal/browser/headless"
	"github.com/JakeFAU/web-presence-auditor/internal/preflight"
	"github.com/JakeFAU/web-presence-auditor/internal/presence"
	"github.com/JakeFAU/web-presence-auditor/internal/progress"
	"github.com/JakeFAU/web-presence-auditor/internal/quality"
	"github.com/JakeFAU/web-presence-auditor/internal/scheduler"
	"github.com/JakeFAU/web-presence-auditor/internal/storage/postgres"
)

// EnvPrefix prefixes every environment override, e.g. AUDITOR_AUDIT_BATCH_SIZE.
const EnvPrefix = "AUDITOR"

// Config captures all auditor configuration knobs loaded via Viper.
type Config struct {
	Input    InputConfig    `mapstructure:"input"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Presence PresenceConfig `mapstructure:"presence"`
	Output   OutputConfig   `mapstructure:"output"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Progress ProgressConfig `mapstructure:"progress"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// InputConfig locates the business list.
type InputConfig struct {
	DefaultPath string `mapstructure:"default_path"`
}

// AuditConfig drives the scheduler.
type AuditConfig struct {
	BatchSize           int           `mapstructure:"batch_size"`
	Concurrency         int           `mapstructure:"concurrency"`
	CheckpointEvery     int           `mapstructure:"checkpoint_every"`
	DelayMin            time.Duration `mapstructure:"delay_min"`
	DelayMax            time.Duration `mapstructure:"delay_max"`
	Resume              bool          `mapstructure:"resume"`
	RetryFailed         bool          `mapstructure:"retry_failed"`
	BusinessesPerMinute float64       `mapstructure:"businesses_per_minute"`
	TimeBudget          time.Duration `mapstructure:"time_budget"`
}

// ViewportSize is a width and height in CSS pixels.
type ViewportSize struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// ViewportsConfig holds the three responsiveness presets.
type ViewportsConfig struct {
	Phone   ViewportSize `mapstructure:"phone"`
	Tablet  ViewportSize `mapstructure:"tablet"`
	Desktop ViewportSize `mapstructure:"desktop"`
}

// BrowserConfig configures Chrome and the site probes.
type BrowserConfig struct {
	Headless         bool            `mapstructure:"headless"`
	UserAgent        string          `mapstructure:"user_agent"`
	ExecPath         string          `mapstructure:"exec_path"`
	NavTimeout       time.Duration   `mapstructure:"nav_timeout"`
	EvalTimeout      time.Duration   `mapstructure:"eval_timeout"`
	StartupTimeout   time.Duration   `mapstructure:"startup_timeout"`
	Wait             string          `mapstructure:"wait"`
	ViewportSettle   time.Duration   `mapstructure:"viewport_settle"`
	PerfTimeout      time.Duration   `mapstructure:"perf_timeout"`
	Viewports        ViewportsConfig `mapstructure:"viewports"`
	Preflight        bool            `mapstructure:"preflight"`
	PreflightTimeout time.Duration   `mapstructure:"preflight_timeout"`
}

// PresenceConfig configures the place-search lookups.
type PresenceConfig struct {
	SearchURL        string        `mapstructure:"search_url"`
	InputSelector    string        `mapstructure:"input_selector"`
	ResultSelector   string        `mapstructure:"result_selector"`
	ItemSelector     string        `mapstructure:"item_selector"`
	ConsentSelectors []string      `mapstructure:"consent_selectors"`
	SettleDelay      time.Duration `mapstructure:"settle_delay"`
	SearchTimeout    time.Duration `mapstructure:"search_timeout"`
	QPS              float64       `mapstructure:"qps"`
}

// OutputConfig sets where checkpoints and results are written.
type OutputConfig struct {
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// DBConfig controls access to the relational database. An empty DSN
// disables it.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	RunsTable       string        `mapstructure:"runs_table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds metadata for lead notifications. An empty topic
// disables publishing.
type PubSubConfig struct {
	ProjectID   string `mapstructure:"project_id"`
	TopicName   string `mapstructure:"topic_name"`
	MinPriority string `mapstructure:"min_priority"`
	// DryRun keeps leads in memory and logs them instead of publishing.
	DryRun bool `mapstructure:"dry_run"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
	SinkTimeout    time.Duration `mapstructure:"sink_timeout"`
}

// MetricsConfig controls the ops server. An empty address disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
	// APIKey guards the /v1 routes when set.
	APIKey string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	sched := scheduler.DefaultConfig()
	qual := quality.DefaultConfig()
	pres := presence.DefaultConfig()
	hub := progress.Config{}.WithDefaults()

	v.SetDefault("input.default_path", "input/businesses.csv")

	v.SetDefault("audit.batch_size", sched.BatchSize)
	v.SetDefault("audit.concurrency", sched.Concurrency)
	v.SetDefault("audit.checkpoint_every", sched.CheckpointEvery)
	v.SetDefault("audit.delay_min", sched.DelayMin)
	v.SetDefault("audit.delay_max", sched.DelayMax)
	v.SetDefault("audit.resume", true)
	v.SetDefault("audit.retry_failed", false)
	v.SetDefault("audit.businesses_per_minute", 8.0)
	v.SetDefault("audit.time_budget", 5*time.Hour+30*time.Minute)

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.nav_timeout", qual.NavTimeout)
	v.SetDefault("browser.eval_timeout", 10*time.Second)
	v.SetDefault("browser.startup_timeout", 30*time.Second)
	v.SetDefault("browser.wait", string(qual.Wait))
	v.SetDefault("browser.viewport_settle", qual.ViewportSettle)
	v.SetDefault("browser.perf_timeout", qual.PerfTimeout)
	v.SetDefault("browser.viewports.phone.width", qual.Phone.Width)
	v.SetDefault("browser.viewports.phone.height", qual.Phone.Height)
	v.SetDefault("browser.viewports.tablet.width", qual.Tablet.Width)
	v.SetDefault("browser.viewports.tablet.height", qual.Tablet.Height)
	v.SetDefault("browser.viewports.desktop.width", qual.Desktop.Width)
	v.SetDefault("browser.viewports.desktop.height", qual.Desktop.Height)
	v.SetDefault("browser.preflight", false)
	v.SetDefault("browser.preflight_timeout", 10*time.Second)

	v.SetDefault("presence.search_url", pres.SearchURL)
	v.SetDefault("presence.input_selector", pres.InputSelector)
	v.SetDefault("presence.result_selector", pres.ResultSelector)
	v.SetDefault("presence.item_selector", pres.ItemSelector)
	v.SetDefault("presence.consent_selectors", pres.ConsentSelectors)
	v.SetDefault("presence.settle_delay", pres.SettleDelay)
	v.SetDefault("presence.search_timeout", pres.SearchTimeout)
	v.SetDefault("presence.qps", 0.5)

	v.SetDefault("output.dir", "output")
	v.SetDefault("output.gcs_bucket", "")
	v.SetDefault("output.gcs_prefix", "audits")

	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "audit_outcomes")
	v.SetDefault("db.runs_table", "audit_runs")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", time.Hour)

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("pubsub.min_priority", string(audit.PriorityHigh))
	v.SetDefault("pubsub.dry_run", false)

	v.SetDefault("progress.buffer_size", hub.BufferSize)
	v.SetDefault("progress.max_batch_events", hub.MaxBatchEvents)
	v.SetDefault("progress.max_batch_wait", hub.MaxBatchWait)
	v.SetDefault("progress.sink_timeout", hub.SinkTimeout)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.api_key", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := c.SchedulerConfig().Validate(); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	if c.Audit.BusinessesPerMinute <= 0 {
		return errors.New("audit.businesses_per_minute must be > 0")
	}
	qc, err := c.QualityConfig()
	if err != nil {
		return err
	}
	if err := qc.Validate(); err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	if err := c.PresenceConfig().Validate(); err != nil {
		return fmt.Errorf("presence: %w", err)
	}
	if c.Presence.QPS < 0 {
		return errors.New("presence.qps must be >= 0")
	}
	if c.Output.Dir == "" {
		return errors.New("output.dir is required")
	}
	if c.PubSub.TopicName != "" && !c.PubSub.DryRun && c.PubSub.ProjectID == "" {
		return errors.New("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if _, err := audit.ParsePriority(c.PubSub.MinPriority); err != nil {
		return fmt.Errorf("pubsub.min_priority: %w", err)
	}
	return nil
}

// SchedulerConfig translates the audit section.
func (c Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		BatchSize:       c.Audit.BatchSize,
		Concurrency:     c.Audit.Concurrency,
		CheckpointEvery: c.Audit.CheckpointEvery,
		DelayMin:        c.Audit.DelayMin,
		DelayMax:        c.Audit.DelayMax,
	}
}

// QualityConfig translates the browser section for the scorer.
func (c Config) QualityConfig() (quality.Config, error) {
	wait, err := browser.ParseWaitCondition(c.Browser.Wait)
	if err != nil {
		return quality.Config{}, fmt.Errorf("browser.wait: %w", err)
	}
	vps := c.Browser.Viewports
	return quality.Config{
		NavTimeout:     c.Browser.NavTimeout,
		Wait:           wait,
		PerfTimeout:    c.Browser.PerfTimeout,
		ViewportSettle: c.Browser.ViewportSettle,
		Phone:          browser.Viewport{Name: browser.ViewportPhone, Width: vps.Phone.Width, Height: vps.Phone.Height, Mobile: true},
		Tablet:         browser.Viewport{Name: browser.ViewportTablet, Width: vps.Tablet.Width, Height: vps.Tablet.Height, Mobile: true},
		Desktop:        browser.Viewport{Name: browser.ViewportDesktop, Width: vps.Desktop.Width, Height: vps.Desktop.Height},
	}, nil
}

// PresenceConfig translates the presence section.
func (c Config) PresenceConfig() presence.Config {
	return presence.Config{
		SearchURL:        c.Presence.SearchURL,
		InputSelector:    c.Presence.InputSelector,
		ResultSelector:   c.Presence.ResultSelector,
		ItemSelector:     c.Presence.ItemSelector,
		ConsentSelectors: c.Presence.ConsentSelectors,
		NavTimeout:       c.Browser.NavTimeout,
		SettleDelay:      c.Presence.SettleDelay,
		SearchTimeout:    c.Presence.SearchTimeout,
	}
}

// BrowserConfig translates the browser section for the Chrome launcher.
func (c Config) BrowserConfig() headless.Config {
	d := c.Browser.Viewports.Desktop
	return headless.Config{
		ExecPath:       c.Browser.ExecPath,
		Headless:       c.Browser.Headless,
		UserAgent:      c.Browser.UserAgent,
		Viewport:       browser.Viewport{Name: browser.ViewportDesktop, Width: d.Width, Height: d.Height},
		EvalTimeout:    c.Browser.EvalTimeout,
		StartupTimeout: c.Browser.StartupTimeout,
	}
}

// PreflightConfig translates the browser section for the reachability check.
func (c Config) PreflightConfig() preflight.Config {
	return preflight.Config{
		UserAgent: c.Browser.UserAgent,
		Timeout:   c.Browser.PreflightTimeout,
	}
}

// PoolConfig translates the db section.
func (c Config) PoolConfig() postgres.PoolConfig {
	return postgres.PoolConfig{
		DSN:             c.DB.DSN,
		MaxConns:        c.DB.MaxConns,
		MinConns:        c.DB.MinConns,
		MaxConnLifetime: c.DB.MaxConnLifetime,
	}
}

// HubConfig translates the progress section.
func (c Config) HubConfig() progress.Config {
	return progress.Config{
		BufferSize:     c.Progress.BufferSize,
		MaxBatchEvents: c.Progress.MaxBatchEvents,
		MaxBatchWait:   c.Progress.MaxBatchWait,
		SinkTimeout:    c.Progress.SinkTimeout,
	}
}

// LeadPriority is the least urgent priority still published as a lead.
func (c Config) LeadPriority() audit.Priority {
	p, err := audit.ParsePriority(c.PubSub.MinPriority)
	if err != nil || p == "" {
		return audit.PriorityHigh
	}
	return p
}

// Estimate predicts the wall time of auditing n businesses and reports
// whether it fits the configured budget.
func (c Config) Estimate(n int) (time.Duration, bool) {
	d := scheduler.Estimate(n, c.Audit.BusinessesPerMinute)
	return d, c.Audit.TimeBudget <= 0 || d <= c.Audit.TimeBudget
}
