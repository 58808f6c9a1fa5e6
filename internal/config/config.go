// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Vendor() VendorConfig
	Browser() BrowserConfig
	Report() ReportConfig
	Pool() PoolConfig
	Metrics() MetricsConfig

	// Vendor Setters
	SetVendorCredentials(url, username, password string)

	// Browser Setters
	SetBrowserHeadless(bool)

	// Pool Setters
	SetPoolEnabled(bool)
}

// Config holds the entire application configuration.
// Sections are reached through the Interface getters.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	VendorCfg  VendorConfig  `mapstructure:"vendor" yaml:"vendor"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	ReportCfg  ReportConfig  `mapstructure:"report" yaml:"report"`
	PoolCfg    PoolConfig    `mapstructure:"pool" yaml:"pool"`
	MetricsCfg MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// Ensure Config implements Interface.
var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Vendor() VendorConfig   { return c.VendorCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Report() ReportConfig   { return c.ReportCfg }
func (c *Config) Pool() PoolConfig       { return c.PoolCfg }
func (c *Config) Metrics() MetricsConfig { return c.MetricsCfg }

func (c *Config) SetVendorCredentials(u, username, password string) {
	c.VendorCfg.URL = u
	c.VendorCfg.Username = username
	c.VendorCfg.Password = password
}

func (c *Config) SetBrowserHeadless(b bool) { c.BrowserCfg.Headless = b }
func (c *Config) SetPoolEnabled(b bool)     { c.PoolCfg.Enabled = b }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color settings for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// VendorConfig describes the PAL e3 deployment and the account used against it.
type VendorConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Username string `mapstructure:"username" yaml:"username"`
	// Password is usually supplied through PALE3_VENDOR_PASSWORD.
	Password       string        `mapstructure:"password" yaml:"-"`
	CookieName     string        `mapstructure:"cookie_name" yaml:"cookie_name"`
	CookieLength   int           `mapstructure:"cookie_length" yaml:"cookie_length"`
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	Burst          int           `mapstructure:"burst" yaml:"burst"`
	CompanyID      int           `mapstructure:"company_id" yaml:"company_id"`
}

// BrowserConfig holds settings for the headless Chrome instances that drive the vendor UI.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath          string        `mapstructure:"exec_path" yaml:"exec_path"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	LaunchTimeout     time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	CloseTimeout      time.Duration `mapstructure:"close_timeout" yaml:"close_timeout"`
	// SettleTimeout bounds the wait for the dashboard after the login submit.
	SettleTimeout      time.Duration `mapstructure:"settle_timeout" yaml:"settle_timeout"`
	SettlePollInterval time.Duration `mapstructure:"settle_poll_interval" yaml:"settle_poll_interval"`
	// SettleDelay is only used when no readiness signal could be observed.
	SettleDelay       time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	KeyDelay          time.Duration `mapstructure:"key_delay" yaml:"key_delay"`
	AutocompleteDelay time.Duration `mapstructure:"autocomplete_delay" yaml:"autocomplete_delay"`
}

// ReportConfig tunes the EU MRV and IMO DCS extraction flows.
type ReportConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	PollAttempts   int           `mapstructure:"poll_attempts" yaml:"poll_attempts"`
	PageSize       int           `mapstructure:"page_size" yaml:"page_size"`
	DateMarginDays int           `mapstructure:"date_margin_days" yaml:"date_margin_days"`
	Concurrency    int           `mapstructure:"concurrency" yaml:"concurrency"`
	NoDataSentinel string        `mapstructure:"no_data_sentinel" yaml:"no_data_sentinel"`
}

// PoolConfig controls reuse of logged-in browser sessions across report calls.
type PoolConfig struct {
	Enabled              bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxCredentials       int           `mapstructure:"max_credentials" yaml:"max_credentials"`
	MaxIdlePerCredential int           `mapstructure:"max_idle_per_credential" yaml:"max_idle_per_credential"`
	IdleTTL              time.Duration `mapstructure:"idle_ttl" yaml:"idle_ttl"`
	MaxAge               time.Duration `mapstructure:"max_age" yaml:"max_age"`
}

// MetricsConfig holds the prometheus exporter settings.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Namespace  string `mapstructure:"namespace" yaml:"namespace"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// NewDefaultConfig returns a configuration populated only with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Unmarshal of defaults cannot fail on well-formed default values.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// SetDefaults registers every default value with the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pale3")
	v.SetDefault("logger.log_file", "pale3.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Vendor --
	v.SetDefault("vendor.cookie_name", ".SessionAuthCookie")
	v.SetDefault("vendor.cookie_length", 192)
	v.SetDefault("vendor.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36 Edg/113.0.1774.57")
	v.SetDefault("vendor.request_timeout", "60s")
	v.SetDefault("vendor.rate_limit", 5.0)
	v.SetDefault("vendor.burst", 5)
	v.SetDefault("vendor.company_id", 1)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 900)
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.launch_timeout", "30s")
	v.SetDefault("browser.action_timeout", "30s")
	v.SetDefault("browser.close_timeout", "10s")
	v.SetDefault("browser.settle_timeout", "15s")
	v.SetDefault("browser.settle_poll_interval", "250ms")
	v.SetDefault("browser.settle_delay", "2500ms")
	v.SetDefault("browser.key_delay", "100ms")
	v.SetDefault("browser.autocomplete_delay", "1500ms")

	// -- Report --
	v.SetDefault("report.poll_interval", "3s")
	v.SetDefault("report.poll_attempts", 40)
	v.SetDefault("report.page_size", 500)
	v.SetDefault("report.date_margin_days", 2)
	v.SetDefault("report.concurrency", 2)
	v.SetDefault("report.no_data_sentinel", "No items to display")

	// -- Pool --
	v.SetDefault("pool.enabled", false)
	v.SetDefault("pool.max_credentials", 16)
	v.SetDefault("pool.max_idle_per_credential", 2)
	v.SetDefault("pool.idle_ttl", "10m")
	v.SetDefault("pool.max_age", "1h")

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "pale3")
	v.SetDefault("metrics.listen_addr", ":9464")
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("vendor.password", "PALE3_VENDOR_PASSWORD")
	_ = v.BindEnv("vendor.username", "PALE3_VENDOR_USERNAME")
	_ = v.BindEnv("vendor.url", "PALE3_VENDOR_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Manually load the password if Unmarshal didn't pick it up
	if cfg.VendorCfg.Password == "" {
		cfg.VendorCfg.Password = os.Getenv("PALE3_VENDOR_PASSWORD")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.VendorCfg.Validate(); err != nil {
		return fmt.Errorf("vendor configuration invalid: %w", err)
	}
	if err := c.ReportCfg.Validate(); err != nil {
		return fmt.Errorf("report configuration invalid: %w", err)
	}
	if err := c.PoolCfg.Validate(); err != nil {
		return fmt.Errorf("pool configuration invalid: %w", err)
	}
	if c.BrowserCfg.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be positive")
	}
	return nil
}

// Validate checks the vendor section.
func (v *VendorConfig) Validate() error {
	if v.URL == "" {
		return fmt.Errorf("vendor.url is a required configuration field")
	}
	u, err := url.Parse(v.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("vendor.url must be an absolute http(s) URL")
	}
	if v.Username == "" {
		return fmt.Errorf("vendor.username is a required configuration field")
	}
	if v.Password == "" {
		return fmt.Errorf("vendor.password is a required configuration field")
	}
	if v.CookieLength <= 0 {
		return fmt.Errorf("vendor.cookie_length must be a positive integer")
	}
	return nil
}

// Validate checks the report section.
func (r *ReportConfig) Validate() error {
	if r.PollInterval <= 0 {
		return fmt.Errorf("report.poll_interval must be positive")
	}
	if r.PollAttempts <= 0 {
		return fmt.Errorf("report.poll_attempts must be a positive integer")
	}
	if r.PageSize <= 0 {
		return fmt.Errorf("report.page_size must be a positive integer")
	}
	if r.Concurrency <= 0 {
		return fmt.Errorf("report.concurrency must be a positive integer")
	}
	if r.DateMarginDays < 0 {
		return fmt.Errorf("report.date_margin_days cannot be negative")
	}
	return nil
}

// Validate checks the pool section. A disabled pool is always valid.
func (p *PoolConfig) Validate() error {
	if !p.Enabled {
		return nil
	}
	if p.MaxCredentials <= 0 || p.MaxIdlePerCredential <= 0 {
		return fmt.Errorf("pool sizes must be positive integers")
	}
	if p.IdleTTL <= 0 || p.MaxAge <= 0 {
		return fmt.Errorf("pool.idle_ttl and pool.max_age must be positive")
	}
	return nil
}
