package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"golang.org/x/text/currency"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig          `mapstructure:"server"`
	Database      DatabaseConfig        `mapstructure:"database"`
	Logger        LoggerConfig          `mapstructure:"logger"`
	Lark          LarkConfig            `mapstructure:"lark"`
	Workflow      WorkflowConfig        `mapstructure:"workflow"`
	Roles         map[string]RoleConfig `mapstructure:"roles"`
	PurchaseOrder PurchaseOrderConfig   `mapstructure:"purchase_order"`
	Dispatcher    DispatcherConfig      `mapstructure:"dispatcher"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LarkConfig holds Lark API configuration. When disabled, notifications are
// written to the log.
type LarkConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// WorkflowConfig is the static layer behind persisted threshold and rate
// overrides. Values are decimal strings; rates convert one unit of the
// currency into base currency.
type WorkflowConfig struct {
	BaseCurrency  string            `mapstructure:"base_currency"`
	Thresholds    map[string]string `mapstructure:"thresholds"`
	ExchangeRates map[string]string `mapstructure:"exchange_rates"`
}

// RoleConfig names the person holding an approval role
type RoleConfig struct {
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
}

// PurchaseOrderConfig holds purchase order generation configuration
type PurchaseOrderConfig struct {
	NumberPrefix     string        `mapstructure:"number_prefix"`
	OutputDir        string        `mapstructure:"output_dir"`
	ExportXLSX       bool          `mapstructure:"export_xlsx"`
	RetryInterval    time.Duration `mapstructure:"retry_interval"`
	RetryMaxAttempts int           `mapstructure:"retry_max_attempts"`
}

// DispatcherConfig holds event dispatcher configuration
type DispatcherConfig struct {
	AsyncTimeout time.Duration `mapstructure:"async_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables. An empty
// configPath loads defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values. Thresholds, rates and roles
// deliberately have none.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.path", "data/procurement.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("lark.enabled", false)

	v.SetDefault("workflow.base_currency", "SGD")

	v.SetDefault("purchase_order.number_prefix", "PO")
	v.SetDefault("purchase_order.output_dir", "data/purchase_orders")
	v.SetDefault("purchase_order.export_xlsx", true)
	v.SetDefault("purchase_order.retry_interval", 5*time.Minute)
	v.SetDefault("purchase_order.retry_max_attempts", 3)

	v.SetDefault("dispatcher.async_timeout", 30*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	_ = v.BindEnv("lark.app_id", "LARK_APP_ID")
	_ = v.BindEnv("lark.app_secret", "LARK_APP_SECRET")
	_ = v.BindEnv("lark.enabled", "LARK_ENABLED")
	_ = v.BindEnv("database.path", "DATABASE_PATH")
	_ = v.BindEnv("workflow.base_currency", "BASE_CURRENCY")
}

// normalize upper-cases currency and role keys. Viper lower-cases map keys.
func (c *Config) normalize() {
	c.Workflow.BaseCurrency = strings.ToUpper(strings.TrimSpace(c.Workflow.BaseCurrency))

	rates := make(map[string]string, len(c.Workflow.ExchangeRates))
	for code, rate := range c.Workflow.ExchangeRates {
		rates[strings.ToUpper(strings.TrimSpace(code))] = strings.TrimSpace(rate)
	}
	c.Workflow.ExchangeRates = rates

	thresholds := make(map[string]string, len(c.Workflow.Thresholds))
	for name, value := range c.Workflow.Thresholds {
		thresholds[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
	c.Workflow.Thresholds = thresholds

	roles := make(map[string]RoleConfig, len(c.Roles))
	for role, holder := range c.Roles {
		roles[strings.ToUpper(strings.TrimSpace(role))] = holder
	}
	c.Roles = roles
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required when lark is enabled")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required when lark is enabled")
		}
	}

	if _, err := currency.ParseISO(c.Workflow.BaseCurrency); err != nil {
		return fmt.Errorf("workflow.base_currency %q is not an ISO 4217 code", c.Workflow.BaseCurrency)
	}
	for name, value := range c.Workflow.Thresholds {
		d, err := decimal.NewFromString(value)
		if err != nil || d.IsNegative() {
			return fmt.Errorf("workflow.thresholds.%s must be a non-negative number, got %q", name, value)
		}
	}
	for code, value := range c.Workflow.ExchangeRates {
		d, err := decimal.NewFromString(value)
		if err != nil || !d.IsPositive() {
			return fmt.Errorf("workflow.exchange_rates.%s must be a positive number, got %q", code, value)
		}
	}

	for role, holder := range c.Roles {
		if strings.TrimSpace(holder.Email) == "" {
			return fmt.Errorf("roles.%s.email is required", role)
		}
	}

	if c.PurchaseOrder.ExportXLSX && c.PurchaseOrder.OutputDir == "" {
		return fmt.Errorf("purchase_order.output_dir is required when export_xlsx is on")
	}
	if c.PurchaseOrder.RetryInterval < 0 || c.PurchaseOrder.RetryMaxAttempts < 0 {
		return fmt.Errorf("purchase_order retry settings must not be negative")
	}

	return nil
}

// Address returns the HTTP listen address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
