// Package container provides dependency injection and lifecycle management
// for the procurement workflow service.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Lark messaging configuration
	Lark LarkConfig

	// Threshold and exchange rate fallbacks
	Workflow WorkflowConfig

	// Role holders keyed by upper-case role name
	Roles map[string]RoleHolder

	// Purchase order generation
	PurchaseOrder PurchaseOrderConfig

	// Server configuration
	Server ServerConfig

	// Dispatcher configuration
	Dispatcher DispatcherConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	// Enabled switches approver notifications from the log to Lark
	Enabled bool

	// AppID is the Lark application ID
	AppID string

	// AppSecret is the Lark application secret
	AppSecret string

	// BaseURL overrides the open platform domain, e.g. for Feishu
	BaseURL string
}

// WorkflowConfig holds the static threshold layer.
type WorkflowConfig struct {
	BaseCurrency  string
	Thresholds    map[string]string
	ExchangeRates map[string]string
}

// RoleHolder is the person behind an approval role.
type RoleHolder struct {
	Name  string
	Email string
}

// PurchaseOrderConfig holds purchase order settings.
type PurchaseOrderConfig struct {
	// NumberPrefix starts every order number
	NumberPrefix string

	// OutputDir receives rendered workbooks
	OutputDir string

	// ExportXLSX turns workbook rendering on
	ExportXLSX bool

	// RetryInterval is how often failed orders are retried; zero disables
	RetryInterval time.Duration

	// RetryMaxAttempts caps automatic retries per requisition
	RetryMaxAttempts int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DispatcherConfig holds event dispatcher settings.
type DispatcherConfig struct {
	// AsyncTimeout bounds each asynchronous handler
	AsyncTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/procurement.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Workflow: WorkflowConfig{
			BaseCurrency:  "SGD",
			Thresholds:    map[string]string{},
			ExchangeRates: map[string]string{},
		},
		Roles: map[string]RoleHolder{},
		PurchaseOrder: PurchaseOrderConfig{
			NumberPrefix:     "PO",
			OutputDir:        "data/purchase_orders",
			ExportXLSX:       true,
			RetryInterval:    5 * time.Minute,
			RetryMaxAttempts: 3,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Dispatcher: DispatcherConfig{
			AsyncTimeout: 30 * time.Second,
		},
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Lark.Enabled {
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark app_id is required")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark app_secret is required")
		}
	}

	if c.Workflow.BaseCurrency == "" {
		return fmt.Errorf("base currency is required")
	}

	if c.PurchaseOrder.ExportXLSX && c.PurchaseOrder.OutputDir == "" {
		return fmt.Errorf("purchase order output dir is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	return nil
}
