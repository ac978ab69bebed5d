package config

import (
	"github.com/eddyoasis/procurement-workflow/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	roles := make(map[string]container.RoleHolder, len(c.Roles))
	for role, holder := range c.Roles {
		roles[role] = container.RoleHolder{Name: holder.Name, Email: holder.Email}
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Lark: container.LarkConfig{
			Enabled:   c.Lark.Enabled,
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
			BaseURL:   c.Lark.BaseURL,
		},
		Workflow: container.WorkflowConfig{
			BaseCurrency:  c.Workflow.BaseCurrency,
			Thresholds:    c.Workflow.Thresholds,
			ExchangeRates: c.Workflow.ExchangeRates,
		},
		Roles: roles,
		PurchaseOrder: container.PurchaseOrderConfig{
			NumberPrefix:     c.PurchaseOrder.NumberPrefix,
			OutputDir:        c.PurchaseOrder.OutputDir,
			ExportXLSX:       c.PurchaseOrder.ExportXLSX,
			RetryInterval:    c.PurchaseOrder.RetryInterval,
			RetryMaxAttempts: c.PurchaseOrder.RetryMaxAttempts,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
		Dispatcher: container.DispatcherConfig{
			AsyncTimeout: c.Dispatcher.AsyncTimeout,
		},
	}
}
