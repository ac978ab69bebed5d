package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	domainwf "github.com/eddyoasis/procurement-workflow/internal/domain/workflow"
	"github.com/shopspring/decimal"
)

// StaticThresholds is the file-configured fallback layer
type StaticThresholds struct {
	BaseCurrency  string
	Thresholds    map[string]string
	ExchangeRates map[string]string
}

// ThresholdService resolves thresholds and exchange rates and manages the
// persisted overrides that take precedence over static configuration.
type ThresholdService interface {
	port.ThresholdResolver

	SetThreshold(ctx context.Context, name string, value decimal.Decimal) error
	SetExchangeRate(ctx context.Context, currency string, rate decimal.Decimal) error
	ListOverrides(ctx context.Context) ([]*entity.SystemConfig, error)
}

type thresholdServiceImpl struct {
	configRepo port.SystemConfigRepository
	static     StaticThresholds
	logger     Logger
}

// NewThresholdService creates a ThresholdService. configRepo may be nil, in
// which case only static configuration is consulted.
func NewThresholdService(configRepo port.SystemConfigRepository, static StaticThresholds, logger Logger) ThresholdService {
	return &thresholdServiceImpl{
		configRepo: configRepo,
		static:     static,
		logger:     logger,
	}
}

func (s *thresholdServiceImpl) BaseCurrency() string {
	return strings.ToUpper(strings.TrimSpace(s.static.BaseCurrency))
}

// GetThreshold returns the named threshold in base currency
func (s *thresholdServiceImpl) GetThreshold(ctx context.Context, name string) (decimal.Decimal, error) {
	name = strings.TrimSpace(name)
	value, err := s.lookup(ctx, entity.ConfigKeyThresholdPrefix+name, s.static.Thresholds, name)
	if err != nil {
		return decimal.Zero, err
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: threshold %s is negative", domainwf.ErrConfigurationMissing, name)
	}
	return value, nil
}

// GetExchangeRate returns base-currency units per one unit of currency
func (s *thresholdServiceImpl) GetExchangeRate(ctx context.Context, currency string) (decimal.Decimal, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == s.BaseCurrency() {
		return decimal.NewFromInt(1), nil
	}

	value, err := s.lookup(ctx, entity.ConfigKeyExchangeRatePrefix+code, s.static.ExchangeRates, code)
	if err != nil {
		return decimal.Zero, err
	}
	if !value.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: exchange rate %s must be positive", domainwf.ErrConfigurationMissing, code)
	}
	return value, nil
}

// lookup consults the persisted override first, then the static map.
func (s *thresholdServiceImpl) lookup(ctx context.Context, key string, static map[string]string, staticKey string) (decimal.Decimal, error) {
	if s.configRepo != nil {
		cfg, err := s.configRepo.Get(ctx, key)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to read config %s: %w", key, err)
		}
		if cfg != nil {
			return parseConfigValue(key, cfg.Value)
		}
	}

	raw, ok := lookupStatic(static, staticKey)
	if !ok {
		return decimal.Zero, domainwf.ConfigurationMissingError(key)
	}
	return parseConfigValue(key, raw)
}

// lookupStatic matches keys case-insensitively; viper lower-cases map keys.
func lookupStatic(values map[string]string, key string) (string, bool) {
	if v, ok := values[key]; ok {
		return v, true
	}
	for k, v := range values {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

func parseConfigValue(key, raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, domainwf.ConfigurationMissingError(key)
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s has invalid value %q", domainwf.ErrConfigurationMissing, key, raw)
	}
	return value, nil
}

// SetThreshold stores a persisted override for the named threshold
func (s *thresholdServiceImpl) SetThreshold(ctx context.Context, name string, value decimal.Decimal) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domainwf.NewValidationError("name", "is required")
	}
	if value.IsNegative() {
		return domainwf.NewValidationError("value", "must not be negative")
	}
	return s.upsert(ctx, entity.ConfigKeyThresholdPrefix+name, value, "approval threshold in base currency")
}

// SetExchangeRate stores a persisted override for the currency's rate
func (s *thresholdServiceImpl) SetExchangeRate(ctx context.Context, currency string, rate decimal.Decimal) error {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if len(code) != 3 {
		return domainwf.NewValidationError("currency", "must be a 3-letter code")
	}
	if code == s.BaseCurrency() {
		return domainwf.NewValidationError("currency", "base currency always converts at 1")
	}
	if !rate.IsPositive() {
		return domainwf.NewValidationError("rate", "must be positive")
	}
	return s.upsert(ctx, entity.ConfigKeyExchangeRatePrefix+code, rate, fmt.Sprintf("%s to %s", code, s.BaseCurrency()))
}

func (s *thresholdServiceImpl) upsert(ctx context.Context, key string, value decimal.Decimal, description string) error {
	if s.configRepo == nil {
		return fmt.Errorf("%w: no config store for overrides", domainwf.ErrConfigurationMissing)
	}

	cfg := &entity.SystemConfig{
		Key:         key,
		Value:       value.String(),
		Description: description,
		UpdatedAt:   time.Now(),
	}
	if err := s.configRepo.Upsert(ctx, cfg); err != nil {
		s.logger.Error("Failed to store config override", "key", key, "error", err)
		return fmt.Errorf("failed to store %s: %w", key, err)
	}

	s.logger.Info("Config override stored", "key", key, "value", cfg.Value)
	return nil
}

// ListOverrides returns every persisted threshold and exchange rate override
func (s *thresholdServiceImpl) ListOverrides(ctx context.Context) ([]*entity.SystemConfig, error) {
	if s.configRepo == nil {
		return nil, nil
	}

	var all []*entity.SystemConfig
	for _, prefix := range []string{entity.ConfigKeyThresholdPrefix, entity.ConfigKeyExchangeRatePrefix} {
		configs, err := s.configRepo.ListByPrefix(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s overrides: %w", prefix, err)
		}
		all = append(all, configs...)
	}
	return all, nil
}

var _ ThresholdService = (*thresholdServiceImpl)(nil)
