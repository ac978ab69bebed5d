package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eddyoasis/procurement-workflow/internal/application/service"
	"github.com/eddyoasis/procurement-workflow/internal/container"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ccfg := cfg.ToContainerConfig()
			db, err := container.ProvideDatabase(&ccfg.Database, logger)
			if err != nil {
				return err
			}
			defer db.SqlDB.Close()

			fmt.Printf("database %s is up to date\n", cfg.Database.Path)
			return nil
		},
	}
}

func thresholdCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "threshold", Short: "Show or override approval thresholds"}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show resolved thresholds and stored overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withThresholds(cmd.Context(), func(ctx context.Context, svc service.ThresholdService) error {
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Threshold", "Value (" + svc.BaseCurrency() + ")"})
				for _, name := range []string{entity.ThresholdFixedAssetCFO, entity.ThresholdCEO} {
					value, err := svc.GetThreshold(ctx, name)
					if err != nil {
						tw.AppendRow(table.Row{name, "missing"})
						continue
					}
					tw.AppendRow(table.Row{name, value.StringFixed(2)})
				}
				tw.Render()

				overrides, err := svc.ListOverrides(ctx)
				if err != nil {
					return err
				}
				if len(overrides) == 0 {
					return nil
				}
				ot := table.NewWriter()
				ot.SetOutputMirror(os.Stdout)
				ot.AppendHeader(table.Row{"Override", "Value", "Updated"})
				for _, o := range overrides {
					ot.AppendRow(table.Row{o.Key, o.Value, o.UpdatedAt.Format("2006-01-02 15:04")})
				}
				ot.Render()
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <name> <value>",
		Short: "Store a threshold override in base currency",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[1], err)
			}
			return withThresholds(cmd.Context(), func(ctx context.Context, svc service.ThresholdService) error {
				if err := svc.SetThreshold(ctx, strings.ToLower(args[0]), value); err != nil {
					return err
				}
				fmt.Printf("%s = %s %s\n", strings.ToLower(args[0]), value.StringFixed(2), svc.BaseCurrency())
				return nil
			})
		},
	})

	return cmd
}

func rateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "rate", Short: "Show or override exchange rates"}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <currency>",
		Short: "Show the rate converting one unit of currency into base currency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withThresholds(cmd.Context(), func(ctx context.Context, svc service.ThresholdService) error {
				code := strings.ToUpper(args[0])
				rate, err := svc.GetExchangeRate(ctx, code)
				if err != nil {
					return err
				}
				fmt.Printf("1 %s = %s %s\n", code, rate.String(), svc.BaseCurrency())
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <currency> <rate>",
		Short: "Store an exchange rate override",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid rate %q: %w", args[1], err)
			}
			return withThresholds(cmd.Context(), func(ctx context.Context, svc service.ThresholdService) error {
				return svc.SetExchangeRate(ctx, args[0], rate)
			})
		},
	})

	return cmd
}

// withThresholds opens the database and hands fn the threshold service
func withThresholds(ctx context.Context, fn func(context.Context, service.ThresholdService) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ccfg := cfg.ToContainerConfig()
	db, err := container.ProvideDatabase(&ccfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.SqlDB.Close()

	repos, err := container.ProvideRepositories(db.SqlDB, logger.With(zap.String("cmd", "admin")))
	if err != nil {
		return err
	}
	return fn(ctx, container.ProvideThresholds(&ccfg.Workflow, repos.SystemConfig, logger))
}
