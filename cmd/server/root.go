package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zoek1/web-1/internal/archive"
	"github.com/zoek1/web-1/internal/chain"
	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/event"
	"github.com/zoek1/web-1/internal/ipfs"
	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/logic"
	"github.com/zoek1/web-1/internal/repository"
	"gorm.io/gorm"
)

// rootOptions 全局参数
type rootOptions struct {
	ConfigDir string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "bountyd",
		Short:         "Bounty lifecycle service",
		Long:          "Mirrors StandardBounties contracts into the bounty database and serves the bounty API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigDir, "config", "", "directory containing config.yaml")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newSyncPayoutsCommand(opts))

	return cmd
}

// loadConfig 读取配置并初始化日志
func loadConfig(opts *rootOptions) (*config.Config, error) {
	var paths []string
	if opts.ConfigDir != "" {
		paths = append(paths, opts.ConfigDir)
	}
	cfg, err := config.Load(paths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Options()); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// app 运行期依赖
type app struct {
	cfg    *config.Config
	db     *gorm.DB
	chains *chain.Manager
	svc    *logic.Services
}

func (a *app) Close() {
	if a.chains != nil {
		a.chains.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Sync()
}

// bootstrap 连接数据库与链节点，组装业务服务
func bootstrap(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	db, err := repository.Init(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	chains, err := chain.NewManager(cfg.Chain)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chain clients: %w", err)
	}

	bus := event.NewBus(
		event.NewSearchIndexer(db, cfg.Server.BaseURL),
		event.NewNotifier(cfg.Server.BaseURL),
	)
	if cfg.Archive.Enabled {
		archiver, err := archive.New(ctx, cfg.Archive)
		if err != nil {
			chains.Close()
			return nil, fmt.Errorf("failed to initialize archive: %w", err)
		}
		bus.Subscribe(archiver)
	}

	env := cfg.Environment()
	reader := chain.NewReader(chains, ipfs.NewClient(cfg.IPFS), env)
	svc := logic.NewServices(db, bus, cfg, reader, chain.NewTxChecker(chains))

	return &app{cfg: cfg, db: db, chains: chains, svc: svc}, nil
}
