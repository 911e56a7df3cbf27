package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/monitor"
	"github.com/zoek1/web-1/internal/repository"
	"github.com/zoek1/web-1/internal/router"
	"github.com/zoek1/web-1/internal/scheduler"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, sync jobs and registry monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	// 设置Gin模式
	if a.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 启动定时任务
	tasks, err := scheduler.Start(a.svc, a.cfg)
	if err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer tasks.Stop()

	// 启动合约日志监控
	if a.cfg.Monitor.Enabled {
		m := monitor.NewRegistryMonitor(a.chains, a.db, a.svc.Sync, a.cfg.Monitor, a.cfg.Environment())
		if err := m.Start(); err != nil {
			logger.Warn("Registry monitor not started: %v", err)
		} else {
			defer m.Stop()
		}
	}

	srv := &http.Server{
		Addr:    ":" + a.cfg.Server.Port,
		Handler: router.Setup(a.svc),
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting on port %s", a.cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			// Init 内部完成迁移
			db, err := repository.Init(cfg.Database)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
			logger.Info("Database migrated")
			return nil
		},
	}
}

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var (
		network string
		id      int64
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync one on-chain bounty into the database",
		Example: `  bountyd sync --network mainnet --id 1234
  bountyd sync --network rinkeby --id 56 --config ./config`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.svc.Sync.SyncBounty(cmd.Context(), network, id)
			if err != nil {
				return err
			}
			var revision int64
			if result.New != nil {
				revision = result.New.Id
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bounty %d on %s: changed=%v revision=%d\n",
				id, network, result.DidChange, revision)
			return nil
		},
	}
	cmd.Flags().StringVar(&network, "network", "mainnet", "network name")
	cmd.Flags().Int64Var(&id, "id", 0, "StandardBounties bounty id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newSyncPayoutsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-payouts",
		Short: "Check pending payout transactions once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			synced, err := a.svc.PayoutSync.SyncPending(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "synced %d pending payouts\n", synced)
			return nil
		},
	}
}
