package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"floatai/internal/config"
	"floatai/internal/conversation"
	"floatai/internal/handler"
	"floatai/internal/service"
	"floatai/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化服务
	views := conversation.NewRegistry()
	chatHandler := handler.NewChatHandler(service.NewChatService(a.store, a.transport, cfg), views, cfg.Server.Heartbeat)
	catalogHandler := handler.NewCatalogHandler(service.NewCatalogService(a.store))

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        handler.NewRouter(cfg, chatHandler, catalogHandler),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// 热更新只作用于日志配置，其余配置需要重启
	config.Watch(func(c *config.Config) {
		if err := logger.Reconfigure(c.Log.Level, c.Log.Format); err != nil {
			logger.Warnf("config reload: %v", err)
			return
		}
		logger.Infof("config reloaded, log level %s", c.Log.Level)
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Infof("服务器启动在端口 %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("服务器正在关闭...")
		views.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if interval := cfg.Storage.BackupInterval; interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := a.store.Backup(); err != nil {
						logger.Errorf("backup failed: %v", err)
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("服务器已关闭")
	return nil
}
