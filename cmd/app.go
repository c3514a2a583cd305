package main

import (
	"fmt"

	"floatai/internal/config"
	"floatai/internal/storage"
	"floatai/internal/transport"
	"floatai/internal/utils"
	"floatai/pkg/logger"
)

// app 各子命令共用的依赖
type app struct {
	cfg       *config.Config
	store     *storage.Store
	transport transport.Transport
}

func bootstrap() (*app, error) {
	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	// 初始化存储
	store, err := storage.New(cfg.Storage.Type, cfg.Storage.Location())
	if err != nil {
		return nil, err
	}
	if err := store.Init(); err != nil {
		return nil, err
	}

	httpClient := utils.NewHTTPClient(cfg.Provider.Timeout, cfg.Provider.DebugRequest)
	return &app{
		cfg:       cfg,
		store:     store,
		transport: transport.NewOpenAI(httpClient),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		logger.Errorf("failed to close storage: %v", err)
	}
}
