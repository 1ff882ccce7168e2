package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/rs/cors"

	"github.com/habitloop/internal/config"
	"github.com/habitloop/internal/db"
	"github.com/habitloop/internal/handler"
	"github.com/habitloop/internal/router"
)

func main() {
	cfg := config.Load()

	// 开发环境用 tint 彩色日志，其余环境输出 JSON
	var logHandler slog.Handler
	if strings.EqualFold(cfg.AppEnv, "dev") {
		logHandler = tint.NewHandler(os.Stderr, &tint.Options{TimeFormat: time.RFC3339})
	} else {
		logHandler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{AddSource: true})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath, logger); err != nil {
		logger.Error("failed to initialize database", slog.Any("error", err))
		os.Exit(1)
	}

	// 设置 Gin 路由并包上 CORS
	api := handler.NewAPI(cfg, db.DB, logger)
	r := router.SetupRouter(api, cfg, logger)

	corsWrapper := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: corsWrapper.Handler(r),
	}

	go func() {
		logger.Info("server listening", slog.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to run server", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// 等待退出信号后优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", slog.Any("error", err))
	}
}
