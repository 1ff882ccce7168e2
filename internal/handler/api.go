package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/config"
	"github.com/habitloop/internal/service"
	"gorm.io/gorm"
)

// API 汇集各 handler 共享的依赖
type API struct {
	cfg         config.AppConfig
	logger      *slog.Logger
	auth        *service.AuthService
	habits      *service.HabitService
	completions *service.CompletionService
	stats       *service.StatsService
	planner     *service.AIPlanService
	startedAt   time.Time
}

// NewAPI 构造 handler 集合及其共享服务
func NewAPI(cfg config.AppConfig, gdb *gorm.DB, logger *slog.Logger) *API {
	return &API{
		cfg:         cfg,
		logger:      logger,
		auth:        service.NewAuthService(gdb, cfg.JWTSecret),
		habits:      service.NewHabitService(gdb),
		completions: service.NewCompletionService(gdb, logger),
		stats:       service.NewStatsService(gdb),
		planner:     service.NewAIPlanService(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel),
		startedAt:   time.Now(),
	}
}

// Planner 暴露 AI 日程服务，测试时用于替换 HTTP 客户端
func (a *API) Planner() *service.AIPlanService {
	return a.planner
}

// Health 健康检查
func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "OK",
		"timestamp":   time.Now().Format(time.RFC3339),
		"uptime":      time.Since(a.startedAt).Seconds(),
		"environment": a.cfg.AppEnv,
	})
}
