package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/config"
	"github.com/habitloop/internal/handler"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, cfg config.AppConfig, logger *slog.Logger) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	handler.RegisterValidations()

	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestLogger(logger))

	// 健康检查
	r.GET("/health", api.Health)

	// 认证路由
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", api.Register)
		auth.POST("/login", api.Login)

		me := auth.Group("")
		me.Use(api.AuthRequired())
		{
			me.GET("/me", api.Me)
			me.PUT("/me", api.UpdateProfile)
			me.PUT("/password", api.ChangePassword)
		}
	}

	// 习惯路由，全部需要认证
	habits := r.Group("/api/habits")
	habits.Use(api.AuthRequired())
	{
		habits.GET("", api.ListHabits)
		habits.POST("", api.CreateHabit)
		habits.GET("/:id", api.GetHabit)
		habits.PUT("/:id", api.UpdateHabit)
		habits.DELETE("/:id", api.DeleteHabit)

		// 打卡与统计
		habits.POST("/:id/logs", api.LogCompletion)
		habits.POST("/:id/cancel", api.CancelCompletion)
		habits.GET("/:id/stats", api.GetStats)
		habits.GET("/:id/heatmap", api.GetHeatmap)
	}

	// AI 日程生成
	r.POST("/api/ai", api.AuthRequired(), api.GeneratePlan)

	return r
}
