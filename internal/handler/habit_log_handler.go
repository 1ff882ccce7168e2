package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/service"
	"gorm.io/datatypes"
)

type logCompletionPayload struct {
	Status      string          `json:"status" binding:"required,oneof=COMPLETED FAILED SKIPPED"`
	Notes       string          `json:"notes"`
	Mood        *int            `json:"mood" binding:"omitempty,min=1,max=5"`
	Energy      *int            `json:"energy" binding:"omitempty,min=1,max=5"`
	ActualValue *float64        `json:"actual_value"`
	Weather     json.RawMessage `json:"weather"`
}

type cancelCompletionPayload struct {
	Reason string `json:"reason" binding:"omitempty,max=255"`
}

// LogCompletion 为今天记录打卡结果，同一天重复提交是覆盖而不是新增
func (a *API) LogCompletion(c *gin.Context) {
	var payload logCompletionPayload
	if !bindJSON(c, &payload, "打卡信息不完整或格式错误") {
		return
	}

	log, created, err := a.completions.Record(
		c.Param("id"), currentUserID(c), time.Now(),
		service.LogInput{
			Status:      payload.Status,
			Notes:       payload.Notes,
			Mood:        payload.Mood,
			Energy:      payload.Energy,
			ActualValue: payload.ActualValue,
			Weather:     datatypes.JSON(payload.Weather),
		})
	if err != nil {
		handleServiceError(c, err, "打卡失败")
		return
	}

	message := "打卡成功"
	if !created {
		message = "打卡记录已更新"
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"message":   message,
		"habit_log": logToPayload(*log),
	})
}

// CancelCompletion 撤销今天的 COMPLETED/SKIPPED 记录
func (a *API) CancelCompletion(c *gin.Context) {
	var payload cancelCompletionPayload
	if !bindJSON(c, &payload, "撤销信息格式错误") {
		return
	}

	log, err := a.completions.Cancel(c.Param("id"), currentUserID(c), time.Now(), payload.Reason)
	if err != nil {
		handleServiceError(c, err, "撤销打卡失败")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"message":   "打卡已撤销",
		"habit_log": logToPayload(*log),
	})
}

// GetStats 返回最近 ?day= 天（默认 30）的统计报告
func (a *API) GetStats(c *gin.Context) {
	days := parseDayQuery(c, 30, 365)

	report, err := a.stats.GetStats(c.Param("id"), currentUserID(c), days)
	if err != nil {
		handleServiceError(c, err, "获取统计失败")
		return
	}

	logs := make([]gin.H, 0, len(report.Logs))
	for _, log := range report.Logs {
		logs = append(logs, logToPayload(log))
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"habit":  report.Habit,
		"period": report.Period,
		"stats":  report.Stats,
		"logs":   logs,
	})
}

// GetHeatmap 返回最近 ?day= 天（默认 90）的日历热力图
func (a *API) GetHeatmap(c *gin.Context) {
	days := parseDayQuery(c, 90, 366)

	heatmap, err := a.stats.GetHeatmap(c.Param("id"), currentUserID(c), days)
	if err != nil {
		handleServiceError(c, err, "获取热力图失败")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"heatmap": heatmap})
}
