package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/habitloop/internal/db"
	"github.com/habitloop/internal/service"
	"gorm.io/datatypes"
)

const dateFormat = "2006-01-02"

type createHabitPayload struct {
	Name                string  `json:"name" binding:"required,min=2,max=255"`
	Description         string  `json:"description"`
	Category            string  `json:"category" binding:"omitempty,oneof=OUTDOOR WORK HEALTH LEARNING OTHER"`
	Icon                string  `json:"icon" binding:"omitempty,max=10"`
	Color               string  `json:"color" binding:"omitempty,hexcolor"`
	Frequency           string  `json:"frequency"`
	HabitType           string  `json:"habit_type"`
	TargetValue         *int    `json:"target_value"`
	TargetUnit          string  `json:"target_unit"`
	TargetCount         int     `json:"target_count"`
	TargetDays          []int   `json:"target_days"`
	AllowFlexible       bool    `json:"allow_flexible"`
	ScheduledTime       string  `json:"scheduled_time" binding:"omitempty,hhmm"`
	IsWeatherDependent  bool    `json:"is_weather_dependent"`
	RequiresGoodWeather bool    `json:"requires_good_weather"`
	ReminderEnabled     *bool   `json:"reminder_enabled"`
}

type updateHabitPayload struct {
	Name                *string `json:"name" binding:"omitempty,min=2,max=255"`
	Description         *string `json:"description"`
	Category            *string `json:"category" binding:"omitempty,oneof=OUTDOOR WORK HEALTH LEARNING OTHER"`
	Icon                *string `json:"icon" binding:"omitempty,max=10"`
	Color               *string `json:"color" binding:"omitempty,hexcolor"`
	Frequency           *string `json:"frequency"`
	TargetDays          []int   `json:"target_days"`
	AllowFlexible       *bool   `json:"allow_flexible"`
	ScheduledTime       *string `json:"scheduled_time" binding:"omitempty,hhmm"`
	IsWeatherDependent  *bool   `json:"is_weather_dependent"`
	RequiresGoodWeather *bool   `json:"requires_good_weather"`
	ReminderEnabled     *bool   `json:"reminder_enabled"`
	IsActive            *bool   `json:"is_active"`
}

// CreateHabit 新建习惯
func (a *API) CreateHabit(c *gin.Context) {
	var payload createHabitPayload
	if !bindJSON(c, &payload, "习惯信息不完整或格式错误") {
		return
	}

	reminder := true
	if payload.ReminderEnabled != nil {
		reminder = *payload.ReminderEnabled
	}

	habit, err := a.habits.Create(currentUserID(c), service.HabitInput{
		Name:                payload.Name,
		Description:         payload.Description,
		Category:            payload.Category,
		Icon:                payload.Icon,
		Color:               payload.Color,
		Frequency:           payload.Frequency,
		HabitType:           payload.HabitType,
		TargetValue:         payload.TargetValue,
		TargetUnit:          payload.TargetUnit,
		TargetCount:         payload.TargetCount,
		TargetDays:          marshalTargetDays(payload.TargetDays),
		AllowFlexible:       payload.AllowFlexible,
		ScheduledTime:       payload.ScheduledTime,
		IsWeatherDependent:  payload.IsWeatherDependent,
		RequiresGoodWeather: payload.RequiresGoodWeather,
		ReminderEnabled:     reminder,
	})
	if err != nil {
		handleServiceError(c, err, "创建习惯失败")
		return
	}

	respondSuccess(c, http.StatusCreated, gin.H{
		"message": "习惯创建成功",
		"habit":   habitToPayload(*habit, false),
	})
}

// ListHabits 返回当前用户的习惯列表，?active=true/false 过滤软删除状态
func (a *API) ListHabits(c *gin.Context) {
	var active *bool
	switch strings.TrimSpace(c.Query("active")) {
	case "true":
		v := true
		active = &v
	case "false":
		v := false
		active = &v
	}

	habits, err := a.habits.List(currentUserID(c), active)
	if err != nil {
		handleServiceError(c, err, "获取习惯列表失败")
		return
	}

	items := make([]gin.H, 0, len(habits))
	for _, habit := range habits {
		items = append(items, habitToPayload(habit, false))
	}

	respondSuccess(c, http.StatusOK, gin.H{"habits": items})
}

// GetHabit 返回单个习惯详情与最近的打卡记录
func (a *API) GetHabit(c *gin.Context) {
	habit, err := a.habits.Get(c.Param("id"), currentUserID(c))
	if err != nil {
		handleServiceError(c, err, "获取习惯失败")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"habit": habitToPayload(*habit, true)})
}

// UpdateHabit 更新习惯，未提供的字段保持原值
func (a *API) UpdateHabit(c *gin.Context) {
	var payload updateHabitPayload
	if !bindJSON(c, &payload, "习惯信息格式错误") {
		return
	}

	habit, err := a.habits.Update(c.Param("id"), currentUserID(c), service.HabitUpdate{
		Name:                payload.Name,
		Description:         payload.Description,
		Category:            payload.Category,
		Icon:                payload.Icon,
		Color:               payload.Color,
		Frequency:           payload.Frequency,
		TargetDays:          marshalTargetDays(payload.TargetDays),
		AllowFlexible:       payload.AllowFlexible,
		ScheduledTime:       payload.ScheduledTime,
		IsWeatherDependent:  payload.IsWeatherDependent,
		RequiresGoodWeather: payload.RequiresGoodWeather,
		ReminderEnabled:     payload.ReminderEnabled,
		IsActive:            payload.IsActive,
	})
	if err != nil {
		handleServiceError(c, err, "更新习惯失败")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"message": "习惯更新成功",
		"habit":   habitToPayload(*habit, false),
	})
}

// DeleteHabit 软删除习惯
func (a *API) DeleteHabit(c *gin.Context) {
	if err := a.habits.Delete(c.Param("id"), currentUserID(c)); err != nil {
		handleServiceError(c, err, "删除习惯失败")
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{"message": "习惯已删除"})
}

func marshalTargetDays(days []int) datatypes.JSON {
	if days == nil {
		return nil
	}
	raw, err := json.Marshal(days)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func habitToPayload(habit db.Habit, withDetail bool) gin.H {
	payload := gin.H{
		"id":                    habit.ID,
		"name":                  habit.Name,
		"description":           habit.Description,
		"category":              habit.Category,
		"icon":                  habit.Icon,
		"color":                 habit.Color,
		"frequency":             habit.Frequency,
		"habit_type":            habit.HabitType,
		"target_count":          habit.TargetCount,
		"allow_flexible":        habit.AllowFlexible,
		"scheduled_time":        habit.ScheduledTime,
		"is_weather_dependent":  habit.IsWeatherDependent,
		"requires_good_weather": habit.RequiresGoodWeather,
		"reminder_enabled":      habit.ReminderEnabled,
		"current_streak":        habit.CurrentStreak,
		"longest_streak":        habit.LongestStreak,
		"total_completions":     habit.TotalCompletions,
		"is_active":             habit.IsActive,
		"created_at":            habit.CreatedAt,
	}

	if habit.TargetValue != nil {
		payload["target_value"] = *habit.TargetValue
		payload["target_unit"] = habit.TargetUnit
	}
	if len(habit.TargetDays) > 0 {
		payload["target_days"] = json.RawMessage(habit.TargetDays)
	}
	if habit.Logs != nil {
		logs := make([]gin.H, 0, len(habit.Logs))
		for _, log := range habit.Logs {
			logs = append(logs, logToPayload(log))
		}
		payload["logs"] = logs
	}
	if withDetail {
		payload["description_html"] = renderDescription(habit.Description)
	}

	return payload
}

func logToPayload(log db.HabitLog) gin.H {
	payload := gin.H{
		"id":       log.ID,
		"habit_id": log.HabitID,
		"log_date": log.LogDate.Format(dateFormat),
		"status":   log.Status,
		"notes":    log.Notes,
	}

	if log.CompletedAt != nil {
		payload["completed_at"] = log.CompletedAt
	}
	if log.CancelledAt != nil {
		payload["cancelled_at"] = log.CancelledAt
		payload["cancelled_reason"] = log.CancelledReason
	}
	if log.Mood != nil {
		payload["mood"] = *log.Mood
	}
	if log.Energy != nil {
		payload["energy"] = *log.Energy
	}
	if log.ActualValue != nil {
		payload["actual_value"] = *log.ActualValue
	}
	if len(log.Weather) > 0 {
		payload["weather"] = json.RawMessage(log.Weather)
	}

	return payload
}
