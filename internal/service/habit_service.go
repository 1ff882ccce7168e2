package service

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/habitloop/internal/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var validCategories = map[string]bool{
	db.CategoryOutdoor:  true,
	db.CategoryWork:     true,
	db.CategoryHealth:   true,
	db.CategoryLearning: true,
	db.CategoryOther:    true,
}

var scheduledTimePattern = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)$`)

// HabitService 负责习惯配置的增删改查，打卡与统计在各自的服务里
// 所有查询都按 userID 做归属过滤，软删除只翻转 IsActive

type HabitService struct {
	db *gorm.DB
}

// HabitInput 定义创建习惯时可配置字段
type HabitInput struct {
	Name                string
	Description         string
	Category            string
	Icon                string
	Color               string
	Frequency           string
	HabitType           string
	TargetValue         *int
	TargetUnit          string
	TargetCount         int
	TargetDays          datatypes.JSON
	AllowFlexible       bool
	ScheduledTime       string
	IsWeatherDependent  bool
	RequiresGoodWeather bool
	ReminderEnabled     bool
}

// HabitUpdate 定义更新习惯时的可选字段，nil 表示保持原值
type HabitUpdate struct {
	Name                *string
	Description         *string
	Category            *string
	Icon                *string
	Color               *string
	Frequency           *string
	TargetDays          datatypes.JSON
	AllowFlexible       *bool
	ScheduledTime       *string
	IsWeatherDependent  *bool
	RequiresGoodWeather *bool
	ReminderEnabled     *bool
	IsActive            *bool
}

// NewHabitService 构造 HabitService
func NewHabitService(gdb *gorm.DB) *HabitService {
	return &HabitService{db: gdb}
}

// Create 为用户新建习惯，计数器从零起算
func (s *HabitService) Create(userID string, input HabitInput) (*db.Habit, error) {
	if err := validateHabitInput(input); err != nil {
		return nil, err
	}

	habit := db.Habit{
		UserID:              userID,
		Name:                strings.TrimSpace(input.Name),
		Description:         strings.TrimSpace(input.Description),
		Category:            normalizeCategory(input.Category),
		Icon:                input.Icon,
		Color:               input.Color,
		Frequency:           input.Frequency,
		HabitType:           input.HabitType,
		TargetValue:         input.TargetValue,
		TargetUnit:          input.TargetUnit,
		TargetCount:         input.TargetCount,
		TargetDays:          input.TargetDays,
		AllowFlexible:       input.AllowFlexible,
		ScheduledTime:       strings.TrimSpace(input.ScheduledTime),
		IsWeatherDependent:  input.IsWeatherDependent,
		RequiresGoodWeather: input.RequiresGoodWeather,
		ReminderEnabled:     input.ReminderEnabled,
		IsActive:            true,
	}
	if habit.Icon == "" {
		habit.Icon = "⭐"
	}
	if habit.Color == "" {
		habit.Color = "#6b7280"
	}
	if habit.Frequency == "" {
		habit.Frequency = "DAILY"
	}
	if habit.HabitType == "" {
		habit.HabitType = "boolean"
	}
	if habit.TargetCount <= 0 {
		habit.TargetCount = 1
	}

	if err := s.db.Create(&habit).Error; err != nil {
		return nil, fmt.Errorf("create habit: %w", err)
	}
	return &habit, nil
}

// List 返回用户的习惯集合，active 为 nil 时不过滤软删除状态；
// 每个习惯预加载当天的打卡记录，便于前端直接渲染今日状态
func (s *HabitService) List(userID string, active *bool) ([]db.Habit, error) {
	var habits []db.Habit

	query := s.db.Where("user_id = ?", userID)
	if active != nil {
		query = query.Where("is_active = ?", *active)
	}

	today := normalizeToDate(time.Now())
	if err := query.
		Preload("Logs", "log_date = ?", today).
		Order("created_at DESC").
		Find(&habits).Error; err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}

	return habits, nil
}

// Get 返回单个习惯及其最近 10 条打卡记录
func (s *HabitService) Get(habitID, userID string) (*db.Habit, error) {
	var habit db.Habit
	err := s.db.
		Preload("Logs", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("log_date DESC").Limit(10)
		}).
		Where("id = ? AND user_id = ?", habitID, userID).
		First(&habit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return &habit, nil
}

// Update 按字段更新习惯，未提供的字段保持原值
func (s *HabitService) Update(habitID, userID string, update HabitUpdate) (*db.Habit, error) {
	var existing db.Habit
	if err := s.db.Where("id = ? AND user_id = ?", habitID, userID).First(&existing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("find habit: %w", err)
	}

	if update.Name != nil {
		existing.Name = strings.TrimSpace(*update.Name)
	}
	if update.Description != nil {
		existing.Description = strings.TrimSpace(*update.Description)
	}
	if update.Category != nil {
		if !validCategories[*update.Category] {
			return nil, fmt.Errorf("%w: unsupported category %s", ErrValidation, *update.Category)
		}
		existing.Category = *update.Category
	}
	if update.Icon != nil {
		existing.Icon = *update.Icon
	}
	if update.Color != nil {
		existing.Color = *update.Color
	}
	if update.Frequency != nil {
		existing.Frequency = *update.Frequency
	}
	if update.TargetDays != nil {
		existing.TargetDays = update.TargetDays
	}
	if update.AllowFlexible != nil {
		existing.AllowFlexible = *update.AllowFlexible
	}
	if update.ScheduledTime != nil {
		trimmed := strings.TrimSpace(*update.ScheduledTime)
		if trimmed != "" && !scheduledTimePattern.MatchString(trimmed) {
			return nil, fmt.Errorf("%w: scheduled time must be HH:MM", ErrValidation)
		}
		existing.ScheduledTime = trimmed
	}
	if update.IsWeatherDependent != nil {
		existing.IsWeatherDependent = *update.IsWeatherDependent
	}
	if update.RequiresGoodWeather != nil {
		existing.RequiresGoodWeather = *update.RequiresGoodWeather
	}
	if update.ReminderEnabled != nil {
		existing.ReminderEnabled = *update.ReminderEnabled
	}
	if update.IsActive != nil {
		existing.IsActive = *update.IsActive
	}

	if existing.Name == "" {
		return nil, fmt.Errorf("%w: habit name is required", ErrValidation)
	}

	if err := s.db.Save(&existing).Error; err != nil {
		return nil, fmt.Errorf("update habit: %w", err)
	}
	return &existing, nil
}

// Delete 软删除习惯：仅翻转 IsActive，日志与计数器保持不动
func (s *HabitService) Delete(habitID, userID string) error {
	var habit db.Habit
	if err := s.db.Where("id = ? AND user_id = ?", habitID, userID).First(&habit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrHabitNotFound
		}
		return fmt.Errorf("find habit: %w", err)
	}

	if err := s.db.Model(&habit).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	return nil
}

func validateHabitInput(input HabitInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: habit name is required", ErrValidation)
	}
	if input.Category != "" && !validCategories[input.Category] {
		return fmt.Errorf("%w: unsupported category %s", ErrValidation, input.Category)
	}
	if t := strings.TrimSpace(input.ScheduledTime); t != "" && !scheduledTimePattern.MatchString(t) {
		return fmt.Errorf("%w: scheduled time must be HH:MM", ErrValidation)
	}
	return nil
}

func normalizeCategory(category string) string {
	if category == "" {
		return db.CategoryOther
	}
	return category
}

// findOwnedHabit 按归属约束加载习惯，归属校验与 active/inactive 无关。
// forUpdate 为 true 时对习惯行加行级锁，使同一习惯上的并发打卡
// 对计数器的读改写串行化。
func findOwnedHabit(tx *gorm.DB, habitID, userID string, forUpdate bool) (*db.Habit, error) {
	query := tx.Where("id = ? AND user_id = ?", habitID, userID)
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var habit db.Habit
	if err := query.First(&habit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("find habit: %w", err)
	}
	return &habit, nil
}

func normalizeToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
