package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/habitloop/internal/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CompletionService 负责打卡记录与计数器的原子更新。
// 每次操作恰好跑在一个数据库事务里：日志 upsert 与计数器调整
// 要么一起提交，要么一起回滚。

type CompletionService struct {
	db     *gorm.DB
	logger *slog.Logger
}

// LogInput 定义打卡时的输入对象，Weather 对引擎完全不透明
type LogInput struct {
	Status      string
	Notes       string
	Mood        *int
	Energy      *int
	ActualValue *float64
	Weather     datatypes.JSON
}

// NewCompletionService 构造 CompletionService
func NewCompletionService(gdb *gorm.DB, logger *slog.Logger) *CompletionService {
	return &CompletionService{db: gdb, logger: logger}
}

// Record 为 (habit, logDate) 幂等记录一次打卡结果。
// 计数器只在状态发生迁移时调整：
//   - 非完成 -> 完成：推进连胜计数器
//   - 完成 -> 非完成：严格回退一次完成
//   - 完成 -> 完成 / 非完成 -> 非完成：计数器不动
//
// 返回的 created 仅表示该行是否为当天首次写入，供调用方提示文案用。
func (s *CompletionService) Record(habitID, userID string, logDate time.Time, input LogInput) (*db.HabitLog, bool, error) {
	date := normalizeToDate(logDate)

	var (
		record  db.HabitLog
		created bool
	)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		habit, err := findOwnedHabit(tx, habitID, userID, true)
		if err != nil {
			return err
		}

		// 读出当天既有记录，缺行即 PENDING
		var prior *db.HabitLog
		var existing db.HabitLog
		if err := tx.Where("habit_id = ? AND log_date = ?", habitID, date).
			First(&existing).Error; err == nil {
			prior = &existing
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find habit log: %w", err)
		}

		wasCompleted := db.StatusOf(prior) == db.StatusCompleted
		isNowCompleted := input.Status == db.StatusCompleted

		// CompletedAt 只在完成态有值：重复保存保留原时间戳，
		// 新完成盖当前时间，退出完成态清空
		var completedAt *time.Time
		switch {
		case isNowCompleted && wasCompleted:
			completedAt = prior.CompletedAt
		case isNowCompleted:
			now := time.Now()
			completedAt = &now
		}

		record = db.HabitLog{
			HabitID:     habitID,
			UserID:      userID,
			LogDate:     date,
			Status:      input.Status,
			CompletedAt: completedAt,
			Notes:       strings.TrimSpace(input.Notes),
			Mood:        input.Mood,
			Energy:      input.Energy,
			ActualValue: input.ActualValue,
			Weather:     input.Weather,
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "habit_id"}, {Name: "log_date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status", "completed_at", "notes", "mood", "energy",
				"actual_value", "weather", "updated_at",
			}),
		}).Create(&record).Error; err != nil {
			return fmt.Errorf("upsert habit log: %w", err)
		}

		if err := tx.Where("habit_id = ? AND log_date = ?", habitID, date).
			First(&record).Error; err != nil {
			return fmt.Errorf("reload habit log: %w", err)
		}

		created = prior == nil

		switch {
		case !wasCompleted && isNowCompleted:
			yesterdayCompleted, err := hasCompletedLog(tx, habitID, date.AddDate(0, 0, -1))
			if err != nil {
				return err
			}
			return saveCounters(tx, habit.ID, AdvanceCounters(CountersOf(habit), yesterdayCompleted))
		case wasCompleted && !isNowCompleted:
			next, clamped := RevertCompletion(CountersOf(habit))
			if clamped {
				s.logger.Warn("habit counters clamped at zero",
					slog.String("habit_id", habit.ID))
			}
			return saveCounters(tx, habit.ID, next)
		default:
			// 重复保存同类状态，计数器不动
			return nil
		}
	})
	if err != nil {
		return nil, false, err
	}

	return &record, created, nil
}

// Cancel 将当天 COMPLETED/SKIPPED 的记录迁移到 CANCELLED。
// 之前是 COMPLETED 时严格回退 TotalCompletions 与 CurrentStreak，
// LongestStreak 单调不减，撤销从不回调它。
func (s *CompletionService) Cancel(habitID, userID string, logDate time.Time, reason string) (*db.HabitLog, error) {
	date := normalizeToDate(logDate)

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "user cancelled"
	}

	var record db.HabitLog

	err := s.db.Transaction(func(tx *gorm.DB) error {
		habit, err := findOwnedHabit(tx, habitID, userID, true)
		if err != nil {
			return err
		}

		if err := tx.Where("habit_id = ? AND log_date = ? AND status IN ?",
			habitID, date, []string{db.StatusCompleted, db.StatusSkipped}).
			First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLogNotFound
			}
			return fmt.Errorf("find habit log: %w", err)
		}

		wasCompleted := record.Status == db.StatusCompleted

		now := time.Now()
		updates := map[string]interface{}{
			"status":           db.StatusCancelled,
			"completed_at":     nil,
			"cancelled_at":     now,
			"cancelled_reason": reason,
		}
		if err := tx.Model(&record).Updates(updates).Error; err != nil {
			return fmt.Errorf("cancel habit log: %w", err)
		}
		if err := tx.First(&record, "id = ?", record.ID).Error; err != nil {
			return fmt.Errorf("reload habit log: %w", err)
		}

		if !wasCompleted {
			return nil
		}

		next, clamped := RevertCompletion(CountersOf(habit))
		if clamped {
			s.logger.Warn("habit counters clamped at zero",
				slog.String("habit_id", habit.ID))
		}
		return saveCounters(tx, habit.ID, next)
	})
	if err != nil {
		return nil, err
	}

	return &record, nil
}

func hasCompletedLog(tx *gorm.DB, habitID string, date time.Time) (bool, error) {
	var log db.HabitLog
	err := tx.Where("habit_id = ? AND log_date = ? AND status = ?",
		habitID, normalizeToDate(date), db.StatusCompleted).
		First(&log).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("find yesterday log: %w", err)
}

func saveCounters(tx *gorm.DB, habitID string, c Counters) error {
	err := tx.Model(&db.Habit{}).Where("id = ?", habitID).Updates(map[string]interface{}{
		"current_streak":    c.CurrentStreak,
		"longest_streak":    c.LongestStreak,
		"total_completions": c.TotalCompletions,
	}).Error
	if err != nil {
		return fmt.Errorf("update habit counters: %w", err)
	}
	return nil
}
