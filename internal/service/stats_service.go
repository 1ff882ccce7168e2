package service

import (
	"fmt"
	"math"
	"time"

	"github.com/habitloop/internal/db"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// StatsService 负责只读聚合：周期统计与打卡热力图。
// 聚合只依赖日志快照，不加锁、不写任何东西。

type StatsService struct {
	db *gorm.DB
}

// Stats 是一个日志窗口的汇总结果
// BestDay 为空串表示窗口内没有任何完成记录
type Stats struct {
	TotalLogs      int    `json:"total_logs"`
	CompletedCount int    `json:"completed_count"`
	SkippedCount   int    `json:"skipped_count"`
	CompletionRate int    `json:"completion_rate"`
	BestDay        string `json:"best_day"`
	BestDayCount   int    `json:"best_day_count"`
}

// HabitSummary 摘取习惯计数器，避免把完整模型塞进统计响应
type HabitSummary struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	CurrentStreak    int    `json:"current_streak"`
	LongestStreak    int    `json:"longest_streak"`
	TotalCompletions int    `json:"total_completions"`
}

// Period 描述统计覆盖的日期窗口
type Period struct {
	Days      int    `json:"days"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// StatsReport 是 stats 接口的完整载荷
type StatsReport struct {
	Habit  HabitSummary  `json:"habit"`
	Period Period        `json:"period"`
	Stats  Stats         `json:"stats"`
	Logs   []db.HabitLog `json:"logs"`
}

// HeatmapCell 表示热力图中有记录的一天
type HeatmapCell struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

// Heatmap 映射日期到当天状态，没有记录的日期不出现在 Days 里，
// 调用方由此区分"无数据"与任何显式状态
type Heatmap struct {
	StartDate string                 `json:"start_date"`
	EndDate   string                 `json:"end_date"`
	Days      map[string]HeatmapCell `json:"days"`
}

// NewStatsService 构造 StatsService
func NewStatsService(gdb *gorm.DB) *StatsService {
	return &StatsService{db: gdb}
}

// CalculateStats 对按日期升序排好的日志窗口做纯聚合。
// 完成率四舍五入为百分比整数，空窗口一律归零，绝不除零。
// 最佳星期几只统计 COMPLETED 日志：按出现次数取最大桶，
// 次数打平时完成时间戳更晚的桶胜出，仍打平则取星期序号小的。
func CalculateStats(logs []db.HabitLog) Stats {
	stats := Stats{TotalLogs: len(logs)}

	var dayCounts [7]int
	var dayLatest [7]time.Time

	for _, log := range logs {
		switch log.Status {
		case db.StatusSkipped:
			stats.SkippedCount++
		case db.StatusCompleted:
			stats.CompletedCount++
			weekday := log.LogDate.Weekday()
			dayCounts[weekday]++
			if log.CompletedAt != nil && log.CompletedAt.After(dayLatest[weekday]) {
				dayLatest[weekday] = *log.CompletedAt
			}
		}
	}

	if stats.TotalLogs > 0 {
		stats.CompletionRate = int(math.Round(float64(stats.CompletedCount) / float64(stats.TotalLogs) * 100))
	}

	best := -1
	for day := 0; day < 7; day++ {
		if dayCounts[day] == 0 {
			continue
		}
		switch {
		case best < 0,
			dayCounts[day] > dayCounts[best],
			dayCounts[day] == dayCounts[best] && dayLatest[day].After(dayLatest[best]):
			best = day
		}
	}
	if best >= 0 {
		stats.BestDay = time.Weekday(best).String()
		stats.BestDayCount = dayCounts[best]
	}

	return stats
}

// GetStats 校验归属后返回最近 days 天的统计报告。
// 窗口自 today-days 起（含）到今天，与历史行为保持一致。
func (s *StatsService) GetStats(habitID, userID string, days int) (*StatsReport, error) {
	habit, err := findOwnedHabit(s.db, habitID, userID, false)
	if err != nil {
		return nil, err
	}

	today := normalizeToDate(time.Now())
	start := today.AddDate(0, 0, -days)

	var logs []db.HabitLog
	if err := s.db.Where("habit_id = ? AND log_date >= ?", habitID, start).
		Order("log_date ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list habit logs: %w", err)
	}

	return &StatsReport{
		Habit: HabitSummary{
			ID:               habit.ID,
			Name:             habit.Name,
			CurrentStreak:    habit.CurrentStreak,
			LongestStreak:    habit.LongestStreak,
			TotalCompletions: habit.TotalCompletions,
		},
		Period: Period{
			Days:      days,
			StartDate: start.Format(dateLayout),
			EndDate:   today.Format(dateLayout),
		},
		Stats: CalculateStats(logs),
		Logs:  logs,
	}, nil
}

// GetHeatmap 返回 [today-(days-1), today] 共 days 个日历日的打卡状态
func (s *StatsService) GetHeatmap(habitID, userID string, days int) (*Heatmap, error) {
	if _, err := findOwnedHabit(s.db, habitID, userID, false); err != nil {
		return nil, err
	}

	today := normalizeToDate(time.Now())
	start := today.AddDate(0, 0, -(days - 1))

	var logs []db.HabitLog
	if err := s.db.Where("habit_id = ? AND log_date BETWEEN ? AND ?", habitID, start, today).
		Order("log_date ASC").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("list heatmap logs: %w", err)
	}

	heatmap := &Heatmap{
		StartDate: start.Format(dateLayout),
		EndDate:   today.Format(dateLayout),
		Days:      make(map[string]HeatmapCell, len(logs)),
	}
	for _, log := range logs {
		heatmap.Days[log.LogDate.Format(dateLayout)] = HeatmapCell{
			Status: log.Status,
			Notes:  log.Notes,
		}
	}

	return heatmap, nil
}
