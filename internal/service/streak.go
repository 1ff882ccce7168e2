package service

import "github.com/habitloop/internal/db"

// Counters 是习惯滚动统计的纯值快照，便于在事务外做推演
type Counters struct {
	CurrentStreak    int
	LongestStreak    int
	TotalCompletions int
}

// CountersOf 摘取习惯当前的计数器
func CountersOf(habit *db.Habit) Counters {
	return Counters{
		CurrentStreak:    habit.CurrentStreak,
		LongestStreak:    habit.LongestStreak,
		TotalCompletions: habit.TotalCompletions,
	}
}

// AdvanceCounters 在某天首次迁移到 COMPLETED 时推进计数器。
// 连胜规则按字面的"昨天已完成"判断，不对每周/指定星期几的
// 排期做特殊处理：昨天完成则连胜加一，否则从今天重新起算为 1。
// LongestStreak 单调不减。
func AdvanceCounters(c Counters, yesterdayCompleted bool) Counters {
	c.TotalCompletions++
	if yesterdayCompleted {
		c.CurrentStreak++
	} else {
		c.CurrentStreak = 1
	}
	if c.CurrentStreak > c.LongestStreak {
		c.LongestStreak = c.CurrentStreak
	}
	return c
}

// RevertCompletion 撤销一次完成：TotalCompletions 与 CurrentStreak
// 严格减一并钳制在 0，LongestStreak 永不回调。
// 返回值 clamped 表示计数器本应变为负数，属于数据一致性缺陷，
// 调用方可据此记录告警。
func RevertCompletion(c Counters) (next Counters, clamped bool) {
	next = c
	next.TotalCompletions--
	next.CurrentStreak--
	if next.TotalCompletions < 0 {
		next.TotalCompletions = 0
		clamped = true
	}
	if next.CurrentStreak < 0 {
		next.CurrentStreak = 0
		clamped = true
	}
	return next, clamped
}
