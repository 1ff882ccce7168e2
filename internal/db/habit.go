package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 习惯分类，沿用产品侧约定的五个枚举值
const (
	CategoryOutdoor  = "OUTDOOR"
	CategoryWork     = "WORK"
	CategoryHealth   = "HEALTH"
	CategoryLearning = "LEARNING"
	CategoryOther    = "OTHER"
)

// 打卡状态。PENDING 表示当天还没有任何记录（即数据库中无行），
// 只会出现在读取侧的归一化结果里，不会被写入。
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusSkipped   = "SKIPPED"
	StatusCancelled = "CANCELLED"
)

// Habit 定义了习惯模型
// CurrentStreak/LongestStreak/TotalCompletions 是打卡日志的物化视图，
// 只允许在打卡事务内随状态迁移一起更新，任何时刻 LongestStreak >= CurrentStreak
// TargetDays 序列化为 JSON 数组（如 [1,3,5] 表示周一三五），引擎不解释其含义
// IsActive 为软删除标记，归属校验不区分 active/inactive
type Habit struct {
	ID                  string     `gorm:"type:uuid;primaryKey"`
	UserID              string     `gorm:"type:uuid;index;not null"`
	Name                string     `gorm:"not null"`
	Description         string
	Category            string     `gorm:"default:OTHER"`
	Icon                string     `gorm:"default:⭐"`
	Color               string     `gorm:"default:#6b7280"`
	Frequency           string     `gorm:"default:DAILY"`
	HabitType           string     `gorm:"default:boolean"`
	TargetValue         *int
	TargetUnit          string
	TargetCount         int        `gorm:"default:1"`
	TargetDays          datatypes.JSON
	AllowFlexible       bool
	ScheduledTime       string
	IsWeatherDependent  bool
	RequiresGoodWeather bool
	ReminderEnabled     bool       `gorm:"default:true"`
	CurrentStreak       int        `gorm:"default:0"`
	LongestStreak       int        `gorm:"default:0"`
	TotalCompletions    int        `gorm:"default:0"`
	IsActive            bool       `gorm:"default:true"`
	Logs                []HabitLog `gorm:"foreignKey:HabitID"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// BeforeCreate 在缺省时生成 UUID 主键
func (h *Habit) BeforeCreate(*gorm.DB) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	return nil
}

// HabitLog 记录习惯打卡日志，是统计数据的事实来源
// HabitID + LogDate 采用唯一索引，保证每个习惯每天至多一行；
// 行只会被覆盖或迁移到 CANCELLED，从不删除
// CompletedAt 仅在状态为 COMPLETED 时有值，CancelledAt/CancelledReason
// 仅在迁移到 CANCELLED 时盖章
// Weather 为不透明 JSON 负载，统计逻辑不读取
type HabitLog struct {
	ID              string    `gorm:"type:uuid;primaryKey"`
	HabitID         string    `gorm:"type:uuid;index:idx_habit_log_unique,unique;not null"`
	UserID          string    `gorm:"type:uuid;index;not null"`
	LogDate         time.Time `gorm:"type:date;index:idx_habit_log_unique,unique;not null"`
	Status          string    `gorm:"not null"`
	CompletedAt     *time.Time
	CancelledAt     *time.Time
	CancelledReason string
	Notes           string
	Mood            *int
	Energy          *int
	ActualValue     *float64
	Weather         datatypes.JSON
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName 重写确保唯一索引作用到 habit_id + log_date
func (HabitLog) TableName() string {
	return "habit_logs"
}

// BeforeCreate 在缺省时生成 UUID 主键
func (l *HabitLog) BeforeCreate(*gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// StatusOf 将"无记录"折叠为显式的 PENDING，避免调用方散落 nil 判断
func StatusOf(log *HabitLog) string {
	if log == nil {
		return StatusPending
	}
	return log.Status
}
