package types

import (
	"time"
	"github.com/google/uuid"
)

// DailyStat is the per-(student, day) rollup. The aggregation job overwrites
// every counter on each run rather than incrementing, so re-running a day is
// idempotent. StatDate is a date column holding midnight UTC of the day.
type DailyStat struct {
	ID               uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID        uuid.UUID `gorm:"type:uuid;not null;index:idx_student_day,unique" json:"student_id"`
	Student          *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
	StatDate         time.Time `gorm:"type:date;not null;index:idx_student_day,unique" json:"stat_date"`
	SessionsCount    int       `gorm:"not null;default:0" json:"sessions_count"`
	TotalTimeSeconds int       `gorm:"not null;default:0" json:"total_time_seconds"`
	LessonsCompleted int       `gorm:"not null;default:0" json:"lessons_completed"`
	VideosWatched    int       `gorm:"not null;default:0" json:"videos_watched"`
	QuizzesAttempted int       `gorm:"not null;default:0" json:"quizzes_attempted"`
	WasActive        bool      `gorm:"not null;default:false" json:"was_active"`
	CreatedAt        time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (DailyStat) TableName() string { return "daily_stat" }
