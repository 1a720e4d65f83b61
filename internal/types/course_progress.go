package types

import (
	"time"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ProgressActive    = "active"
	ProgressCompleted = "completed"
)

// CourseProgress is the per-(student, course) mutable aggregate. CompletionPct
// is derived from LessonsCompleted/TotalLessons and always clamped to [0,100];
// LongestStreakDays never drops below CurrentStreakDays; LastActivityAt only
// moves forward. Rows are created on enrollment (or first lesson completion)
// and never deleted, completion is terminal via Status.
type CourseProgress struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID         uuid.UUID      `gorm:"type:uuid;not null;index:idx_student_course,unique" json:"student_id"`
	Student           *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
	CourseID          uuid.UUID      `gorm:"type:uuid;not null;index:idx_student_course,unique" json:"course_id"`
	Course            *Course        `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	LessonsCompleted  int            `gorm:"not null;default:0" json:"lessons_completed"`
	TotalLessons      int            `gorm:"not null;default:0" json:"total_lessons"`
	CompletionPct     float64        `gorm:"not null;default:0" json:"completion_pct"`
	TimeSpentSeconds  int            `gorm:"not null;default:0" json:"time_spent_seconds"`
	Status            string         `gorm:"not null;default:'active'" json:"status"`
	StartedAt         time.Time      `gorm:"not null" json:"started_at"`
	LastActivityAt    time.Time      `gorm:"not null;index" json:"last_activity_at"`
	CompletedAt       *time.Time     `json:"completed_at,omitempty"`
	CurrentStreakDays int            `gorm:"not null;default:0" json:"current_streak_days"`
	LongestStreakDays int            `gorm:"not null;default:0" json:"longest_streak_days"`
	LastStreakDate    *time.Time     `json:"last_streak_date,omitempty"`
	CreatedAt         time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (CourseProgress) TableName() string { return "course_progress" }
