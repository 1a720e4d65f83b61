package types

import (
	"time"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VideoProgress is last-write-wins per (student, video); Completed is sticky
// and must never flip back to false once set.
type VideoProgress struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_student_video,unique" json:"student_id"`
	Student        *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
	VideoID        uuid.UUID      `gorm:"type:uuid;not null;index:idx_student_video,unique" json:"video_id"`
	CourseID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"course_id"`
	LessonID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"lesson_id"`
	WatchPct       float64        `gorm:"not null;default:0" json:"watch_pct"`
	SecondsWatched int            `gorm:"not null;default:0" json:"seconds_watched"`
	VideoDuration  int            `gorm:"not null;default:0" json:"video_duration"`
	Completed      bool           `gorm:"not null;default:false" json:"completed"`
	LastPosition   int            `gorm:"not null;default:0" json:"last_position"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (VideoProgress) TableName() string { return "video_progress" }
