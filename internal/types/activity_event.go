package types

import (
	"time"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	EventLessonStart    = "lesson_start"
	EventLessonComplete = "lesson_complete"
	EventVideoPlay      = "video_play"
	EventVideoComplete  = "video_complete"
	EventQuizSubmit     = "quiz_submit"
	EventCourseEnroll   = "course_enroll"
	EventCourseComplete = "course_complete"
)

// ActivityEvent is the raw, append-only telemetry fact. Rows are never
// updated; the retention job hard-deletes them past the horizon, so there
// is no soft-delete column. The composite unique index is the dedup key
// for at-least-once clients: a resent event lands on the same key and the
// insert is skipped.
type ActivityEvent struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID  uuid.UUID      `gorm:"type:uuid;not null;index;index:idx_event_dedup,unique" json:"student_id"`
	Student    *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
	CourseID   *uuid.UUID     `gorm:"type:uuid;index" json:"course_id,omitempty"`
	LessonID   *uuid.UUID     `gorm:"type:uuid;index" json:"lesson_id,omitempty"`
	Type       string         `gorm:"column:type;not null;index;index:idx_event_dedup,unique" json:"type"`
	OccurredAt time.Time      `gorm:"not null;index;index:idx_event_dedup,unique" json:"occurred_at"`
	SessionID  string         `gorm:"not null;index:idx_event_dedup,unique" json:"session_id"`
	Payload    datatypes.JSON `gorm:"type:jsonb;column:payload" json:"payload"`
	DeviceType string         `json:"device_type"`
	Browser    string         `json:"browser"`
	OS         string         `json:"os"`
	IPAddress  string         `json:"ip_address"`
	CreatedAt  time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (ActivityEvent) TableName() string { return "activity_event" }
