package types

import (
	"time"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AssessmentAttempt is append-only: one row per quiz submission, never
// mutated after insert.
type AssessmentAttempt struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	StudentID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"student_id"`
	Student          *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"student,omitempty"`
	AssessmentID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"assessment_id"`
	CourseID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"course_id"`
	AttemptNumber    int            `gorm:"not null;default:1" json:"attempt_number"`
	Score            float64        `gorm:"not null;default:0" json:"score"`
	MaxScore         float64        `gorm:"not null;default:0" json:"max_score"`
	IsPassed         bool           `gorm:"not null;default:false" json:"is_passed"`
	TimeSpentSeconds int            `gorm:"not null;default:0" json:"time_spent_seconds"`
	Answers          datatypes.JSON `gorm:"type:jsonb;column:answers" json:"answers"`
	SubmittedAt      time.Time      `gorm:"not null" json:"submitted_at"`
	CreatedAt        time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (AssessmentAttempt) TableName() string { return "assessment_attempt" }
