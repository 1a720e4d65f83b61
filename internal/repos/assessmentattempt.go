package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/coursepulse/coursepulse-backend/internal/logger"
  "github.com/coursepulse/coursepulse-backend/internal/types"
)

type AssessmentAttemptRepo interface {
  Create(ctx context.Context, tx *gorm.DB, row *types.AssessmentAttempt) error
  CountByStudentAndAssessment(ctx context.Context, tx *gorm.DB, studentID, assessmentID uuid.UUID) (int64, error)
  GetByStudentAndCourse(ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID) ([]*types.AssessmentAttempt, error)
}

type assessmentAttemptRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewAssessmentAttemptRepo(db *gorm.DB, baseLog *logger.Logger) AssessmentAttemptRepo {
  repoLog := baseLog.With("repo", "AssessmentAttemptRepo")
  return &assessmentAttemptRepo{db: db, log: repoLog}
}

func (r *assessmentAttemptRepo) Create(ctx context.Context, tx *gorm.DB, row *types.AssessmentAttempt) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return transaction.WithContext(ctx).Create(row).Error
}

func (r *assessmentAttemptRepo) CountByStudentAndAssessment(ctx context.Context, tx *gorm.DB, studentID, assessmentID uuid.UUID) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.AssessmentAttempt{}).
    Where("student_id = ? AND assessment_id = ?", studentID, assessmentID).
    Count(&count).Error; err != nil {
    return 0, err
  }
  return count, nil
}

func (r *assessmentAttemptRepo) GetByStudentAndCourse(ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID) ([]*types.AssessmentAttempt, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.AssessmentAttempt
  if studentID == uuid.Nil || courseID == uuid.Nil {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("student_id = ? AND course_id = ?", studentID, courseID).
    Order("submitted_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
