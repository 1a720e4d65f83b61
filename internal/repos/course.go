package repos

import (
  "context"
  "errors"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/coursepulse/coursepulse-backend/internal/logger"
  "github.com/coursepulse/coursepulse-backend/internal/types"
)

type CourseRepo interface {
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Course, error)
  CountLessons(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (int, error)
  LessonExists(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID) (bool, error)
}

type courseRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
  repoLog := baseLog.With("repo", "CourseRepo")
  return &courseRepo{db: db, log: repoLog}
}

func (r *courseRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Course, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var row types.Course
  err := transaction.WithContext(ctx).
    Where("id = ?", id).
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

// CountLessons sums lessons across every section of the course.
func (r *courseRepo) CountLessons(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (int, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.Lesson{}).
    Joins("JOIN course_section ON course_section.id = lesson.section_id").
    Where("course_section.course_id = ? AND course_section.deleted_at IS NULL", courseID).
    Count(&count).Error; err != nil {
    return 0, err
  }
  return int(count), nil
}

func (r *courseRepo) LessonExists(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.Lesson{}).
    Where("id = ?", lessonID).
    Count(&count).Error; err != nil {
    return false, err
  }
  return count > 0, nil
}
