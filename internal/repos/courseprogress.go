package repos

import (
  "context"
  "errors"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/coursepulse/coursepulse-backend/internal/logger"
  "github.com/coursepulse/coursepulse-backend/internal/types"
)

// CourseAggregates is the instructor-analytics rollup over a course's
// progress rows.
type CourseAggregates struct {
  TotalStudents  int     `gorm:"column:total_students"`
  AvgCompletion  float64 `gorm:"column:avg_completion"`
  CompletedCount int     `gorm:"column:completed_count"`
  AvgTimeSeconds float64 `gorm:"column:avg_time_seconds"`
  AtRiskCount    int     `gorm:"column:at_risk_count"`
}

// DayActiveCount is one point of the active-student time series, grouped by
// calendar day of last activity.
type DayActiveCount struct {
  Day   time.Time `gorm:"column:day"`
  Count int       `gorm:"column:count"`
}

type CourseProgressRepo interface {
  GetByStudentAndCourse(ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID) (*types.CourseProgress, error)
  GetByStudentAndCourseForUpdate(ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID) (*types.CourseProgress, error)
  CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *types.CourseProgress) (bool, error)
  Save(ctx context.Context, tx *gorm.DB, row *types.CourseProgress) error
  TouchActivity(ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID, now time.Time) error
  GetRecentByStudent(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, limit int) ([]*types.CourseProgress, error)
  GetAllByStudent(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.CourseProgress, error)
  AggregateCourse(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, atRiskBefore time.Time) (*CourseAggregates, error)
  ActiveStudentsByDay(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, from time.Time) ([]DayActiveCount, error)
  TopByCompletion(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, limit int) ([]*types.CourseProgress, error)
}

type courseProgressRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewCourseProgressRepo(db *gorm.DB, baseLog *logger.Logger) CourseProgressRepo {
  repoLog := baseLog.With("repo", "CourseProgressRepo")
  return &courseProgressRepo{db: db, log: repoLog}
}

func (r *courseProgressRepo) GetByStudentAndCourse(ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID) (*types.CourseProgress, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var row types.CourseProgress
  err := transaction.WithContext(ctx).
    Where("student_id = ? AND course_id = ?", studentID, courseID).
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

// GetByStudentAndCourseForUpdate takes a row lock so concurrent projections
// for the same (student, course) serialize their read-modify-write instead
// of losing updates. Must be called inside a transaction.
func (r *courseProgressRepo) GetByStudentAndCourseForUpdate(ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID) (*types.CourseProgress, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var row types.CourseProgress
  err := transaction.WithContext(ctx).
    Clauses(clause.Locking{Strength: "UPDATE"}).
    Where("student_id = ? AND course_id = ?", studentID, courseID).
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

// CreateIfAbsent inserts the row unless one already exists for the
// (student, course) pair. Returns whether a row was written.
func (r *courseProgressRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *types.CourseProgress) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  res := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "student_id"}, {Name: "course_id"}},
      DoNothing: true,
    }).
    Create(row)
  if res.Error != nil {
    return false, res.Error
  }
  return res.RowsAffected > 0, nil
}

func (r *courseProgressRepo) Save(ctx context.Context, tx *gorm.DB, row *types.CourseProgress) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return transaction.WithContext(ctx).Save(row).Error
}

// TouchActivity bumps last_activity_at without loading the row; GREATEST
// keeps the column monotonic under out-of-order delivery. No-op when no row
// exists.
func (r *courseProgressRepo) TouchActivity(ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID, now time.Time) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return transaction.WithContext(ctx).
    Model(&types.CourseProgress{}).
    Where("student_id = ? AND course_id = ?", studentID, courseID).
    Updates(map[string]interface{}{
      "last_activity_at": gorm.Expr("GREATEST(last_activity_at, ?)", now),
      "updated_at":       now,
    }).Error
}

func (r *courseProgressRepo) GetRecentByStudent(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, limit int) ([]*types.CourseProgress, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.CourseProgress
  if studentID == uuid.Nil {
    return results, nil
  }
  if limit <= 0 {
    limit = 5
  }

  if err := transaction.WithContext(ctx).
    Where("student_id = ?", studentID).
    Order("last_activity_at DESC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *courseProgressRepo) GetAllByStudent(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.CourseProgress, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.CourseProgress
  if studentID == uuid.Nil {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("student_id = ?", studentID).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *courseProgressRepo) AggregateCourse(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, atRiskBefore time.Time) (*CourseAggregates, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var agg CourseAggregates
  if err := transaction.WithContext(ctx).
    Model(&types.CourseProgress{}).
    Select(`COUNT(*) AS total_students,
      COALESCE(AVG(completion_pct), 0) AS avg_completion,
      COUNT(*) FILTER (WHERE status = ?) AS completed_count,
      COALESCE(AVG(time_spent_seconds), 0) AS avg_time_seconds,
      COUNT(*) FILTER (WHERE status = ? AND last_activity_at < ?) AS at_risk_count`,
      types.ProgressCompleted, types.ProgressActive, atRiskBefore).
    Where("course_id = ?", courseID).
    Scan(&agg).Error; err != nil {
    return nil, err
  }
  return &agg, nil
}

func (r *courseProgressRepo) ActiveStudentsByDay(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, from time.Time) ([]DayActiveCount, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []DayActiveCount
  if err := transaction.WithContext(ctx).
    Model(&types.CourseProgress{}).
    Select(`DATE(last_activity_at) AS day, COUNT(*) AS count`).
    Where("course_id = ? AND last_activity_at >= ?", courseID, from).
    Group("DATE(last_activity_at)").
    Order("day ASC").
    Scan(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *courseProgressRepo) TopByCompletion(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, limit int) ([]*types.CourseProgress, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.CourseProgress
  if limit <= 0 {
    limit = 10
  }

  if err := transaction.WithContext(ctx).
    Where("course_id = ?", courseID).
    Order("completion_pct DESC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
