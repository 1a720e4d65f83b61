package repos

import (
  "context"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/coursepulse/coursepulse-backend/internal/logger"
  "github.com/coursepulse/coursepulse-backend/internal/types"
)

// StudentDayRollup is the grouped-aggregate row the daily aggregation job
// consumes: one per student with activity inside the day window.
type StudentDayRollup struct {
  StudentID        uuid.UUID `gorm:"column:student_id"`
  SessionsCount    int       `gorm:"column:sessions_count"`
  TotalTimeSeconds int       `gorm:"column:total_time_seconds"`
  LessonsCompleted int       `gorm:"column:lessons_completed"`
  VideosWatched    int       `gorm:"column:videos_watched"`
  QuizzesAttempted int       `gorm:"column:quizzes_attempted"`
}

type ActivityEventRepo interface {
  CreateIgnoreDuplicates(ctx context.Context, tx *gorm.DB, events []*types.ActivityEvent) (int, error)
  GetRecentByStudent(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, limit int) ([]*types.ActivityEvent, error)
  AggregateDay(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]StudentDayRollup, error)
  DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type activityEventRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewActivityEventRepo(db *gorm.DB, baseLog *logger.Logger) ActivityEventRepo {
  repoLog := baseLog.With("repo", "ActivityEventRepo")
  return &activityEventRepo{db: db, log: repoLog}
}

// CreateIgnoreDuplicates batch-inserts the events and silently skips rows
// that collide on the dedup key (student, session, type, occurred_at).
// Returns the number of rows actually written.
func (r *activityEventRepo) CreateIgnoreDuplicates(ctx context.Context, tx *gorm.DB, events []*types.ActivityEvent) (int, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  if len(events) == 0 {
    return 0, nil
  }

  res := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{DoNothing: true}).
    Create(&events)
  if res.Error != nil {
    return 0, res.Error
  }
  return int(res.RowsAffected), nil
}

func (r *activityEventRepo) GetRecentByStudent(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, limit int) ([]*types.ActivityEvent, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.ActivityEvent
  if studentID == uuid.Nil {
    return results, nil
  }
  if limit <= 0 {
    limit = 20
  }

  if err := transaction.WithContext(ctx).
    Where("student_id = ?", studentID).
    Order("occurred_at DESC").
    Limit(limit).
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

// AggregateDay folds the raw events inside [from, to) into one rollup row
// per student: distinct sessions, summed payload timeSpent, per-type counts.
// timeSpent is client-supplied json, so the cast is guarded: fractional
// numbers are truncated and anything non-numeric counts as zero instead of
// failing the whole day's query.
func (r *activityEventRepo) AggregateDay(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]StudentDayRollup, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []StudentDayRollup
  if err := transaction.WithContext(ctx).
    Model(&types.ActivityEvent{}).
    Select(`student_id,
      COUNT(DISTINCT session_id) AS sessions_count,
      COALESCE(SUM(CASE
        WHEN jsonb_typeof(payload->'timeSpent') = 'number' THEN floor((payload->>'timeSpent')::numeric)
        WHEN payload->>'timeSpent' ~ '^-?[0-9]+(\.[0-9]+)?$' THEN floor((payload->>'timeSpent')::numeric)
        ELSE 0
      END), 0)::bigint AS total_time_seconds,
      COUNT(*) FILTER (WHERE type = ?) AS lessons_completed,
      COUNT(*) FILTER (WHERE type = ?) AS videos_watched,
      COUNT(*) FILTER (WHERE type = ?) AS quizzes_attempted`,
      types.EventLessonComplete, types.EventVideoComplete, types.EventQuizSubmit).
    Where("occurred_at >= ? AND occurred_at < ?", from, to).
    Group("student_id").
    Scan(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (r *activityEventRepo) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  res := transaction.WithContext(ctx).
    Where("occurred_at < ?", cutoff).
    Delete(&types.ActivityEvent{})
  if res.Error != nil {
    return 0, res.Error
  }
  return res.RowsAffected, nil
}
