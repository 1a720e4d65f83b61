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

type DailyStatRepo interface {
  Overwrite(ctx context.Context, tx *gorm.DB, row *types.DailyStat) error
  GetWindow(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, from, to time.Time) ([]*types.DailyStat, error)
}

type dailyStatRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewDailyStatRepo(db *gorm.DB, baseLog *logger.Logger) DailyStatRepo {
  repoLog := baseLog.With("repo", "DailyStatRepo")
  return &dailyStatRepo{db: db, log: repoLog}
}

// Overwrite upserts on (student, day) and replaces every counter rather than
// accumulating, so re-running an aggregation for the same day converges to
// the same row.
func (r *dailyStatRepo) Overwrite(ctx context.Context, tx *gorm.DB, row *types.DailyStat) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns: []clause.Column{{Name: "student_id"}, {Name: "stat_date"}},
      DoUpdates: clause.AssignmentColumns([]string{
        "sessions_count",
        "total_time_seconds",
        "lessons_completed",
        "videos_watched",
        "quizzes_attempted",
        "was_active",
        "updated_at",
      }),
    }).
    Create(row).Error
}

func (r *dailyStatRepo) GetWindow(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, from, to time.Time) ([]*types.DailyStat, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.DailyStat
  if studentID == uuid.Nil {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("student_id = ? AND stat_date >= ? AND stat_date < ?", studentID, from, to).
    Order("stat_date ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
