package repos

import (
  "context"
  "errors"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/coursepulse/coursepulse-backend/internal/logger"
  "github.com/coursepulse/coursepulse-backend/internal/types"
)

type VideoProgressRepo interface {
  Upsert(ctx context.Context, tx *gorm.DB, row *types.VideoProgress) error
  GetByStudentAndVideo(ctx context.Context, tx *gorm.DB, studentID, videoID uuid.UUID) (*types.VideoProgress, error)
  GetByStudent(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.VideoProgress, error)
}

type videoProgressRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewVideoProgressRepo(db *gorm.DB, baseLog *logger.Logger) VideoProgressRepo {
  repoLog := baseLog.With("repo", "VideoProgressRepo")
  return &videoProgressRepo{db: db, log: repoLog}
}

// Upsert is last-write-wins on the watch fields, except completed which is
// sticky: once a row has completed=true it stays true regardless of what the
// incoming write carries.
func (r *videoProgressRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.VideoProgress) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  return transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns: []clause.Column{{Name: "student_id"}, {Name: "video_id"}},
      DoUpdates: clause.Assignments(map[string]interface{}{
        "watch_pct":       row.WatchPct,
        "seconds_watched": row.SecondsWatched,
        "video_duration":  row.VideoDuration,
        "last_position":   row.LastPosition,
        "completed":       gorm.Expr("video_progress.completed OR EXCLUDED.completed"),
        "updated_at":      row.UpdatedAt,
      }),
    }).
    Create(row).Error
}

func (r *videoProgressRepo) GetByStudentAndVideo(ctx context.Context, tx *gorm.DB, studentID, videoID uuid.UUID) (*types.VideoProgress, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var row types.VideoProgress
  err := transaction.WithContext(ctx).
    Where("student_id = ? AND video_id = ?", studentID, videoID).
    First(&row).Error
  if errors.Is(err, gorm.ErrRecordNotFound) {
    return nil, nil
  }
  if err != nil {
    return nil, err
  }
  return &row, nil
}

func (r *videoProgressRepo) GetByStudent(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.VideoProgress, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }

  var results []*types.VideoProgress
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
