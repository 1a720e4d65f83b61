package services

import (
	"context"
	"fmt"
	"time"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"github.com/coursepulse/coursepulse-backend/internal/logger"
	"github.com/coursepulse/coursepulse-backend/internal/repos"
	"github.com/coursepulse/coursepulse-backend/internal/types"
)

// AggregationService folds one calendar day of raw events into daily_stat
// rows, one per active student. Counters are overwritten, never incremented,
// so any day can be re-run at any time and converge to the same rows.
type AggregationService interface {
	Run(ctx context.Context, day time.Time) error
}

type aggregationService struct {
	db        *gorm.DB
	log       *logger.Logger
	events    repos.ActivityEventRepo
	dailyStat repos.DailyStatRepo
}

func NewAggregationService(db *gorm.DB, baseLog *logger.Logger, events repos.ActivityEventRepo, dailyStat repos.DailyStatRepo) AggregationService {
	return &aggregationService{
		db:        db,
		log:       baseLog.With("service", "AggregationService"),
		events:    events,
		dailyStat: dailyStat,
	}
}

func (s *aggregationService) Run(ctx context.Context, day time.Time) error {
	ctx, span := otel.Tracer("jobs").Start(ctx, "AggregationService.Run")
	defer span.End()

	day = day.UTC()
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	span.SetAttributes(attribute.String("jobs.day", from.Format("2006-01-02")))

	rollups, err := s.events.AggregateDay(ctx, nil, from, to)
	if err != nil {
		return fmt.Errorf("aggregate day %s: %w", from.Format("2006-01-02"), err)
	}
	s.log.Info("daily aggregation computed", "day", from.Format("2006-01-02"), "students", len(rollups))

	now := time.Now().UTC()
	var failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	failures := make(chan uuid.UUID, len(rollups))
	for i := range rollups {
		rollup := rollups[i]
		g.Go(func() error {
			row := &types.DailyStat{
				ID:               uuid.New(),
				StudentID:        rollup.StudentID,
				StatDate:         from,
				SessionsCount:    rollup.SessionsCount,
				TotalTimeSeconds: rollup.TotalTimeSeconds,
				LessonsCompleted: rollup.LessonsCompleted,
				VideosWatched:    rollup.VideosWatched,
				QuizzesAttempted: rollup.QuizzesAttempted,
				WasActive:        true,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := s.dailyStat.Overwrite(gctx, nil, row); err != nil {
				// one student's failure must not abort the rest of the run
				s.log.Warn("daily stat write failed", "student_id", rollup.StudentID, "error", err)
				failures <- rollup.StudentID
			}
			return nil
		})
	}
	_ = g.Wait()
	close(failures)
	for range failures {
		failed++
	}

	if failed > 0 {
		return fmt.Errorf("daily aggregation for %s: %d of %d students failed", from.Format("2006-01-02"), failed, len(rollups))
	}
	return nil
}
