package services

import (
	"context"
	"time"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"github.com/coursepulse/coursepulse-backend/internal/logger"
	"github.com/coursepulse/coursepulse-backend/internal/repos"
)

const DefaultRetentionDays = 90

// RetentionService prunes the raw event log past the retention horizon. It
// only ever touches activity_event; progress, attempts and daily stats are
// kept forever.
type RetentionService interface {
	Run(ctx context.Context) (int64, error)
}

type retentionService struct {
	db            *gorm.DB
	log           *logger.Logger
	events        repos.ActivityEventRepo
	retentionDays int
}

func NewRetentionService(db *gorm.DB, baseLog *logger.Logger, events repos.ActivityEventRepo, retentionDays int) RetentionService {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &retentionService{
		db:            db,
		log:           baseLog.With("service", "RetentionService"),
		events:        events,
		retentionDays: retentionDays,
	}
}

func (s *retentionService) Run(ctx context.Context) (int64, error) {
	ctx, span := otel.Tracer("jobs").Start(ctx, "RetentionService.Run")
	defer span.End()

	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays)
	deleted, err := s.events.DeleteOlderThan(ctx, nil, cutoff)
	if err != nil {
		s.log.Error("retention run failed", "cutoff", cutoff, "error", err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("jobs.deleted", deleted))
	s.log.Info("retention run complete", "cutoff", cutoff, "deleted", deleted)
	return deleted, nil
}
