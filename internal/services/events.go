package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"github.com/coursepulse/coursepulse-backend/internal/logger"
	"github.com/coursepulse/coursepulse-backend/internal/repos"
	"github.com/coursepulse/coursepulse-backend/internal/requestdata"
	"github.com/coursepulse/coursepulse-backend/internal/types"
)

var sessionIDRe = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,128}$`)

var knownEventTypes = map[string]bool{
	types.EventLessonStart:    true,
	types.EventLessonComplete: true,
	types.EventVideoPlay:      true,
	types.EventVideoComplete:  true,
	types.EventQuizSubmit:     true,
	types.EventCourseEnroll:   true,
	types.EventCourseComplete: true,
}

type EventInput struct {
	Type       string                 `json:"type"`
	CourseID   string                 `json:"course_id,omitempty"`
	LessonID   string                 `json:"lesson_id,omitempty"`
	OccurredAt *time.Time             `json:"occurred_at,omitempty"`
	SessionID  string                 `json:"session_id"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

type EventService interface {
	Ingest(ctx context.Context, tx *gorm.DB, inputs []EventInput) (int, error)
}

type eventService struct {
	db        *gorm.DB
	log       *logger.Logger
	repo      repos.ActivityEventRepo
	projector ProjectorService
}

func NewEventService(db *gorm.DB, baseLog *logger.Logger, repo repos.ActivityEventRepo, projector ProjectorService) EventService {
	return &eventService{
		db:        db,
		log:       baseLog.With("service", "EventService"),
		repo:      repo,
		projector: projector,
	}
}

// Ingest validates the batch, writes it to the event log with duplicate keys
// silently skipped, then projects the same batch in array order inside the
// same transaction. If either the durable write or the projection fails the
// whole batch rolls back; nothing is tracked. Returns the number of rows the
// event log actually accepted (duplicates excluded).
func (s *eventService) Ingest(ctx context.Context, tx *gorm.DB, inputs []EventInput) (int, error) {
	rd := requestdata.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return 0, fmt.Errorf("not authenticated")
	}
	if len(inputs) == 0 {
		return 0, nil
	}
	if len(inputs) > 200 {
		return 0, fmt.Errorf("too many events (max 200)")
	}

	ctx, span := otel.Tracer("events").Start(ctx, "EventService.Ingest")
	defer span.End()
	span.SetAttributes(attribute.Int("events.batch_size", len(inputs)))

	now := time.Now().UTC()
	rows := make([]*types.ActivityEvent, 0, len(inputs))
	for i := range inputs {
		in := inputs[i]

		typ := strings.TrimSpace(strings.ToLower(in.Type))
		if !knownEventTypes[typ] {
			return 0, fmt.Errorf("unknown event type at index %d", i)
		}

		sessionID := strings.TrimSpace(in.SessionID)
		if sessionID == "" {
			sessionID = rd.SessionID
		}
		if !sessionIDRe.MatchString(sessionID) {
			return 0, fmt.Errorf("invalid session id at index %d", i)
		}

		occurred := now
		if in.OccurredAt != nil && !in.OccurredAt.IsZero() {
			occurred = in.OccurredAt.UTC()
		}

		var (
			courseID *uuid.UUID
			lessonID *uuid.UUID
		)
		if v := strings.TrimSpace(in.CourseID); v != "" {
			if id, err := uuid.Parse(v); err == nil {
				courseID = &id
			}
		}
		if v := strings.TrimSpace(in.LessonID); v != "" {
			if id, err := uuid.Parse(v); err == nil {
				lessonID = &id
			}
		}

		var payload datatypes.JSON
		if len(in.Payload) > 0 {
			b, _ := json.Marshal(in.Payload)
			payload = datatypes.JSON(b)
		}

		rows = append(rows, &types.ActivityEvent{
			ID:         uuid.New(),
			StudentID:  rd.UserID,
			CourseID:   courseID,
			LessonID:   lessonID,
			Type:       typ,
			OccurredAt: occurred,
			SessionID:  sessionID,
			Payload:    payload,
			DeviceType: rd.Device.DeviceType,
			Browser:    rd.Device.Browser,
			OS:         rd.Device.OS,
			IPAddress:  rd.Device.IPAddress,
			CreatedAt:  now,
		})
	}

	accepted := 0
	run := func(tx *gorm.DB) error {
		n, err := s.repo.CreateIgnoreDuplicates(ctx, tx, rows)
		if err != nil {
			return err
		}
		accepted = n
		return s.projector.Project(ctx, tx, rows)
	}

	var err error
	if tx != nil {
		err = run(tx)
	} else {
		err = s.db.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		s.log.Warn("event ingest failed", "error", err, "batch_size", len(inputs))
		return 0, err
	}
	span.SetAttributes(attribute.Int("events.accepted", accepted))
	return accepted, nil
}
