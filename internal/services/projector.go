package services

import (
	"context"
	"encoding/json"
	"time"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"github.com/coursepulse/coursepulse-backend/internal/logger"
	"github.com/coursepulse/coursepulse-backend/internal/repos"
	"github.com/coursepulse/coursepulse-backend/internal/types"
)

// ProjectorService folds accepted events into the progress stores. It runs
// inside the ingest transaction: a failed projection rolls the whole batch
// back, including the event rows themselves.
type ProjectorService interface {
	Project(ctx context.Context, tx *gorm.DB, events []*types.ActivityEvent) error
}

type projectFunc func(ctx context.Context, tx *gorm.DB, ev *types.ActivityEvent, now time.Time) error

type projectorService struct {
	db          *gorm.DB
	log         *logger.Logger
	courseRepo  repos.CourseRepo
	progress    repos.CourseProgressRepo
	videoRepo   repos.VideoProgressRepo
	attemptRepo repos.AssessmentAttemptRepo
	handlers    map[string]projectFunc
	nowFn       func() time.Time
}

func NewProjectorService(
	db *gorm.DB,
	baseLog *logger.Logger,
	courseRepo repos.CourseRepo,
	progress repos.CourseProgressRepo,
	videoRepo repos.VideoProgressRepo,
	attemptRepo repos.AssessmentAttemptRepo,
) ProjectorService {
	s := &projectorService{
		db:          db,
		log:         baseLog.With("service", "ProjectorService"),
		courseRepo:  courseRepo,
		progress:    progress,
		videoRepo:   videoRepo,
		attemptRepo: attemptRepo,
		nowFn:       time.Now,
	}
	// Registry dispatch: adding an event type is an entry here, not a new
	// switch arm. Types not in the map only touch last activity.
	s.handlers = map[string]projectFunc{
		types.EventLessonComplete: s.projectLessonComplete,
		types.EventVideoComplete:  s.projectVideoComplete,
		types.EventQuizSubmit:     s.projectQuizSubmit,
		types.EventCourseEnroll:   s.projectCourseEnroll,
		types.EventCourseComplete: s.projectCourseComplete,
		types.EventLessonStart:    s.projectTouch,
		types.EventVideoPlay:      s.projectTouch,
	}
	return s
}

// Project applies events in array order, not timestamp order; within-batch
// out-of-order delivery is projected as received.
func (s *projectorService) Project(ctx context.Context, tx *gorm.DB, events []*types.ActivityEvent) error {
	now := s.nowFn().UTC()
	for _, ev := range events {
		handler, ok := s.handlers[ev.Type]
		if !ok {
			handler = s.projectTouch
		}
		if err := handler(ctx, tx, ev, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *projectorService) projectLessonComplete(ctx context.Context, tx *gorm.DB, ev *types.ActivityEvent, now time.Time) error {
	if ev.CourseID == nil {
		return nil
	}
	course, err := s.courseRepo.GetByID(ctx, tx, *ev.CourseID)
	if err != nil {
		return err
	}
	if course == nil {
		// late event for a deleted course, nothing to project
		return nil
	}
	totalLessons, err := s.courseRepo.CountLessons(ctx, tx, *ev.CourseID)
	if err != nil {
		return err
	}

	payload := decodePayload(ev.Payload)
	timeSpent := payloadInt(payload, "timeSpent")

	row, err := s.progress.GetByStudentAndCourseForUpdate(ctx, tx, ev.StudentID, *ev.CourseID)
	if err != nil {
		return err
	}
	if row == nil {
		streak := ComputeStreak(nil, now)
		fresh := &types.CourseProgress{
			ID:                uuid.New(),
			StudentID:         ev.StudentID,
			CourseID:          *ev.CourseID,
			LessonsCompleted:  1,
			TotalLessons:      totalLessons,
			CompletionPct:     completionPct(1, totalLessons),
			TimeSpentSeconds:  timeSpent,
			Status:            types.ProgressActive,
			StartedAt:         now,
			LastActivityAt:    now,
			CurrentStreakDays: streak.CurrentStreakDays,
			LongestStreakDays: streak.LongestStreakDays,
			LastStreakDate:    &streak.LastStreakDate,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		created, err := s.progress.CreateIfAbsent(ctx, tx, fresh)
		if err != nil {
			return err
		}
		if created {
			return nil
		}
		// lost the insert race: a concurrent enroll or completion committed
		// the row between our read and the insert. Lock the winner's row and
		// fold this completion into it instead of dropping it.
		row, err = s.progress.GetByStudentAndCourseForUpdate(ctx, tx, ev.StudentID, *ev.CourseID)
		if err != nil {
			return err
		}
		if row == nil {
			return nil
		}
	}

	// Not guarded against redelivery of the same completion: a resent
	// lesson_complete increments again, and dashboards show the raw count.
	row.LessonsCompleted++
	row.TotalLessons = totalLessons
	row.CompletionPct = completionPct(row.LessonsCompleted, totalLessons)
	row.TimeSpentSeconds += timeSpent
	if now.After(row.LastActivityAt) {
		row.LastActivityAt = now
	}
	streak := ComputeStreak(row, now)
	row.CurrentStreakDays = streak.CurrentStreakDays
	row.LongestStreakDays = streak.LongestStreakDays
	row.LastStreakDate = &streak.LastStreakDate
	row.UpdatedAt = now
	return s.progress.Save(ctx, tx, row)
}

func (s *projectorService) projectVideoComplete(ctx context.Context, tx *gorm.DB, ev *types.ActivityEvent, now time.Time) error {
	if ev.CourseID == nil || ev.LessonID == nil {
		return nil
	}
	payload := decodePayload(ev.Payload)
	videoID, ok := payloadUUID(payload, "videoId")
	if !ok {
		return nil
	}

	row := &types.VideoProgress{
		ID:             uuid.New(),
		StudentID:      ev.StudentID,
		VideoID:        videoID,
		CourseID:       *ev.CourseID,
		LessonID:       *ev.LessonID,
		WatchPct:       payloadFloat(payload, "watchPct"),
		SecondsWatched: payloadInt(payload, "secondsWatched"),
		VideoDuration:  payloadInt(payload, "videoDuration"),
		Completed:      true,
		LastPosition:   payloadInt(payload, "lastPosition"),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return s.videoRepo.Upsert(ctx, tx, row)
}

func (s *projectorService) projectQuizSubmit(ctx context.Context, tx *gorm.DB, ev *types.ActivityEvent, now time.Time) error {
	if ev.CourseID == nil {
		return nil
	}
	payload := decodePayload(ev.Payload)
	assessmentID, ok := payloadUUID(payload, "assessmentId")
	if !ok {
		return nil
	}

	prior, err := s.attemptRepo.CountByStudentAndAssessment(ctx, tx, ev.StudentID, assessmentID)
	if err != nil {
		return err
	}

	var answers datatypes.JSON
	if raw, found := payload["answers"]; found {
		if b, err := json.Marshal(raw); err == nil {
			answers = datatypes.JSON(b)
		}
	}

	row := &types.AssessmentAttempt{
		ID:               uuid.New(),
		StudentID:        ev.StudentID,
		AssessmentID:     assessmentID,
		CourseID:         *ev.CourseID,
		AttemptNumber:    int(prior) + 1,
		Score:            payloadFloat(payload, "score"),
		MaxScore:         payloadFloat(payload, "maxScore"),
		IsPassed:         payloadBool(payload, "isPassed"),
		TimeSpentSeconds: payloadInt(payload, "timeSpent"),
		Answers:          answers,
		SubmittedAt:      ev.OccurredAt,
		CreatedAt:        now,
	}
	return s.attemptRepo.Create(ctx, tx, row)
}

func (s *projectorService) projectCourseEnroll(ctx context.Context, tx *gorm.DB, ev *types.ActivityEvent, now time.Time) error {
	if ev.CourseID == nil {
		return nil
	}
	course, err := s.courseRepo.GetByID(ctx, tx, *ev.CourseID)
	if err != nil {
		return err
	}
	if course == nil {
		return nil
	}
	totalLessons, err := s.courseRepo.CountLessons(ctx, tx, *ev.CourseID)
	if err != nil {
		return err
	}

	row := &types.CourseProgress{
		ID:                uuid.New(),
		StudentID:         ev.StudentID,
		CourseID:          *ev.CourseID,
		TotalLessons:      totalLessons,
		Status:            types.ProgressActive,
		StartedAt:         now,
		LastActivityAt:    now,
		CurrentStreakDays: 1,
		LongestStreakDays: 1,
		LastStreakDate:    &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	// create-only semantics: an existing row makes this a no-op
	_, err = s.progress.CreateIfAbsent(ctx, tx, row)
	return err
}

func (s *projectorService) projectCourseComplete(ctx context.Context, tx *gorm.DB, ev *types.ActivityEvent, now time.Time) error {
	if ev.CourseID == nil {
		return nil
	}
	row, err := s.progress.GetByStudentAndCourseForUpdate(ctx, tx, ev.StudentID, *ev.CourseID)
	if err != nil {
		return err
	}
	if row == nil {
		// no enrollment on record, treated as already handled
		return nil
	}

	row.Status = types.ProgressCompleted
	row.CompletionPct = 100
	row.CompletedAt = &now
	if now.After(row.LastActivityAt) {
		row.LastActivityAt = now
	}
	row.UpdatedAt = now
	return s.progress.Save(ctx, tx, row)
}

func (s *projectorService) projectTouch(ctx context.Context, tx *gorm.DB, ev *types.ActivityEvent, now time.Time) error {
	if ev.CourseID == nil {
		return nil
	}
	return s.progress.TouchActivity(ctx, tx, ev.StudentID, *ev.CourseID, now)
}

func completionPct(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(completed) / float64(total) * 100
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}
