package services

import (
	"context"
	"fmt"
	"sort"
	"time"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"github.com/coursepulse/coursepulse-backend/internal/repos"
	"github.com/coursepulse/coursepulse-backend/internal/types"
)

// In-memory repo fakes mirroring the storage semantics the postgres repos
// provide (conflict-ignoring insert, overwrite upsert, sticky completed).

type fakeCourseRepo struct {
	courses map[uuid.UUID]*types.Course
	lessons map[uuid.UUID]int
}

func newFakeCourseRepo() *fakeCourseRepo {
	return &fakeCourseRepo{
		courses: map[uuid.UUID]*types.Course{},
		lessons: map[uuid.UUID]int{},
	}
}

func (f *fakeCourseRepo) addCourse(instructorID uuid.UUID, lessonCount int) uuid.UUID {
	id := uuid.New()
	f.courses[id] = &types.Course{ID: id, InstructorID: instructorID, Title: "course"}
	f.lessons[id] = lessonCount
	return id
}

func (f *fakeCourseRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Course, error) {
	return f.courses[id], nil
}

func (f *fakeCourseRepo) CountLessons(ctx context.Context, tx *gorm.DB, courseID uuid.UUID) (int, error) {
	return f.lessons[courseID], nil
}

func (f *fakeCourseRepo) LessonExists(ctx context.Context, tx *gorm.DB, lessonID uuid.UUID) (bool, error) {
	return true, nil
}

type fakeProgressRepo struct {
	rows    map[string]*types.CourseProgress
	saveErr error
	// beforeCreate runs before CreateIfAbsent checks for an existing row,
	// letting tests slip a competing writer in between read and insert
	beforeCreate func()
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{rows: map[string]*types.CourseProgress{}}
}

func progressKey(studentID, courseID uuid.UUID) string {
	return studentID.String() + "|" + courseID.String()
}

func (f *fakeProgressRepo) GetByStudentAndCourse(ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID) (*types.CourseProgress, error) {
	return f.rows[progressKey(studentID, courseID)], nil
}

func (f *fakeProgressRepo) GetByStudentAndCourseForUpdate(ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID) (*types.CourseProgress, error) {
	return f.rows[progressKey(studentID, courseID)], nil
}

func (f *fakeProgressRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, row *types.CourseProgress) (bool, error) {
	if f.beforeCreate != nil {
		f.beforeCreate()
	}
	key := progressKey(row.StudentID, row.CourseID)
	if _, exists := f.rows[key]; exists {
		return false, nil
	}
	copied := *row
	f.rows[key] = &copied
	return true, nil
}

func (f *fakeProgressRepo) Save(ctx context.Context, tx *gorm.DB, row *types.CourseProgress) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	copied := *row
	f.rows[progressKey(row.StudentID, row.CourseID)] = &copied
	return nil
}

func (f *fakeProgressRepo) TouchActivity(ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID, now time.Time) error {
	row, ok := f.rows[progressKey(studentID, courseID)]
	if !ok {
		return nil
	}
	if now.After(row.LastActivityAt) {
		row.LastActivityAt = now
	}
	return nil
}

func (f *fakeProgressRepo) GetRecentByStudent(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, limit int) ([]*types.CourseProgress, error) {
	all, _ := f.GetAllByStudent(ctx, tx, studentID)
	sort.Slice(all, func(i, j int) bool { return all[i].LastActivityAt.After(all[j].LastActivityAt) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeProgressRepo) GetAllByStudent(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.CourseProgress, error) {
	var out []*types.CourseProgress
	for _, row := range f.rows {
		if row.StudentID == studentID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeProgressRepo) AggregateCourse(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, atRiskBefore time.Time) (*repos.CourseAggregates, error) {
	agg := &repos.CourseAggregates{}
	var pctSum, timeSum float64
	for _, row := range f.rows {
		if row.CourseID != courseID {
			continue
		}
		agg.TotalStudents++
		pctSum += row.CompletionPct
		timeSum += float64(row.TimeSpentSeconds)
		if row.Status == types.ProgressCompleted {
			agg.CompletedCount++
		}
		if row.Status == types.ProgressActive && row.LastActivityAt.Before(atRiskBefore) {
			agg.AtRiskCount++
		}
	}
	if agg.TotalStudents > 0 {
		agg.AvgCompletion = pctSum / float64(agg.TotalStudents)
		agg.AvgTimeSeconds = timeSum / float64(agg.TotalStudents)
	}
	return agg, nil
}

func (f *fakeProgressRepo) ActiveStudentsByDay(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, from time.Time) ([]repos.DayActiveCount, error) {
	byDay := map[time.Time]int{}
	for _, row := range f.rows {
		if row.CourseID != courseID || row.LastActivityAt.Before(from) {
			continue
		}
		byDay[dateOnly(row.LastActivityAt)]++
	}
	var out []repos.DayActiveCount
	for day, count := range byDay {
		out = append(out, repos.DayActiveCount{Day: day, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (f *fakeProgressRepo) TopByCompletion(ctx context.Context, tx *gorm.DB, courseID uuid.UUID, limit int) ([]*types.CourseProgress, error) {
	var out []*types.CourseProgress
	for _, row := range f.rows {
		if row.CourseID == courseID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletionPct > out[j].CompletionPct })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeVideoRepo struct {
	rows map[string]*types.VideoProgress
}

func newFakeVideoRepo() *fakeVideoRepo {
	return &fakeVideoRepo{rows: map[string]*types.VideoProgress{}}
}

func videoKey(studentID, videoID uuid.UUID) string {
	return studentID.String() + "|" + videoID.String()
}

func (f *fakeVideoRepo) Upsert(ctx context.Context, tx *gorm.DB, row *types.VideoProgress) error {
	key := videoKey(row.StudentID, row.VideoID)
	existing, ok := f.rows[key]
	if !ok {
		copied := *row
		f.rows[key] = &copied
		return nil
	}
	existing.WatchPct = row.WatchPct
	existing.SecondsWatched = row.SecondsWatched
	existing.VideoDuration = row.VideoDuration
	existing.LastPosition = row.LastPosition
	existing.Completed = existing.Completed || row.Completed
	existing.UpdatedAt = row.UpdatedAt
	return nil
}

func (f *fakeVideoRepo) GetByStudentAndVideo(ctx context.Context, tx *gorm.DB, studentID, videoID uuid.UUID) (*types.VideoProgress, error) {
	return f.rows[videoKey(studentID, videoID)], nil
}

func (f *fakeVideoRepo) GetByStudent(ctx context.Context, tx *gorm.DB, studentID uuid.UUID) ([]*types.VideoProgress, error) {
	var out []*types.VideoProgress
	for _, row := range f.rows {
		if row.StudentID == studentID {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeAttemptRepo struct {
	rows []*types.AssessmentAttempt
}

func (f *fakeAttemptRepo) Create(ctx context.Context, tx *gorm.DB, row *types.AssessmentAttempt) error {
	copied := *row
	f.rows = append(f.rows, &copied)
	return nil
}

func (f *fakeAttemptRepo) CountByStudentAndAssessment(ctx context.Context, tx *gorm.DB, studentID, assessmentID uuid.UUID) (int64, error) {
	var count int64
	for _, row := range f.rows {
		if row.StudentID == studentID && row.AssessmentID == assessmentID {
			count++
		}
	}
	return count, nil
}

func (f *fakeAttemptRepo) GetByStudentAndCourse(ctx context.Context, tx *gorm.DB, studentID, courseID uuid.UUID) ([]*types.AssessmentAttempt, error) {
	var out []*types.AssessmentAttempt
	for _, row := range f.rows {
		if row.StudentID == studentID && row.CourseID == courseID {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeEventRepo struct {
	rows        []*types.ActivityEvent
	dedup       map[string]bool
	rollups     []repos.StudentDayRollup
	rollupErr   error
	deleteCalls []time.Time
	deleted     int64
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{dedup: map[string]bool{}}
}

func (f *fakeEventRepo) CreateIgnoreDuplicates(ctx context.Context, tx *gorm.DB, events []*types.ActivityEvent) (int, error) {
	inserted := 0
	for _, ev := range events {
		key := fmt.Sprintf("%s|%s|%s|%d", ev.StudentID, ev.SessionID, ev.Type, ev.OccurredAt.UnixNano())
		if f.dedup[key] {
			continue
		}
		f.dedup[key] = true
		f.rows = append(f.rows, ev)
		inserted++
	}
	return inserted, nil
}

func (f *fakeEventRepo) GetRecentByStudent(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, limit int) ([]*types.ActivityEvent, error) {
	var out []*types.ActivityEvent
	for _, row := range f.rows {
		if row.StudentID == studentID {
			out = append(out, row)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AggregateDay returns the canned rollups when set; otherwise it folds the
// stored rows the way the postgres query does, including the tolerant
// timeSpent handling (fractional numbers truncate, garbage counts as zero).
func (f *fakeEventRepo) AggregateDay(ctx context.Context, tx *gorm.DB, from, to time.Time) ([]repos.StudentDayRollup, error) {
	if f.rollupErr != nil {
		return nil, f.rollupErr
	}
	if f.rollups != nil {
		return f.rollups, nil
	}

	byStudent := map[uuid.UUID]*repos.StudentDayRollup{}
	sessions := map[uuid.UUID]map[string]bool{}
	var order []uuid.UUID
	for _, ev := range f.rows {
		if ev.OccurredAt.Before(from) || !ev.OccurredAt.Before(to) {
			continue
		}
		rollup, ok := byStudent[ev.StudentID]
		if !ok {
			rollup = &repos.StudentDayRollup{StudentID: ev.StudentID}
			byStudent[ev.StudentID] = rollup
			sessions[ev.StudentID] = map[string]bool{}
			order = append(order, ev.StudentID)
		}
		sessions[ev.StudentID][ev.SessionID] = true
		rollup.TotalTimeSeconds += int(payloadFloat(decodePayload(ev.Payload), "timeSpent"))
		switch ev.Type {
		case types.EventLessonComplete:
			rollup.LessonsCompleted++
		case types.EventVideoComplete:
			rollup.VideosWatched++
		case types.EventQuizSubmit:
			rollup.QuizzesAttempted++
		}
	}
	var out []repos.StudentDayRollup
	for _, studentID := range order {
		rollup := byStudent[studentID]
		rollup.SessionsCount = len(sessions[studentID])
		out = append(out, *rollup)
	}
	return out, nil
}

func (f *fakeEventRepo) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.deleteCalls = append(f.deleteCalls, cutoff)
	return f.deleted, nil
}

type fakeDailyStatRepo struct {
	rows    map[string]*types.DailyStat
	failFor map[uuid.UUID]bool
	getErr  error
}

func newFakeDailyStatRepo() *fakeDailyStatRepo {
	return &fakeDailyStatRepo{
		rows:    map[string]*types.DailyStat{},
		failFor: map[uuid.UUID]bool{},
	}
}

func dailyKey(studentID uuid.UUID, day time.Time) string {
	return studentID.String() + "|" + day.Format("2006-01-02")
}

func (f *fakeDailyStatRepo) Overwrite(ctx context.Context, tx *gorm.DB, row *types.DailyStat) error {
	if f.failFor[row.StudentID] {
		return fmt.Errorf("write refused for %s", row.StudentID)
	}
	copied := *row
	f.rows[dailyKey(row.StudentID, row.StatDate)] = &copied
	return nil
}

func (f *fakeDailyStatRepo) GetWindow(ctx context.Context, tx *gorm.DB, studentID uuid.UUID, from, to time.Time) ([]*types.DailyStat, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	var out []*types.DailyStat
	for _, row := range f.rows {
		if row.StudentID == studentID && !row.StatDate.Before(from) && row.StatDate.Before(to) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StatDate.Before(out[j].StatDate) })
	return out, nil
}
