package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
	"github.com/google/uuid"
	"github.com/coursepulse/coursepulse-backend/internal/logger"
	"github.com/coursepulse/coursepulse-backend/internal/types"
)

type dashboardFixture struct {
	svc      *dashboardService
	courses  *fakeCourseRepo
	progress *fakeProgressRepo
	daily    *fakeDailyStatRepo
	now      time.Time
}

func newDashboardFixture(t *testing.T) *dashboardFixture {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	courses := newFakeCourseRepo()
	progress := newFakeProgressRepo()
	daily := newFakeDailyStatRepo()
	svc := NewDashboardService(nil, log, courses, progress, daily, newFakeEventRepo(), nil).(*dashboardService)
	now := time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)
	svc.nowFn = func() time.Time { return now }
	return &dashboardFixture{svc: svc, courses: courses, progress: progress, daily: daily, now: now}
}

func TestStudentDashboardAggregates(t *testing.T) {
	f := newDashboardFixture(t)
	student := uuid.New()
	courseA := f.courses.addCourse(uuid.New(), 10)
	courseB := f.courses.addCourse(uuid.New(), 5)

	f.progress.rows[progressKey(student, courseA)] = &types.CourseProgress{
		StudentID: student, CourseID: courseA,
		LessonsCompleted: 4, TimeSpentSeconds: 5400,
		Status: types.ProgressActive, CurrentStreakDays: 2, LongestStreakDays: 4,
		LastActivityAt: f.now.Add(-2 * time.Hour),
	}
	f.progress.rows[progressKey(student, courseB)] = &types.CourseProgress{
		StudentID: student, CourseID: courseB,
		LessonsCompleted: 5, TimeSpentSeconds: 1800,
		Status: types.ProgressCompleted, CurrentStreakDays: 7, LongestStreakDays: 7,
		LastActivityAt: f.now.Add(-30 * time.Hour),
	}
	f.daily.rows[dailyKey(student, dateOnly(f.now))] = &types.DailyStat{
		StudentID: student, StatDate: dateOnly(f.now), SessionsCount: 1, WasActive: true,
	}

	out, err := f.svc.GetStudentDashboard(context.Background(), student)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}

	if out.OverallStats.TotalCourses != 2 || out.OverallStats.CompletedCourses != 1 {
		t.Fatalf("course totals wrong: %+v", out.OverallStats)
	}
	if out.OverallStats.LessonsCompleted != 9 {
		t.Fatalf("lessons=%d, want 9", out.OverallStats.LessonsCompleted)
	}
	// 7200s total rounds to 2h
	if out.OverallStats.TotalHours != 2 {
		t.Fatalf("hours=%d, want 2", out.OverallStats.TotalHours)
	}
	// max per-course streak, not an account-level recomputation
	if out.CurrentStreak != 7 {
		t.Fatalf("streak=%d, want 7", out.CurrentStreak)
	}
	if len(out.ActiveCourses) != 2 || out.ActiveCourses[0].CourseID != courseA {
		t.Fatalf("active courses not ordered by recency")
	}
	if len(out.RecentActivity) != 1 {
		t.Fatalf("recent activity=%d, want 1", len(out.RecentActivity))
	}
}

func TestStudentDashboardDegradesWithoutDailyStats(t *testing.T) {
	f := newDashboardFixture(t)
	student := uuid.New()
	courseA := f.courses.addCourse(uuid.New(), 10)
	f.progress.rows[progressKey(student, courseA)] = &types.CourseProgress{
		StudentID: student, CourseID: courseA, Status: types.ProgressActive,
		LastActivityAt: f.now,
	}
	f.daily.getErr = errors.New("daily stats store down")

	out, err := f.svc.GetStudentDashboard(context.Background(), student)
	if err != nil {
		t.Fatalf("dashboard must degrade, got error: %v", err)
	}
	if out.RecentActivity != nil {
		t.Fatalf("recent activity should be omitted, got %v", out.RecentActivity)
	}
	if out.OverallStats.TotalCourses != 1 {
		t.Fatalf("progress section missing: %+v", out.OverallStats)
	}
}

func TestStudentDashboardRequiresStudentID(t *testing.T) {
	f := newDashboardFixture(t)
	if _, err := f.svc.GetStudentDashboard(context.Background(), uuid.Nil); err == nil {
		t.Fatalf("expected error for nil student id")
	}
}

func TestCourseAnalyticsOwnershipEnforced(t *testing.T) {
	f := newDashboardFixture(t)
	owner := uuid.New()
	courseID := f.courses.addCourse(owner, 10)
	f.progress.rows[progressKey(uuid.New(), courseID)] = &types.CourseProgress{
		StudentID: uuid.New(), CourseID: courseID, Status: types.ProgressActive,
		CompletionPct: 50, LastActivityAt: f.now,
	}

	_, err := f.svc.GetCourseAnalytics(context.Background(), courseID, uuid.New())
	if !errors.Is(err, ErrNotCourseOwner) {
		t.Fatalf("err=%v, want ErrNotCourseOwner", err)
	}

	_, err = f.svc.GetCourseAnalytics(context.Background(), uuid.New(), owner)
	if !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("err=%v, want ErrCourseNotFound", err)
	}

	if _, err := f.svc.GetCourseAnalytics(context.Background(), courseID, owner); err != nil {
		t.Fatalf("owner request failed: %v", err)
	}
}

func TestCourseAnalyticsComputation(t *testing.T) {
	f := newDashboardFixture(t)
	owner := uuid.New()
	courseID := f.courses.addCourse(owner, 10)

	// four students: one completed, one idle for 10 days, two active
	add := func(pct float64, seconds int, status string, idle time.Duration) {
		sid := uuid.New()
		f.progress.rows[progressKey(sid, courseID)] = &types.CourseProgress{
			StudentID: sid, CourseID: courseID, Status: status,
			CompletionPct: pct, TimeSpentSeconds: seconds,
			LastActivityAt: f.now.Add(-idle),
		}
	}
	add(100, 7200, types.ProgressCompleted, time.Hour)
	add(80, 3600, types.ProgressActive, 10*24*time.Hour)
	add(40, 1800, types.ProgressActive, 2*time.Hour)
	add(20, 1800, types.ProgressActive, 26*time.Hour)

	out, err := f.svc.GetCourseAnalytics(context.Background(), courseID, owner)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if out.TotalStudents != 4 {
		t.Fatalf("total=%d, want 4", out.TotalStudents)
	}
	if out.AvgCompletion != 60 {
		t.Fatalf("avgCompletion=%v, want 60", out.AvgCompletion)
	}
	if out.CompletionRate != 0.25 {
		t.Fatalf("completionRate=%v, want 0.25", out.CompletionRate)
	}
	if out.AtRiskCount != 1 {
		t.Fatalf("atRisk=%d, want 1", out.AtRiskCount)
	}
	if len(out.TopStudents) != 4 || out.TopStudents[0].CompletionPct != 100 {
		t.Fatalf("top students not sorted by completion")
	}
	if len(out.RecentActivity) == 0 {
		t.Fatalf("missing activity series")
	}
	for _, point := range out.RecentActivity {
		if _, err := time.Parse("2006-01-02", point.Day); err != nil {
			t.Fatalf("day %q not formatted as date: %v", point.Day, err)
		}
	}
}

func TestStudentDashboardServesFromCache(t *testing.T) {
	f := newDashboardFixture(t)
	student := uuid.New()
	courseA := f.courses.addCourse(uuid.New(), 10)
	f.progress.rows[progressKey(student, courseA)] = &types.CourseProgress{
		StudentID: student, CourseID: courseA, Status: types.ProgressActive,
		LastActivityAt: f.now,
	}
	cache := &memoryCache{entries: map[string][]byte{}}
	f.svc.cache = cache

	first, err := f.svc.GetStudentDashboard(context.Background(), student)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	// inside the TTL a stale cached copy is served, not the store
	f.progress.rows = map[string]*types.CourseProgress{}
	second, err := f.svc.GetStudentDashboard(context.Background(), student)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if second.OverallStats.TotalCourses != first.OverallStats.TotalCourses {
		t.Fatalf("cache miss on second read: %+v", second.OverallStats)
	}
}

type memoryCache struct {
	entries map[string][]byte
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, val interface{}, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	m.entries[key] = b
	return nil
}

func (m *memoryCache) Close() error { return nil }
