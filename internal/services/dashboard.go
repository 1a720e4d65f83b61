package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"github.com/coursepulse/coursepulse-backend/internal/logger"
	"github.com/coursepulse/coursepulse-backend/internal/repos"
	"github.com/coursepulse/coursepulse-backend/internal/types"
)

var ErrNotCourseOwner = errors.New("course is not owned by the requesting instructor")
var ErrCourseNotFound = errors.New("course not found")

const (
	dashboardCourseLimit  = 5
	dashboardStatsDays    = 30
	analyticsSeriesDays   = 14
	analyticsTopStudents  = 10
	atRiskInactivityDays  = 7
	dashboardCacheTTL     = 60 * time.Second
)

type OverallStats struct {
	TotalCourses     int `json:"total_courses"`
	CompletedCourses int `json:"completed_courses"`
	TotalHours       int `json:"total_hours"`
	LessonsCompleted int `json:"lessons_completed"`
}

type StudentDashboard struct {
	ActiveCourses  []*types.CourseProgress `json:"active_courses"`
	CurrentStreak  int                     `json:"current_streak"`
	OverallStats   OverallStats            `json:"overall_stats"`
	RecentActivity []*types.DailyStat      `json:"recent_activity"`
}

type AnalyticsDayPoint struct {
	Day            string `json:"day"`
	ActiveStudents int    `json:"active_students"`
}

type CourseAnalytics struct {
	TotalStudents     int                     `json:"total_students"`
	AvgCompletion     float64                 `json:"avg_completion"`
	CompletionRate    float64                 `json:"completion_rate"`
	AvgTimePerStudent float64                 `json:"avg_time_per_student"`
	AtRiskCount       int                     `json:"at_risk_count"`
	RecentActivity    []AnalyticsDayPoint     `json:"recent_activity"`
	TopStudents       []*types.CourseProgress `json:"top_students"`
}

type DashboardService interface {
	GetStudentDashboard(ctx context.Context, studentID uuid.UUID) (*StudentDashboard, error)
	GetCourseAnalytics(ctx context.Context, courseID, instructorID uuid.UUID) (*CourseAnalytics, error)
}

type dashboardService struct {
	db         *gorm.DB
	log        *logger.Logger
	courseRepo repos.CourseRepo
	progress   repos.CourseProgressRepo
	dailyStat  repos.DailyStatRepo
	events     repos.ActivityEventRepo
	cache      DashboardCache
	nowFn      func() time.Time
}

func NewDashboardService(
	db *gorm.DB,
	baseLog *logger.Logger,
	courseRepo repos.CourseRepo,
	progress repos.CourseProgressRepo,
	dailyStat repos.DailyStatRepo,
	events repos.ActivityEventRepo,
	cache DashboardCache,
) DashboardService {
	return &dashboardService{
		db:         db,
		log:        baseLog.With("service", "DashboardService"),
		courseRepo: courseRepo,
		progress:   progress,
		dailyStat:  dailyStat,
		events:     events,
		cache:      cache,
		nowFn:      time.Now,
	}
}

// GetStudentDashboard is a pure read. Sections degrade independently: a
// failing daily-stat query drops the recent-activity section instead of
// failing the response. "Current streak" is the max per-course streak, not
// an account-level value.
func (s *dashboardService) GetStudentDashboard(ctx context.Context, studentID uuid.UUID) (*StudentDashboard, error) {
	if studentID == uuid.Nil {
		return nil, fmt.Errorf("student id required")
	}

	cacheKey := "dashboard:student:" + studentID.String()
	if s.cache != nil {
		var cached StudentDashboard
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			s.log.Debug("dashboard cache read failed", "error", err)
		}
		if hit {
			return &cached, nil
		}
	}

	now := s.nowFn().UTC()
	out := &StudentDashboard{}

	all, err := s.progress.GetAllByStudent(ctx, nil, studentID)
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}
	for _, p := range all {
		out.OverallStats.TotalCourses++
		if p.Status == types.ProgressCompleted {
			out.OverallStats.CompletedCourses++
		}
		out.OverallStats.TotalHours += p.TimeSpentSeconds
		out.OverallStats.LessonsCompleted += p.LessonsCompleted
		if p.CurrentStreakDays > out.CurrentStreak {
			out.CurrentStreak = p.CurrentStreakDays
		}
	}
	out.OverallStats.TotalHours = int(math.Round(float64(out.OverallStats.TotalHours) / 3600))

	recent, err := s.progress.GetRecentByStudent(ctx, nil, studentID, dashboardCourseLimit)
	if err != nil {
		s.log.Warn("active courses section unavailable", "student_id", studentID, "error", err)
	} else {
		out.ActiveCourses = recent
	}

	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -dashboardStatsDays)
	stats, err := s.dailyStat.GetWindow(ctx, nil, studentID, from, now)
	if err != nil {
		s.log.Warn("daily stats section unavailable", "student_id", studentID, "error", err)
	} else {
		out.RecentActivity = stats
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, out, dashboardCacheTTL); err != nil {
			s.log.Debug("dashboard cache write failed", "error", err)
		}
	}
	return out, nil
}

// GetCourseAnalytics rejects any requester who does not own the course; the
// ownership check is a hard precondition, not a degradable section.
func (s *dashboardService) GetCourseAnalytics(ctx context.Context, courseID, instructorID uuid.UUID) (*CourseAnalytics, error) {
	course, err := s.courseRepo.GetByID(ctx, nil, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}
	if course.InstructorID != instructorID {
		return nil, ErrNotCourseOwner
	}

	now := s.nowFn().UTC()
	atRiskBefore := now.AddDate(0, 0, -atRiskInactivityDays)

	agg, err := s.progress.AggregateCourse(ctx, nil, courseID, atRiskBefore)
	if err != nil {
		return nil, fmt.Errorf("course aggregates: %w", err)
	}

	out := &CourseAnalytics{
		TotalStudents:     agg.TotalStudents,
		AvgCompletion:     agg.AvgCompletion,
		AvgTimePerStudent: agg.AvgTimeSeconds,
		AtRiskCount:       agg.AtRiskCount,
	}
	if agg.TotalStudents > 0 {
		out.CompletionRate = float64(agg.CompletedCount) / float64(agg.TotalStudents)
	}

	seriesFrom := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -analyticsSeriesDays)
	series, err := s.progress.ActiveStudentsByDay(ctx, nil, courseID, seriesFrom)
	if err != nil {
		s.log.Warn("activity series section unavailable", "course_id", courseID, "error", err)
	} else {
		for _, point := range series {
			out.RecentActivity = append(out.RecentActivity, AnalyticsDayPoint{
				Day:            point.Day.Format("2006-01-02"),
				ActiveStudents: point.Count,
			})
		}
	}

	top, err := s.progress.TopByCompletion(ctx, nil, courseID, analyticsTopStudents)
	if err != nil {
		s.log.Warn("top students section unavailable", "course_id", courseID, "error", err)
	} else {
		out.TopStudents = top
	}

	return out, nil
}
