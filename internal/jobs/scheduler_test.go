package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coursepulse/coursepulse-backend/internal/logger"
)

func newTestScheduler(t *testing.T) *cronScheduler {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewCronScheduler(log).(*cronScheduler)
}

func TestScheduleDailyAcceptsJob(t *testing.T) {
	s := newTestScheduler(t)
	err := s.ScheduleDaily("aggregate-daily-stats", func(ctx context.Context, day time.Time) {})
	if err != nil {
		t.Fatalf("ScheduleDaily: %v", err)
	}
	if err := s.ScheduleWeekly("retention-cleanup", func(ctx context.Context) {}); err != nil {
		t.Fatalf("ScheduleWeekly: %v", err)
	}
	s.Start()
	s.Stop()
}

func TestSkipOverlappingDropsConcurrentTick(t *testing.T) {
	s := newTestScheduler(t)

	var mu sync.Mutex
	runs := 0
	release := make(chan struct{})
	started := make(chan struct{})

	wrapped := s.skipOverlapping("slow-job", func(ctx context.Context) {
		mu.Lock()
		runs++
		mu.Unlock()
		close(started)
		<-release
	})

	go wrapped()
	<-started

	// first run still holding the slot
	wrapped()

	close(release)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if runs != 1 {
		t.Fatalf("runs=%d, want 1 (overlapping tick must be dropped)", runs)
	}
}

func TestSkipOverlappingAllowsSequentialRuns(t *testing.T) {
	s := newTestScheduler(t)

	runs := 0
	wrapped := s.skipOverlapping("fast-job", func(ctx context.Context) { runs++ })

	wrapped()
	wrapped()
	wrapped()

	if runs != 3 {
		t.Fatalf("runs=%d, want 3", runs)
	}
}
