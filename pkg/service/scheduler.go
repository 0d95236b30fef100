package service

import (
	"sync"
	"time"

	"github.com/ritzau/projectd/pkg/logging"
	"github.com/ritzau/projectd/pkg/project"
)

// updateScheduler coalesces dirty signals into one graph refresh per burst:
// a quiet period extends while signals keep arriving, bounded by a maximum
// wait so a steady stream of events cannot starve the refresh.
//
// The flush callback fires on a timer goroutine and is responsible for
// entering the service task before touching any project.
type updateScheduler struct {
	mu          sync.Mutex
	quietPeriod time.Duration
	maxWait     time.Duration

	pending  map[*project.Project]bool
	order    []*project.Project
	timer    *time.Timer
	maxTimer *time.Timer

	flush func(projects []*project.Project)
}

func newUpdateScheduler(quietPeriod, maxWait time.Duration, flush func([]*project.Project)) *updateScheduler {
	return &updateScheduler{
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
		pending:     make(map[*project.Project]bool),
		flush:       flush,
	}
}

// enqueue registers a project for the next flush and arms the timers.
func (s *updateScheduler) enqueue(p *project.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pending[p] {
		s.pending[p] = true
		s.order = append(s.order, p)
	}

	if s.timer == nil {
		s.timer = time.AfterFunc(s.quietPeriod, s.fire)
	} else {
		s.timer.Reset(s.quietPeriod)
	}
	if s.maxTimer == nil {
		s.maxTimer = time.AfterFunc(s.maxWait, s.fire)
	}
}

func (s *updateScheduler) fire() {
	s.Flush()
}

// Flush runs any pending refresh immediately. The flush callback enters
// the service task itself, so callers must not hold it.
func (s *updateScheduler) Flush() {
	s.mu.Lock()
	batch := s.takeBatchLocked()
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	logging.Debug("flushing deferred graph updates", "projects", len(batch))
	s.flush(batch)
}

// takeBatchLocked stops the timers and claims the pending set.
func (s *updateScheduler) takeBatchLocked() []*project.Project {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.maxTimer != nil {
		s.maxTimer.Stop()
		s.maxTimer = nil
	}
	batch := s.order
	s.order = nil
	s.pending = make(map[*project.Project]bool)
	return batch
}

func (s *updateScheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.maxTimer != nil {
		s.maxTimer.Stop()
		s.maxTimer = nil
	}
	s.order = nil
	s.pending = make(map[*project.Project]bool)
}
