package checker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"unibook-bot/parser"
	"unibook-bot/types"

	"go.uber.org/zap"
)

// Fetcher is the outbound side of a scan, satisfied by fetcher.Client.
type Fetcher interface {
	FetchListing(ctx context.Context, courseID int) (string, error)
	SubmitBooking(ctx context.Context, req *types.BookingRequest) error
}

// Store is the persistence the executor writes to, satisfied by
// storage.Store. The executor only ever writes; it never reads back.
type Store interface {
	LogCheck(ctx context.Context, courseID int) error
	SaveBooking(ctx context.Context, rec types.BookingRecord) error
}

// Broadcaster fans a success message out to all recipients.
type Broadcaster interface {
	Broadcast(text string)
}

// Checker scans every watched course on a fixed interval and books whatever
// slots come up available.
type Checker struct {
	fetcher   Fetcher
	store     Store
	notifier  Broadcaster
	extractor *parser.Extractor
	interval  time.Duration
	log       *zap.Logger

	mu      sync.Mutex
	courses []types.Course
	running bool
	stop    chan struct{}
}

func New(f Fetcher, s Store, n Broadcaster, interval time.Duration, log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{
		fetcher:   f,
		store:     s,
		notifier:  n,
		extractor: parser.NewExtractor(log),
		interval:  interval,
		log:       log,
	}
}

// SetCourses replaces the watch-list wholesale. Running ticks keep the
// snapshot they started with; the list is never mutated in place.
func (c *Checker) SetCourses(courses []types.Course) {
	snapshot := make([]types.Course, len(courses))
	copy(snapshot, courses)

	c.mu.Lock()
	c.courses = snapshot
	c.mu.Unlock()
}

// Courses returns the current watch-list.
func (c *Checker) Courses() []types.Course {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.courses
}

// Start arms the scan loop. Calling it while already running is a no-op.
func (c *Checker) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.stop = make(chan struct{})
	go c.loop(c.stop)
	c.log.Info("scan loop started", zap.Duration("interval", c.interval))
}

// Stop prevents new ticks from starting. In-flight course scans from the
// current tick run to completion; nothing outbound is cancelled. Calling it
// while idle is a no-op.
func (c *Checker) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	close(c.stop)
	c.running = false
	c.log.Info("scan loop stopped")
}

func (c *Checker) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Checker) loop(stop chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.tick()
		}
	}
}

// tick dispatches one scan per watched course and returns without waiting,
// so a course slower than the interval may overlap the next tick. That is
// fine against a listing that stops offering already-booked slots.
func (c *Checker) tick() {
	for _, course := range c.Courses() {
		go func(course types.Course) {
			if err := c.CheckCourse(context.Background(), course); err != nil {
				c.log.Warn("course scan failed",
					zap.Int("course_id", course.ID),
					zap.String("course", course.Name),
					zap.Error(err))
			}
		}(course)
	}
}

// CheckCourse runs one scan for one course: log the check, fetch the
// listing, extract available candidates and try to book each of them once.
// A candidate failure is logged and the loop moves on; only fetch and
// document-level parse failures abort the run, and only for this course and
// this tick.
func (c *Checker) CheckCourse(ctx context.Context, course types.Course) error {
	checkedAt := time.Now()
	if err := c.store.LogCheck(ctx, course.ID); err != nil {
		c.log.Warn("check log write failed",
			zap.Int("course_id", course.ID),
			zap.Error(err))
	}

	body, err := c.fetcher.FetchListing(ctx, course.ID)
	if err != nil {
		return fmt.Errorf("fetch listing: %w", err)
	}

	candidates, err := c.extractor.Extract(course.ID, body)
	if err != nil {
		return fmt.Errorf("extract candidates: %w", err)
	}

	for _, cand := range candidates {
		// One submission attempt per candidate per scan; a booked slot
		// disappears from the next listing on its own.
		if err := c.bookCandidate(ctx, course, cand, checkedAt); err != nil {
			c.log.Warn("booking failed",
				zap.Int("course_id", course.ID),
				zap.String("slot", cand.Date),
				zap.Error(err))
		}
	}
	return nil
}

func (c *Checker) bookCandidate(ctx context.Context, course types.Course, cand types.Candidate, checkedAt time.Time) error {
	if err := c.fetcher.SubmitBooking(ctx, cand.Request); err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	start, end, err := parser.SlotInterval(cand.Date)
	if err != nil {
		// The site acknowledged the booking either way; keep the record
		// with zero times rather than lose it.
		c.log.Warn("unparseable slot interval",
			zap.String("slot", cand.Date),
			zap.Error(err))
	}

	rec := types.BookingRecord{
		CourseID:  course.ID,
		CheckedAt: checkedAt,
		BookedAt:  time.Now(),
		StartTime: start,
		EndTime:   end,
		Room:      cand.Room,
	}
	if err := c.store.SaveBooking(ctx, rec); err != nil {
		c.log.Error("booking record write failed",
			zap.Int("course_id", course.ID),
			zap.Error(err))
	}

	c.notifier.Broadcast(fmt.Sprintf(
		"Prenotato il corso %s il giorno %s in %s", course.Name, cand.Date, cand.Room))

	c.log.Info("slot booked",
		zap.Int("course_id", course.ID),
		zap.String("course", course.Name),
		zap.String("slot", cand.Date),
		zap.String("room", cand.Room))
	return nil
}
