package checker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"unibook-bot/parser"
	"unibook-bot/types"
)

const listingPage = `<html><body><table><tbody>` +
	`<tr><td>01-06-24 10:00-11:00</td><td>Aula 3</td>` +
	`<td onclick='prenota("12","01-06-24","45","2","789")'>prenota</td></tr>` +
	`</tbody></table></html>`

const emptyListingPage = `<html><body><table><tbody>` +
	`<tr><td>01-06-24 10:00-11:00</td><td>Aula 3</td><td>annulla</td></tr>` +
	`</tbody></table></html>`

type fakeFetcher struct {
	mu        sync.Mutex
	listings  map[int]string
	fetchErr  map[int]error
	submitErr map[string]error // keyed by BookingID
	fetched   []int
	submitted []*types.BookingRequest
}

func (f *fakeFetcher) FetchListing(_ context.Context, courseID int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, courseID)
	if err := f.fetchErr[courseID]; err != nil {
		return "", err
	}
	return f.listings[courseID], nil
}

func (f *fakeFetcher) SubmitBooking(_ context.Context, req *types.BookingRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	return f.submitErr[req.BookingID]
}

func (f *fakeFetcher) fetchCount(courseID int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.fetched {
		if id == courseID {
			n++
		}
	}
	return n
}

func (f *fakeFetcher) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

type fakeStore struct {
	mu       sync.Mutex
	checks   []int
	bookings []types.BookingRecord
}

func (s *fakeStore) LogCheck(_ context.Context, courseID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, courseID)
	return nil
}

func (s *fakeStore) SaveBooking(_ context.Context, rec types.BookingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings = append(s.bookings, rec)
	return nil
}

func (s *fakeStore) bookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []string
}

func (b *fakeBroadcaster) Broadcast(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, text)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestStartStopIdempotent(t *testing.T) {
	c := New(&fakeFetcher{}, &fakeStore{}, &fakeBroadcaster{}, time.Hour, nil)

	if c.IsRunning() {
		t.Fatal("checker should start idle")
	}
	c.Start()
	c.Start()
	if !c.IsRunning() {
		t.Fatal("checker should be running after Start")
	}
	c.Stop()
	c.Stop()
	if c.IsRunning() {
		t.Fatal("checker should be idle after Stop")
	}
	c.Start()
	if !c.IsRunning() {
		t.Fatal("checker should restart after a stop")
	}
	c.Stop()
}

func TestCheckCourseBooksAndNotifies(t *testing.T) {
	f := &fakeFetcher{listings: map[int]string{12: listingPage}}
	s := &fakeStore{}
	b := &fakeBroadcaster{}
	c := New(f, s, b, time.Hour, nil)

	course := types.Course{ID: 12, Name: "Analisi 1"}
	if err := c.CheckCourse(context.Background(), course); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(s.checks) != 1 || s.checks[0] != 12 {
		t.Errorf("checks = %v", s.checks)
	}
	if len(f.submitted) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(f.submitted))
	}
	if f.submitted[0].BookingID != "789" || f.submitted[0].Nonce == "" {
		t.Errorf("submitted = %+v", f.submitted[0])
	}

	if len(s.bookings) != 1 {
		t.Fatalf("expected 1 booking record, got %d", len(s.bookings))
	}
	rec := s.bookings[0]
	if rec.CourseID != 12 || rec.Room != "Aula 3" {
		t.Errorf("record = %+v", rec)
	}
	if !rec.StartTime.Before(rec.EndTime) {
		t.Errorf("record times = %v / %v", rec.StartTime, rec.EndTime)
	}
	if rec.BookedAt.IsZero() || rec.CheckedAt.IsZero() {
		t.Errorf("record timestamps missing: %+v", rec)
	}

	if len(b.messages) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(b.messages))
	}
	msg := b.messages[0]
	if !strings.Contains(msg, "Analisi 1") || !strings.Contains(msg, "Aula 3") ||
		!strings.Contains(msg, "01-06-24") {
		t.Errorf("notification = %q", msg)
	}
}

func TestCheckCourseNoAvailableSlots(t *testing.T) {
	f := &fakeFetcher{listings: map[int]string{12: emptyListingPage}}
	s := &fakeStore{}
	b := &fakeBroadcaster{}
	c := New(f, s, b, time.Hour, nil)

	if err := c.CheckCourse(context.Background(), types.Course{ID: 12}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.submitted) != 0 || len(s.bookings) != 0 || len(b.messages) != 0 {
		t.Error("nothing should be booked on an empty listing")
	}
	if len(s.checks) != 1 {
		t.Errorf("check must be logged regardless of outcome, got %v", s.checks)
	}
}

func TestCheckCourseCandidateFailureContinues(t *testing.T) {
	twoRows := `<html><body><table><tbody>` +
		`<tr><td>01-06-24 10:00-11:00</td><td>Aula 3</td>` +
		`<td onclick='prenota("12","01-06-24","45","2","111")'>prenota</td></tr>` +
		`<tr><td>02-06-24 10:00-11:00</td><td>Aula 4</td>` +
		`<td onclick='prenota("12","02-06-24","46","2","222")'>prenota</td></tr>` +
		`</tbody></table></html>`

	f := &fakeFetcher{
		listings:  map[int]string{12: twoRows},
		submitErr: map[string]error{"111": errors.New("boom")},
	}
	s := &fakeStore{}
	b := &fakeBroadcaster{}
	c := New(f, s, b, time.Hour, nil)

	if err := c.CheckCourse(context.Background(), types.Course{ID: 12, Name: "Analisi 1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Both candidates get exactly one attempt; only the second lands.
	if len(f.submitted) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(f.submitted))
	}
	if len(s.bookings) != 1 || s.bookings[0].Room != "Aula 4" {
		t.Errorf("bookings = %+v", s.bookings)
	}
	if len(b.messages) != 1 {
		t.Errorf("expected 1 notification, got %d", len(b.messages))
	}
}

func TestCheckCourseNoResultsTable(t *testing.T) {
	f := &fakeFetcher{listings: map[int]string{12: "<html><body>login scaduto</body></html>"}}
	s := &fakeStore{}
	c := New(f, s, &fakeBroadcaster{}, time.Hour, nil)

	err := c.CheckCourse(context.Background(), types.Course{ID: 12})
	if !errors.Is(err, parser.ErrNoResultsTable) {
		t.Fatalf("expected ErrNoResultsTable, got %v", err)
	}
	if len(s.checks) != 1 {
		t.Errorf("check must be logged even when the page is unparseable")
	}
}

func TestTickIsolatesFetchFailure(t *testing.T) {
	f := &fakeFetcher{
		listings: map[int]string{2: listingPage},
		fetchErr: map[int]error{1: errors.New("timeout")},
	}
	s := &fakeStore{}
	c := New(f, s, &fakeBroadcaster{}, time.Hour, nil)
	c.SetCourses([]types.Course{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}})

	c.tick()

	// Course B must complete its scan despite course A failing.
	waitFor(t, func() bool { return s.bookingCount() == 1 })
	waitFor(t, func() bool { return f.fetchCount(1) == 1 && f.fetchCount(2) == 1 })
}

func TestSchedulerTicksAndStops(t *testing.T) {
	f := &fakeFetcher{listings: map[int]string{12: emptyListingPage}}
	s := &fakeStore{}
	c := New(f, s, &fakeBroadcaster{}, 20*time.Millisecond, nil)
	c.SetCourses([]types.Course{{ID: 12, Name: "Analisi 1"}})

	c.Start()
	waitFor(t, func() bool { return f.fetchCount(12) >= 1 })
	c.Stop()

	// Give any in-flight scan time to finish, then verify no new tick fires.
	time.Sleep(50 * time.Millisecond)
	before := f.fetchCount(12)
	time.Sleep(100 * time.Millisecond)
	if after := f.fetchCount(12); after != before {
		t.Errorf("ticks continued after Stop: %d -> %d", before, after)
	}
}

func TestSetCoursesReplacesWholesale(t *testing.T) {
	c := New(&fakeFetcher{}, &fakeStore{}, &fakeBroadcaster{}, time.Hour, nil)

	original := []types.Course{{ID: 1, Name: "A"}}
	c.SetCourses(original)
	original[0].Name = "mutated"

	if got := c.Courses(); got[0].Name != "A" {
		t.Errorf("watch-list shares memory with the caller: %+v", got)
	}

	c.SetCourses([]types.Course{{ID: 2, Name: "B"}, {ID: 3, Name: "C"}})
	if got := c.Courses(); len(got) != 2 || got[0].ID != 2 {
		t.Errorf("watch-list not replaced: %+v", got)
	}
}
