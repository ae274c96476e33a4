package planner

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    int64
	calendar  []CalendarEvent
	logs      []StudyLog
	deadlines []Deadline
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

// AddCalendarEvent implements Store.
func (s *MemoryStore) AddCalendarEvent(_ context.Context, ev CalendarEvent) (int64, error) {
	if !ev.End.After(ev.Start) {
		return 0, fmt.Errorf("calendar event %q ends before it starts", ev.Title)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.ID = s.id()
	s.calendar = append(s.calendar, ev)
	return ev.ID, nil
}

// CalendarEvents implements Store.
func (s *MemoryStore) CalendarEvents(_ context.Context, userID string, from, to time.Time) ([]CalendarEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []CalendarEvent
	for _, ev := range s.calendar {
		if ev.UserID == userID && ev.Start.Before(to) && ev.End.After(from) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// AddStudyLog implements Store.
func (s *MemoryStore) AddStudyLog(_ context.Context, log StudyLog) (int64, error) {
	if log.Hours < 0 {
		return 0, fmt.Errorf("study log hours must not be negative")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	log.ID = s.id()
	s.logs = append(s.logs, log)
	return log.ID, nil
}

// StudyLogs implements Store.
func (s *MemoryStore) StudyLogs(_ context.Context, userID string, since time.Time) ([]StudyLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []StudyLog
	for _, l := range s.logs {
		if l.UserID == userID && !l.Day.Before(since) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

// AddDeadline implements Store.
func (s *MemoryStore) AddDeadline(_ context.Context, d Deadline) (int64, error) {
	if err := ValidateDeadline(d); err != nil {
		return 0, err
	}
	if d.Status == "" {
		d.Status = StatusPending
	}
	d.Requirements = slices.Clone(d.Requirements)

	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = s.id()
	s.deadlines = append(s.deadlines, d)
	return d.ID, nil
}

// Deadlines implements Store.
func (s *MemoryStore) Deadlines(_ context.Context, userID, status string) ([]Deadline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Deadline
	for _, d := range s.deadlines {
		if d.UserID == userID && (status == "" || d.Status == status) {
			d.Requirements = slices.Clone(d.Requirements)
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DeadlineDate.Before(out[j].DeadlineDate) })
	return out, nil
}

// UpdateDeadlineStatus implements Store.
func (s *MemoryStore) UpdateDeadlineStatus(_ context.Context, id int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.deadlines {
		if s.deadlines[i].ID == id {
			s.deadlines[i].Status = status
			return nil
		}
	}
	return fmt.Errorf("deadline %d: %w", id, ErrNotFound)
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
