package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of deadline dates.
const DateLayout = "2006-01-02"

// Deadline statuses.
const (
	StatusPending   = "pending"
	StatusSubmitted = "submitted"
	StatusMissed    = "missed"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("planner record not found")

// CalendarEvent is a busy slot in a user's calendar.
type CalendarEvent struct {
	ID     int64     `json:"id"`
	UserID string    `json:"user_id"`
	Title  string    `json:"title"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

// StudyLog records the time a user spent on one subject on one day.
type StudyLog struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"user_id"`
	Day            time.Time `json:"day"`
	Subject        string    `json:"subject"`
	Hours          float64   `json:"hours"`
	TasksCompleted int       `json:"tasks_completed"`
}

// Deadline is an opportunity with a due date, usually produced by the
// deadline parser.
type Deadline struct {
	ID           int64     `json:"id"`
	UserID       string    `json:"user_id"`
	Title        string    `json:"title"`
	DeadlineDate time.Time `json:"deadline_date"`
	Description  string    `json:"description"`
	Requirements []string  `json:"requirements"`
	Category     string    `json:"category"`
	Priority     int       `json:"priority"`
	Status       string    `json:"status"`
}

// Store persists planner records. Implementations must be safe for
// concurrent use.
type Store interface {
	AddCalendarEvent(ctx context.Context, ev CalendarEvent) (int64, error)
	// CalendarEvents returns the events of userID overlapping [from, to),
	// ordered by start.
	CalendarEvents(ctx context.Context, userID string, from, to time.Time) ([]CalendarEvent, error)

	AddStudyLog(ctx context.Context, log StudyLog) (int64, error)
	// StudyLogs returns the logs of userID on or after since, oldest first.
	StudyLogs(ctx context.Context, userID string, since time.Time) ([]StudyLog, error)

	AddDeadline(ctx context.Context, d Deadline) (int64, error)
	// Deadlines returns the deadlines of userID ordered by date. An empty
	// status matches every status.
	Deadlines(ctx context.Context, userID, status string) ([]Deadline, error)
	UpdateDeadlineStatus(ctx context.Context, id int64, status string) error

	Close() error
}

// ProgressSummary aggregates study logs over a period of days.
type ProgressSummary struct {
	Period         string  `json:"period"`
	TotalHours     float64 `json:"total_hours"`
	AvgHoursPerDay float64 `json:"avg_hours_per_day"`
	Sessions       int     `json:"sessions"`
	MissedDays     int     `json:"missed_days"`
	TasksCompleted int     `json:"tasks_completed"`
}

// Summarize computes the progress of the days-long period ending on the day
// of now.
func Summarize(logs []StudyLog, now time.Time, days int) ProgressSummary {
	if days <= 0 {
		days = 7
	}
	end := truncateDay(now)
	start := end.AddDate(0, 0, -(days - 1))

	active := make(map[string]bool)
	s := ProgressSummary{Period: fmt.Sprintf("%s to %s", start.Format(DateLayout), end.Format(DateLayout))}
	for _, l := range logs {
		day := truncateDay(l.Day)
		if day.Before(start) || day.After(end) {
			continue
		}
		s.Sessions++
		s.TotalHours += l.Hours
		s.TasksCompleted += l.TasksCompleted
		if l.Hours > 0 {
			active[day.Format(DateLayout)] = true
		}
	}
	s.AvgHoursPerDay = s.TotalHours / float64(days)
	s.MissedDays = days - len(active)

	return s
}

// UpcomingDeadline is a pending deadline due within a window.
type UpcomingDeadline struct {
	Deadline
	DaysLeft int `json:"days_left"`
}

// Upcoming returns the pending deadlines due within days of now, soonest
// first.
func Upcoming(deadlines []Deadline, now time.Time, days int) []UpcomingDeadline {
	today := truncateDay(now)
	out := make([]UpcomingDeadline, 0, len(deadlines))
	for _, d := range deadlines {
		if d.Status != "" && d.Status != StatusPending {
			continue
		}
		left := int(truncateDay(d.DeadlineDate).Sub(today).Hours() / 24)
		if left < 0 || left > days {
			continue
		}
		out = append(out, UpcomingDeadline{Deadline: d, DaysLeft: left})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysLeft < out[j].DaysLeft })
	return out
}

// FormatStudyLogs renders logs as a compact "Mon: 2hrs (Math)" line.
func FormatStudyLogs(logs []StudyLog) string {
	if len(logs) == 0 {
		return "No study sessions logged."
	}
	parts := make([]string, len(logs))
	for i, l := range logs {
		if l.Hours == 0 {
			parts[i] = fmt.Sprintf("%s: 0hrs (Missed)", l.Day.Format("Mon"))
			continue
		}
		parts[i] = fmt.Sprintf("%s: %shrs (%s)", l.Day.Format("Mon"), formatHours(l.Hours), l.Subject)
	}
	return strings.Join(parts, ", ") + "."
}

// FormatCalendar renders events one per line.
func FormatCalendar(events []CalendarEvent) string {
	if len(events) == 0 {
		return "No calendar events; the user is free."
	}
	var b strings.Builder
	for i, ev := range events {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s-%s: %s", ev.Start.Format("Mon 2006-01-02"), ev.Start.Format("15:04"), ev.End.Format("15:04"), ev.Title)
	}
	return b.String()
}

// ValidateDeadline checks the fields every stored deadline must carry.
func ValidateDeadline(d Deadline) error {
	if strings.TrimSpace(d.Title) == "" {
		return errors.New("deadline title is required")
	}
	if d.DeadlineDate.IsZero() {
		return errors.New("deadline date is required")
	}
	if d.Priority < 1 || d.Priority > 5 {
		return fmt.Errorf("deadline priority %d out of range 1-5", d.Priority)
	}
	return nil
}

func formatHours(h float64) string {
	if h == float64(int(h)) {
		return fmt.Sprintf("%d", int(h))
	}
	return fmt.Sprintf("%.1f", h)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
