package specialist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/studymesh/core"
	"github.com/hupe1980/studymesh/memory"
	"github.com/hupe1980/studymesh/planner"
	"github.com/hupe1980/studymesh/tool"
)

// Tool names.
const (
	ToolCurrentDatetime     = "get_current_datetime"
	ToolUserCalendar        = "fetch_user_calendar"
	ToolArxivAbstract       = "fetch_arxiv_abstract"
	ToolStudyLogs           = "get_study_logs"
	ToolValidatePostLength  = "validate_post_length"
	ToolFetchPage           = "fetch_page"
	ToolStudyRecommendation = "get_study_recommendations"
	ToolLogStudySession     = "log_study_session"
	ToolUpcomingDeadlines   = "list_upcoming_deadlines"
)

// DatetimeLayout is the format of get_current_datetime.
const DatetimeLayout = "2006-01-02 15:04:05"

// Post length limits per platform; other platforms get DefaultPostLimit.
var PostLimits = map[string]int{
	"twitter":  280,
	"linkedin": 3000,
}

// DefaultPostLimit applies to platforms without an entry in PostLimits.
const DefaultPostLimit = 1000

// PaperSearcher looks up paper abstracts.
type PaperSearcher interface {
	Abstract(ctx context.Context, query string) (string, error)
}

// PaperSearchFunc adapts a function to PaperSearcher.
type PaperSearchFunc func(ctx context.Context, query string) (string, error)

// Abstract implements PaperSearcher.
func (f PaperSearchFunc) Abstract(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

// CannedPapers answers every query with a fixed placeholder abstract.
var CannedPapers = PaperSearchFunc(func(_ context.Context, query string) (string, error) {
	return fmt.Sprintf("Found abstract for '%s': Recent advances in AI productivity...", query), nil
})

// Deps are the collaborators of the function tools. Nil fields fall back
// to in-memory or canned implementations.
type Deps struct {
	Store   planner.Store
	Memory  core.MemoryStore
	Fetcher PageFetcher
	Papers  PaperSearcher
	Now     func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Store == nil {
		d.Store = planner.NewMemoryStore()
	}
	if d.Memory == nil {
		d.Memory = memory.NewInMemoryStore()
	}
	if d.Fetcher == nil {
		d.Fetcher = NewHTTPFetcher()
	}
	if d.Papers == nil {
		d.Papers = CannedPapers
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

type noArgs struct{}

type calendarArgs struct {
	DaysAhead int `json:"days_ahead,omitempty" jsonschema:"description=Number of days to look ahead (default 7),minimum=1,maximum=90"`
}

type arxivArgs struct {
	Query string `json:"query" jsonschema:"description=Search terms for the paper"`
}

// currentUserArgs is empty: user-data tools always read the calling user.
type currentUserArgs struct{}

type postArgs struct {
	Content  string `json:"content" jsonschema:"description=The post text"`
	Platform string `json:"platform" jsonschema:"description=Target platform such as twitter or linkedin"`
}

type pageArgs struct {
	URL string `json:"url" jsonschema:"description=Full URL including http:// or https://"`
}

type studySessionArgs struct {
	Subject  string  `json:"subject" jsonschema:"description=What was studied"`
	Hours    float64 `json:"hours" jsonschema:"description=Time spent in hours,minimum=0"`
	TimeSlot string  `json:"time_slot,omitempty" jsonschema:"description=Time of day,enum=morning,enum=afternoon,enum=evening,enum=night"`
	Tasks    int     `json:"tasks_completed,omitempty" jsonschema:"description=Tasks finished in the session,minimum=0"`
}

type deadlineArgs struct {
	Days int `json:"days,omitempty" jsonschema:"description=Window in days (default 30),minimum=1"`
}

// Tools returns every specialist function tool keyed by name.
func Tools(deps Deps) map[string]tool.Tool {
	d := deps.withDefaults()

	tools := []tool.Tool{
		tool.NewTypedTool(ToolCurrentDatetime,
			"Returns the current date and time to help with planning schedules.",
			func(_ *core.ToolContext, _ noArgs) (any, error) {
				return d.Now().Format(DatetimeLayout), nil
			}),

		tool.NewTypedTool(ToolUserCalendar,
			"Fetches the user's existing calendar events to avoid scheduling conflicts.",
			func(tc *core.ToolContext, in calendarArgs) (any, error) {
				days := in.DaysAhead
				if days <= 0 {
					days = 7
				}
				from := d.Now()
				events, err := d.Store.CalendarEvents(tc.Context(), tc.UserID(), from, from.AddDate(0, 0, days))
				if err != nil {
					return nil, err
				}
				return planner.FormatCalendar(events), nil
			}),

		tool.NewTypedTool(ToolArxivAbstract,
			"Searches Arxiv specifically for academic paper abstracts.",
			func(tc *core.ToolContext, in arxivArgs) (any, error) {
				if strings.TrimSpace(in.Query) == "" {
					return nil, tool.NewInvalidArgumentsError(ToolArxivAbstract, errors.New("query must not be empty"))
				}
				return d.Papers.Abstract(tc.Context(), in.Query)
			}),

		tool.NewTypedTool(ToolStudyLogs,
			"Retrieves the raw study session logs for the user (time spent, tasks completed).",
			func(tc *core.ToolContext, _ currentUserArgs) (any, error) {
				now := d.Now()
				logs, err := d.Store.StudyLogs(tc.Context(), tc.UserID(), startOfDay(now.AddDate(0, 0, -6)))
				if err != nil {
					return nil, err
				}
				s := planner.Summarize(logs, now, 7)
				return fmt.Sprintf("%s\nTotal: %.1fhrs over %s, %d day(s) missed.",
					planner.FormatStudyLogs(logs), s.TotalHours, s.Period, s.MissedDays), nil
			}),

		tool.NewTypedTool(ToolValidatePostLength,
			"Checks if the content fits within the character limits of the platform.",
			func(_ *core.ToolContext, in postArgs) (any, error) {
				return ValidatePostLength(in.Content, in.Platform), nil
			}),

		tool.NewTypedTool(ToolFetchPage,
			"Scrapes and extracts text content from a webpage URL.",
			func(tc *core.ToolContext, in pageArgs) (any, error) {
				text, err := d.Fetcher.FetchText(tc.Context(), in.URL)
				if err != nil {
					return nil, fmt.Errorf("error scraping URL: %w", err)
				}
				return text, nil
			}),

		tool.NewTypedTool(ToolStudyRecommendation,
			"Returns personalized study recommendations from the user's logged sessions.",
			func(tc *core.ToolContext, _ currentUserArgs) (any, error) {
				return memory.Recommendations(d.Memory, tc.UserID())
			}),

		tool.NewTypedTool(ToolLogStudySession,
			"Records a finished study session for the current user.",
			func(tc *core.ToolContext, in studySessionArgs) (any, error) {
				slot := in.TimeSlot
				if slot == "" {
					slot = TimeSlot(d.Now())
				}
				if _, err := d.Store.AddStudyLog(tc.Context(), planner.StudyLog{
					UserID:         tc.UserID(),
					Day:            d.Now(),
					Subject:        in.Subject,
					Hours:          in.Hours,
					TasksCompleted: in.Tasks,
				}); err != nil {
					return nil, err
				}
				if err := d.Memory.Save(tc.UserID(), memory.PatternStudySessions, map[string]any{
					"hours":     in.Hours,
					"time_slot": slot,
					"subject":   in.Subject,
				}); err != nil {
					return nil, err
				}
				return fmt.Sprintf("Logged %.1fhrs of %s (%s).", in.Hours, in.Subject, slot), nil
			}),

		tool.NewTypedTool(ToolUpcomingDeadlines,
			"Lists the user's pending deadlines that are due soon.",
			func(tc *core.ToolContext, in deadlineArgs) (any, error) {
				days := in.Days
				if days <= 0 {
					days = 30
				}
				deadlines, err := d.Store.Deadlines(tc.Context(), tc.UserID(), planner.StatusPending)
				if err != nil {
					return nil, err
				}
				return planner.Upcoming(deadlines, d.Now(), days), nil
			}),
	}

	out := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		out[t.Name()] = t
	}
	return out
}

// ValidatePostLength checks content against the limit of platform.
func ValidatePostLength(content, platform string) string {
	limit, ok := PostLimits[strings.ToLower(platform)]
	if !ok {
		limit = DefaultPostLimit
	}
	if n := utf8.RuneCountInString(content); n > limit {
		return fmt.Sprintf("Error: Content is %d chars; limit is %d.", n, limit)
	}
	return "Length OK."
}

// TimeSlot buckets t into morning, afternoon, evening or night.
func TimeSlot(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return "morning"
	case h >= 12 && h < 17:
		return "afternoon"
	case h >= 17 && h < 22:
		return "evening"
	default:
		return "night"
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, dd := t.Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, t.Location())
}
