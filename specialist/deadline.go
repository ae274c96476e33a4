package specialist

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/studymesh/planner"
)

// NotSpecified is what the deadline parser writes for missing fields.
const NotSpecified = "Not specified"

// Deadline categories.
var deadlineCategories = map[string]bool{
	"scholarship": true,
	"internship":  true,
	"competition": true,
	"other":       true,
}

// ErrNoDeadlineJSON is returned when a parser answer holds no JSON object.
var ErrNoDeadlineJSON = errors.New("no deadline JSON object found")

// ParsedDeadline is the JSON contract of the deadline_parser agent.
type ParsedDeadline struct {
	Title        string   `json:"title"`
	DeadlineDate string   `json:"deadline_date"`
	Description  string   `json:"description"`
	Requirements []string `json:"requirements"`
	Category     string   `json:"category"`
	Priority     int      `json:"priority"`
}

// ParseDeadline extracts the deadline JSON object from a parser answer,
// which may wrap it in prose or a ```json fence, and converts it into a
// planner.Deadline for userID.
func ParseDeadline(answer, userID string) (planner.Deadline, error) {
	raw, err := extractJSONObject(answer)
	if err != nil {
		return planner.Deadline{}, err
	}

	var p ParsedDeadline
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return planner.Deadline{}, fmt.Errorf("decode deadline: %w", err)
	}

	return p.ToDeadline(userID)
}

// ToDeadline validates p and converts it.
func (p ParsedDeadline) ToDeadline(userID string) (planner.Deadline, error) {
	if p.Title == "" || p.Title == NotSpecified {
		return planner.Deadline{}, errors.New("deadline title not specified")
	}
	if p.DeadlineDate == "" || p.DeadlineDate == NotSpecified {
		return planner.Deadline{}, fmt.Errorf("deadline %q: date not specified", p.Title)
	}
	date, err := time.Parse(planner.DateLayout, p.DeadlineDate)
	if err != nil {
		return planner.Deadline{}, fmt.Errorf("deadline %q: date %q is not YYYY-MM-DD", p.Title, p.DeadlineDate)
	}

	category := strings.ToLower(strings.TrimSpace(p.Category))
	if !deadlineCategories[category] {
		category = "other"
	}

	priority := p.Priority
	switch {
	case priority < 1:
		priority = 1
	case priority > 5:
		priority = 5
	}

	requirements := make([]string, 0, len(p.Requirements))
	for _, r := range p.Requirements {
		if r = strings.TrimSpace(r); r != "" && r != NotSpecified {
			requirements = append(requirements, r)
		}
	}

	description := p.Description
	if description == NotSpecified {
		description = ""
	}

	d := planner.Deadline{
		UserID:       userID,
		Title:        p.Title,
		DeadlineDate: date,
		Description:  description,
		Requirements: requirements,
		Category:     category,
		Priority:     priority,
		Status:       planner.StatusPending,
	}
	return d, planner.ValidateDeadline(d)
}

// extractJSONObject returns the first balanced {...} in s, ignoring braces
// inside strings.
func extractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoDeadlineJSON
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrNoDeadlineJSON
}
