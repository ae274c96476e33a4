package memory

import (
	"fmt"

	"github.com/hupe1980/studymesh/core"
)

// PatternStudySessions is the pattern type of logged study sessions. Each
// record carries "hours" (number) and "time_slot" (string).
const PatternStudySessions = "study_sessions"

// consistencyTarget is the number of sessions per month that scores 100.
const consistencyTarget = 30

// StudyAnalysis summarizes a user's logged study sessions.
type StudyAnalysis struct {
	AvgHoursPerSession float64 `json:"avg_hours_per_session"`
	TotalSessions      int     `json:"total_sessions"`
	MostProductiveTime string  `json:"most_productive_time"`
	ConsistencyScore   float64 `json:"consistency_score"`
}

// AnalyzeStudyPatterns computes the StudyAnalysis of userID. It returns
// nil when nothing has been logged.
func AnalyzeStudyPatterns(store core.MemoryStore, userID string) (*StudyAnalysis, error) {
	recs, err := store.Patterns(userID, PatternStudySessions)
	if err != nil {
		return nil, fmt.Errorf("load study sessions: %w", err)
	}
	if len(recs) == 0 {
		return nil, nil
	}

	var (
		total  float64
		counts = make(map[string]int)
		best   string
	)
	for _, r := range recs {
		total += number(r.Data["hours"])

		slot, _ := r.Data["time_slot"].(string)
		if slot == "" {
			slot = "unknown"
		}
		counts[slot]++
		// ties go to the slot seen first
		if best == "" || counts[slot] > counts[best] {
			best = slot
		}
	}

	n := len(recs)
	return &StudyAnalysis{
		AvgHoursPerSession: total / float64(n),
		TotalSessions:      n,
		MostProductiveTime: best,
		ConsistencyScore:   min(100, float64(n)/consistencyTarget*100),
	}, nil
}

// Recommendations turns the study analysis of userID into advice.
func Recommendations(store core.MemoryStore, userID string) ([]string, error) {
	analysis, err := AnalyzeStudyPatterns(store, userID)
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return []string{"Start tracking your study sessions to get personalized recommendations!"}, nil
	}

	var recs []string
	if analysis.AvgHoursPerSession < 1 {
		recs = append(recs, "Try to increase your study session length to at least 1 hour for better focus.")
	}
	if analysis.ConsistencyScore < 50 {
		recs = append(recs, "Focus on building consistency. Try to study at least 15 days per month.")
	}
	if analysis.MostProductiveTime != "" {
		recs = append(recs, fmt.Sprintf("You're most productive during %s. Schedule important tasks then!", analysis.MostProductiveTime))
	}
	if len(recs) == 0 {
		recs = []string{"Great job! Keep up the consistent work!"}
	}

	return recs, nil
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case interface{ Float64() (float64, error) }:
		f, _ := n.Float64()
		return f
	default:
		return 0
	}
}
