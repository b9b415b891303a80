package domain

import (
	"encoding/json"
	"strings"
)

// Question count bounds for a single session.
const (
	MinQuestionCount = 5
	MaxQuestionCount = 50
)

// Filters are the question-selection criteria chosen by the initiator.
type Filters struct {
	UnitIDs    []string `json:"unitIds,omitempty"`
	ModuleIDs  []string `json:"moduleIds,omitempty"`
	CourseIDs  []string `json:"courseIds,omitempty"`
	StudyYear  *int     `json:"studyYear,omitempty"`
	Speciality string   `json:"speciality,omitempty"`
	University string   `json:"university,omitempty"`
	Count      int      `json:"count,omitempty"`
}

// Normalize lowercases the speciality, trims the university and drops blank ids.
func (f Filters) Normalize() Filters {
	out := Filters{
		UnitIDs:    cleanIDs(f.UnitIDs),
		ModuleIDs:  cleanIDs(f.ModuleIDs),
		CourseIDs:  cleanIDs(f.CourseIDs),
		Speciality: strings.ToLower(strings.TrimSpace(f.Speciality)),
		University: strings.TrimSpace(f.University),
		Count:      f.Count,
	}
	if f.StudyYear != nil {
		y := *f.StudyYear
		out.StudyYear = &y
	}
	return out
}

func (f Filters) Clone() Filters {
	out := f
	out.UnitIDs = append([]string(nil), f.UnitIDs...)
	out.ModuleIDs = append([]string(nil), f.ModuleIDs...)
	out.CourseIDs = append([]string(nil), f.CourseIDs...)
	if f.StudyYear != nil {
		y := *f.StudyYear
		out.StudyYear = &y
	}
	return out
}

// Matches applies the equality and inclusion criteria to q. f must be normalized.
func (f Filters) Matches(q Question) bool {
	if f.Speciality != "" && strings.ToLower(strings.TrimSpace(q.Speciality)) != f.Speciality {
		return false
	}
	if f.University != "" && strings.TrimSpace(q.University) != f.University {
		return false
	}
	if f.StudyYear != nil && (q.StudyYear == nil || *q.StudyYear != *f.StudyYear) {
		return false
	}
	if len(f.UnitIDs) > 0 && !contains(f.UnitIDs, q.UnitID) {
		return false
	}
	if len(f.ModuleIDs) > 0 && !contains(f.ModuleIDs, q.ModuleID) {
		return false
	}
	if len(f.CourseIDs) > 0 && !contains(f.CourseIDs, q.CourseID) {
		return false
	}
	return true
}

// CacheKey identifies a (filter, count) sample. The explicit Count field is excluded.
func (f Filters) CacheKey(count int) string {
	n := f.Normalize()
	n.Count = 0
	raw, _ := json.Marshal(struct {
		Filters Filters `json:"f"`
		Count   int     `json:"n"`
	}{n, count})
	return string(raw)
}

// CountForLevel returns the fallback question count for a difficulty tag, clamped to the session bounds.
func CountForLevel(level Level) int {
	n := 40
	switch level {
	case LevelEasy:
		n = 40
	case LevelMedium:
		n = 60
	case LevelHard:
		n = 90
	}
	return clampInt(n, MinQuestionCount, MaxQuestionCount)
}

func cleanIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
