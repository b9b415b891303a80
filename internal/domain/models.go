package domain

import (
	"sort"
	"time"
)

// Status is the lifecycle state of a coop session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusReady      Status = "ready"
	StatusInProgress Status = "in_progress"
	StatusCancelled  Status = "cancelled"
	StatusExpired    Status = "expired"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusExpired
}

// CorrectionMode selects the scoring policy applied to every question of a session.
type CorrectionMode string

const (
	ModePositive CorrectionMode = "positive"
	ModeStandard CorrectionMode = "standard"
	ModeBinary   CorrectionMode = "binary"
)

// Valid reports whether m is a known mode. The zero value is accepted and scores as standard.
func (m CorrectionMode) Valid() bool {
	switch m {
	case "", ModePositive, ModeStandard, ModeBinary:
		return true
	}
	return false
}

// Level is an optional difficulty tag.
type Level string

const (
	LevelEasy   Level = "facile"
	LevelMedium Level = "moyen"
	LevelHard   Level = "difficile"
)

func (l Level) Valid() bool {
	switch l {
	case "", LevelEasy, LevelMedium, LevelHard:
		return true
	}
	return false
}

// Result is the write-once outcome of one participant.
type Result struct {
	Score       float64   `json:"score"`
	ScorePct    float64   `json:"scorePct"`
	Total       int       `json:"total"`
	DurationMs  int64     `json:"durationMs"`
	CompletedAt time.Time `json:"completedAt"`
}

// CoopSession is the aggregate root of a two-player duel.
type CoopSession struct {
	ID             string            `json:"id"`
	Participants   [2]string         `json:"participants"`
	Initiator      string            `json:"initiator"`
	Status         Status            `json:"status"`
	Readiness      map[string]bool   `json:"readiness"`
	Filters        Filters           `json:"filters"`
	CorrectionMode CorrectionMode    `json:"correctionMode,omitempty"`
	Level          Level             `json:"level,omitempty"`
	QuestionIDs    []string          `json:"questionIds"`
	Seed           string            `json:"seed,omitempty"`
	StartedAt      *time.Time        `json:"startedAt,omitempty"`
	SubmittedBy    []string          `json:"submittedBy"`
	Results        map[string]Result `json:"results"`
	Winner         *string           `json:"winner"`
	ExpiresAt      time.Time         `json:"expiresAt"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// IsParticipant reports whether userID is one of the two participants.
func (s *CoopSession) IsParticipant(userID string) bool {
	return userID != "" && (s.Participants[0] == userID || s.Participants[1] == userID)
}

// Opponent returns the other participant.
func (s *CoopSession) Opponent(userID string) string {
	if s.Participants[0] == userID {
		return s.Participants[1]
	}
	return s.Participants[0]
}

// HasSubmitted reports whether userID is already in SubmittedBy.
func (s *CoopSession) HasSubmitted(userID string) bool {
	for _, id := range s.SubmittedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// AllReady reports whether every participant's readiness flag is true.
func (s *CoopSession) AllReady() bool {
	for _, p := range s.Participants {
		if !s.Readiness[p] {
			return false
		}
	}
	return true
}

// ResultsComplete reports whether both participants have a stored result.
func (s *CoopSession) ResultsComplete() bool {
	_, a := s.Results[s.Participants[0]]
	_, b := s.Results[s.Participants[1]]
	return a && b
}

// Clone returns a deep copy so stores never share maps or slices with callers.
func (s *CoopSession) Clone() *CoopSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Readiness = make(map[string]bool, len(s.Readiness))
	for k, v := range s.Readiness {
		out.Readiness[k] = v
	}
	out.Results = make(map[string]Result, len(s.Results))
	for k, v := range s.Results {
		out.Results[k] = v
	}
	out.QuestionIDs = append([]string(nil), s.QuestionIDs...)
	out.SubmittedBy = append([]string(nil), s.SubmittedBy...)
	out.Filters = s.Filters.Clone()
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.Winner != nil {
		w := *s.Winner
		out.Winner = &w
	}
	return &out
}

// SessionView is the sanitized shape returned to clients.
type SessionView struct {
	ID             string            `json:"id"`
	Participants   []string          `json:"participants"`
	Initiator      string            `json:"initiator"`
	Status         Status            `json:"status"`
	Readiness      map[string]bool   `json:"readiness"`
	Filters        Filters           `json:"filters"`
	CorrectionMode CorrectionMode    `json:"correctionMode,omitempty"`
	Level          Level             `json:"level,omitempty"`
	QuestionIDs    []string          `json:"questionIds"`
	Seed           string            `json:"seed,omitempty"`
	StartedAt      *time.Time        `json:"startedAt,omitempty"`
	SubmittedBy    []string          `json:"submittedBy"`
	Results        map[string]Result `json:"results"`
	Winner         *string           `json:"winner"`
	ExpiresAt      time.Time         `json:"expiresAt"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// View renders the session for transport.
func (s *CoopSession) View() SessionView {
	c := s.Clone()
	submitted := c.SubmittedBy
	if submitted == nil {
		submitted = []string{}
	}
	sort.Strings(submitted)
	questionIDs := c.QuestionIDs
	if questionIDs == nil {
		questionIDs = []string{}
	}
	return SessionView{
		ID:             c.ID,
		Participants:   []string{c.Participants[0], c.Participants[1]},
		Initiator:      c.Initiator,
		Status:         c.Status,
		Readiness:      c.Readiness,
		Filters:        c.Filters,
		CorrectionMode: c.CorrectionMode,
		Level:          c.Level,
		QuestionIDs:    questionIDs,
		Seed:           c.Seed,
		StartedAt:      c.StartedAt,
		SubmittedBy:    submitted,
		Results:        c.Results,
		Winner:         c.Winner,
		ExpiresAt:      c.ExpiresAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// Question is a multiple-choice question as served by the question store.
type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer []int    `json:"correctAnswer"`
	Speciality    string   `json:"speciality,omitempty"`
	StudyYear     *int     `json:"studyYear,omitempty"`
	University    string   `json:"university,omitempty"`
	UnitID        string   `json:"unitId,omitempty"`
	ModuleID      string   `json:"moduleId,omitempty"`
	CourseID      string   `json:"courseId,omitempty"`
	UnitName      string   `json:"unitName,omitempty"`
	ModuleName    string   `json:"moduleName,omitempty"`
	CourseName    string   `json:"courseName,omitempty"`
}

// QuestionView hides the answer key from players.
type QuestionView struct {
	ID         string   `json:"id"`
	Prompt     string   `json:"prompt"`
	Options    []string `json:"options"`
	UnitName   string   `json:"unitName,omitempty"`
	ModuleName string   `json:"moduleName,omitempty"`
	CourseName string   `json:"courseName,omitempty"`
}

func (q Question) View() QuestionView {
	return QuestionView{
		ID:         q.ID,
		Prompt:     q.Prompt,
		Options:    append([]string(nil), q.Options...),
		UnitName:   q.UnitName,
		ModuleName: q.ModuleName,
		CourseName: q.CourseName,
	}
}

// AnswerSubmission is one raw answer from a client. Selections arrive as JSON numbers.
type AnswerSubmission struct {
	QuestionID string    `json:"questionId"`
	Selected   []float64 `json:"selected"`
}

// CoopAnswer is one append-only audit row per graded question.
type CoopAnswer struct {
	SessionID        string    `json:"sessionId"`
	UserID           string    `json:"userId"`
	QuestionID       string    `json:"questionId"`
	Selected         []int     `json:"selected"`
	Score            float64   `json:"score"`
	IsCorrect        bool      `json:"isCorrect"`
	SubmittedAt      time.Time `json:"submittedAt"`
	ClientDurationMs *int64    `json:"clientDurationMs,omitempty"`
}

// UserProfile is the slice of the user store consumed by coop sessions.
type UserProfile struct {
	ID         string `json:"id"`
	Speciality string `json:"speciality,omitempty"`
	StudyYear  *int   `json:"studyYear,omitempty"`
	University string `json:"university,omitempty"`
}

// Notification is an offline push or in-app notice.
type Notification struct {
	UserID    string            `json:"userId"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
