package app_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"medy-coop-service/internal/app"
	"medy-coop-service/internal/domain"
	"medy-coop-service/internal/infra/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type emitted struct {
	sessionID string
	users     []string
	event     string
	payload   any
}

// recordingEmitter captures every emission without throttling.
type recordingEmitter struct {
	mu        sync.Mutex
	events    []emitted
	snapshots []emitted
	online    map[string]bool
}

func (e *recordingEmitter) EmitSessionEvent(sessionID string, users []string, event string, payload any) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{sessionID: sessionID, users: users, event: event, payload: payload})
	return true
}

func (e *recordingEmitter) SendSnapshot(sessionID, userID string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snapshots = append(e.snapshots, emitted{sessionID: sessionID, users: []string{userID}, event: "coop:snapshot", payload: payload})
}

func (e *recordingEmitter) IsOnline(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online[userID]
}

func (e *recordingEmitter) count(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.events {
		if ev.event == event {
			n++
		}
	}
	return n
}

// countingQuestions counts SampleIDs calls on top of a question bank.
type countingQuestions struct {
	*memory.QuestionBank
	mu      sync.Mutex
	samples int
}

func (c *countingQuestions) SampleIDs(ctx context.Context, filter domain.Filters, count int) ([]string, error) {
	c.mu.Lock()
	c.samples++
	c.mu.Unlock()
	return c.QuestionBank.SampleIDs(ctx, filter, count)
}

type fixture struct {
	svc       *app.CoopService
	clock     *fakeClock
	events    *recordingEmitter
	inbox     *memory.Inbox
	answers   *memory.AnswerLog
	dir       *memory.Directory
	questions *countingQuestions
	bank      map[string]domain.Question
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithSessions(t, memory.NewSessionStore())
}

func newFixtureWithSessions(t *testing.T, sessions app.SessionRepository) *fixture {
	t.Helper()
	bank := make(map[string]domain.Question)
	list := make([]domain.Question, 0, 12)
	for i := 0; i < 12; i++ {
		q := domain.Question{
			ID:            fmt.Sprintf("q%d", i+1),
			Prompt:        fmt.Sprintf("Question %d", i+1),
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: []int{i % 4},
			Speciality:    "medecine",
		}
		list = append(list, q)
		bank[q.ID] = q
	}
	dir := memory.NewDirectory()
	dir.AddFriendship("alice", "bob")
	dir.AddFriendship("alice", "carol")

	f := &fixture{
		clock:     newFakeClock(),
		events:    &recordingEmitter{online: map[string]bool{}},
		inbox:     memory.NewInbox(),
		answers:   memory.NewAnswerLog(),
		dir:       dir,
		questions: &countingQuestions{QuestionBank: memory.NewQuestionBank(list)},
		bank:      bank,
	}
	f.svc = app.NewCoopService(app.Dependencies{
		Sessions:  sessions,
		Questions: f.questions,
		Answers:   f.answers,
		Friends:   dir,
		Users:     dir,
		Events:    f.events,
		Notifier:  f.inbox,
		Logger:    zerolog.Nop(),
	}, app.WithClock(f.clock.Now), app.WithInactivityThreshold(5*time.Minute))
	return f
}

// launched creates an alice/bob session with count questions in mode and launches it.
func (f *fixture) launched(t *testing.T, mode domain.CorrectionMode, count int) app.LaunchResult {
	t.Helper()
	id := f.ready(t, mode, count)
	result, err := f.svc.LaunchSession(context.Background(), id, "alice")
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	return result
}

// ready creates an alice/bob session with both participants ready and returns its id.
func (f *fixture) ready(t *testing.T, mode domain.CorrectionMode, count int) string {
	t.Helper()
	ctx := context.Background()
	view, err := f.svc.CreateSession(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.SetFilters(ctx, view.ID, "alice", app.FiltersInput{
		Filters:        domain.Filters{Count: count},
		CorrectionMode: mode,
	}); err != nil {
		t.Fatalf("filters: %v", err)
	}
	for _, u := range []string{"alice", "bob"} {
		if _, err := f.svc.SetReadiness(ctx, view.ID, u, true); err != nil {
			t.Fatalf("ready %s: %v", u, err)
		}
	}
	return view.ID
}

func (f *fixture) correctAnswers(ids []string) []domain.AnswerSubmission {
	out := make([]domain.AnswerSubmission, 0, len(ids))
	for _, id := range ids {
		q := f.bank[id]
		selected := make([]float64, len(q.CorrectAnswer))
		for i, c := range q.CorrectAnswer {
			selected[i] = float64(c)
		}
		out = append(out, domain.AnswerSubmission{QuestionID: id, Selected: selected})
	}
	return out
}

func (f *fixture) wrongAnswers(ids []string) []domain.AnswerSubmission {
	out := make([]domain.AnswerSubmission, 0, len(ids))
	for _, id := range ids {
		wrong := float64((f.bank[id].CorrectAnswer[0] + 1) % 4)
		out = append(out, domain.AnswerSubmission{QuestionID: id, Selected: []float64{wrong}})
	}
	return out
}
