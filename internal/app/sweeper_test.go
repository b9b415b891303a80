package app_test

import (
	"context"
	"testing"
	"time"

	"medy-coop-service/internal/app"
	"medy-coop-service/internal/domain"
)

func TestSweeperAwardsSoleSubmitter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	launch := f.launched(t, domain.ModeStandard, 5)
	id := launch.Session.ID
	if _, err := f.svc.SubmitResult(ctx, id, "alice", app.SubmitInput{Answers: f.correctAnswers(launch.Session.QuestionIDs)}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	f.clock.Advance(4 * time.Minute)
	if n, err := f.svc.ExpireAbandoned(ctx); err != nil || n != 0 {
		t.Fatalf("expected nothing to expire before the threshold, got %d (%v)", n, err)
	}

	f.clock.Advance(2 * time.Minute)
	n, err := f.svc.ExpireAbandoned(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 expired session, got %d (%v)", n, err)
	}
	view, err := f.svc.GetSession(ctx, id, "bob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.Status != domain.StatusExpired || view.Winner == nil || *view.Winner != "alice" {
		t.Fatalf("expected expired with alice winning, got %s %v", view.Status, view.Winner)
	}
	if f.events.count(app.EventOpponentAbandoned) != 1 {
		t.Fatalf("expected an abandonment event")
	}
	pushed := false
	for _, n := range f.inbox.For("bob") {
		if n.Type == app.NotificationAbandoned && n.Title == "⚠️ Session expirée" {
			pushed = true
		}
	}
	if !pushed {
		t.Fatalf("expected abandonment push for bob")
	}

	if n, _ := f.svc.ExpireAbandoned(ctx); n != 0 {
		t.Fatalf("second pass must be a no-op, got %d", n)
	}
}

func TestSweeperWithoutResultsHasNoWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	launch := f.launched(t, domain.ModeStandard, 5)

	f.clock.Advance(6 * time.Minute)
	if n, _ := f.svc.ExpireAbandoned(ctx); n != 1 {
		t.Fatalf("expected 1 expired session, got %d", n)
	}
	view, _ := f.svc.GetSession(ctx, launch.Session.ID, "alice")
	if view.Status != domain.StatusExpired || view.Winner != nil {
		t.Fatalf("expected expired without winner, got %s %v", view.Status, view.Winner)
	}
}

func TestSweeperSkipsFinishedSessionsUntilWindowElapses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	launch := f.launched(t, domain.ModeStandard, 5)
	id, ids := launch.Session.ID, launch.Session.QuestionIDs
	for _, u := range []string{"alice", "bob"} {
		if _, err := f.svc.SubmitResult(ctx, id, u, app.SubmitInput{Answers: f.correctAnswers(ids)}); err != nil {
			t.Fatalf("submit %s: %v", u, err)
		}
	}

	f.clock.Advance(10 * time.Minute)
	if n, _ := f.svc.ExpireAbandoned(ctx); n != 0 {
		t.Fatalf("finished session must not be abandoned, got %d", n)
	}
	if f.events.count(app.EventOpponentAbandoned) != 0 {
		t.Fatalf("unexpected abandonment event")
	}

	f.clock.Advance(domain.ResultsCompleteTTL)
	if n, _ := f.svc.ExpireAbandoned(ctx); n != 1 {
		t.Fatalf("expected finished session to expire after its window, got %d", n)
	}
	view, _ := f.svc.GetSession(ctx, id, "alice")
	if view.Status != domain.StatusExpired || view.Winner != nil {
		t.Fatalf("expected expired tie, got %s %v", view.Status, view.Winner)
	}
}

func TestSweeperExpiresStalePendingSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view, _ := f.svc.CreateSession(ctx, "alice", "bob")

	f.clock.Advance(domain.PendingTTL)
	if n, _ := f.svc.ExpireAbandoned(ctx); n != 1 {
		t.Fatalf("expected stale pending session to expire, got %d", n)
	}
	got, _ := f.svc.GetSession(ctx, view.ID, "alice")
	if got.Status != domain.StatusExpired {
		t.Fatalf("expected expired, got %s", got.Status)
	}
}
