package app

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"medy-coop-service/internal/domain"
	"medy-coop-service/internal/scoring"
)

// errUnchanged aborts a repository update without writing; the caller reloads the session.
var errUnchanged = errors.New("session unchanged")

// DefaultInactivityThreshold is the idle time after which an in-progress session counts as abandoned.
const DefaultInactivityThreshold = 5 * time.Minute

// Dependencies groups the collaborators of CoopService.
type Dependencies struct {
	Sessions  SessionRepository
	Questions QuestionRepository
	Answers   AnswerLog
	Friends   FriendshipChecker
	Users     UserDirectory
	Events    EventEmitter
	Notifier  Notifier
	Logger    zerolog.Logger
}

// Option customizes a CoopService.
type Option func(*CoopService)

// WithClock injects the server clock, mainly for deterministic tests.
func WithClock(now Clock) Option {
	return func(s *CoopService) { s.now = now }
}

// WithInactivityThreshold overrides DefaultInactivityThreshold.
func WithInactivityThreshold(d time.Duration) Option {
	return func(s *CoopService) {
		if d > 0 {
			s.inactivity = d
		}
	}
}

// CoopService contains the coop session use cases.
type CoopService struct {
	sessions   SessionRepository
	questions  QuestionRepository
	sampler    *QuestionSampler
	answers    AnswerLog
	friends    FriendshipChecker
	users      UserDirectory
	events     EventEmitter
	notifier   Notifier
	log        zerolog.Logger
	now        Clock
	inactivity time.Duration
}

func NewCoopService(deps Dependencies, opts ...Option) *CoopService {
	s := &CoopService{
		sessions:   deps.Sessions,
		questions:  deps.Questions,
		sampler:    NewQuestionSampler(deps.Questions),
		answers:    deps.Answers,
		friends:    deps.Friends,
		users:      deps.Users,
		events:     deps.Events,
		notifier:   deps.Notifier,
		log:        deps.Logger.With().Str("component", "coop_service").Logger(),
		now:        time.Now,
		inactivity: DefaultInactivityThreshold,
	}
	if s.answers == nil {
		s.answers = discardAnswers{}
	}
	if s.events == nil {
		s.events = silentEmitter{}
	}
	if s.notifier == nil {
		s.notifier = discardNotifier{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FiltersInput is the initiator's pre-launch configuration.
type FiltersInput struct {
	Filters        domain.Filters
	CorrectionMode domain.CorrectionMode
	Level          domain.Level
}

// SubmitInput carries a participant's answers. DurationMs is the client-reported time, kept for audit.
type SubmitInput struct {
	Answers    []domain.AnswerSubmission
	DurationMs *float64
}

// LaunchResult is the launched session with its populated questions.
type LaunchResult struct {
	Session   domain.SessionView    `json:"session"`
	Questions []domain.QuestionView `json:"questions"`
}

// CreateSession invites friendID to a duel, or refreshes the pending invitation between the pair.
func (s *CoopService) CreateSession(ctx context.Context, initiatorID, friendID string) (domain.SessionView, error) {
	initiatorID = strings.TrimSpace(initiatorID)
	friendID = strings.TrimSpace(friendID)
	if initiatorID == "" || friendID == "" {
		return domain.SessionView{}, domain.ErrInvalidID
	}
	if initiatorID == friendID {
		return domain.SessionView{}, domain.ErrSelfTarget
	}
	friends, err := s.friends.AreFriends(ctx, initiatorID, friendID)
	if err != nil {
		return domain.SessionView{}, domain.Transient(err)
	}
	if !friends {
		return domain.SessionView{}, domain.ErrNotFriends
	}

	now := s.now()
	if refreshed, err := s.refreshPendingInvite(ctx, initiatorID, friendID, now); err != nil || refreshed != nil {
		if err != nil {
			return domain.SessionView{}, err
		}
		s.announceInvite(ctx, refreshed)
		return refreshed.View(), nil
	}

	for _, userID := range []string{initiatorID, friendID} {
		active, err := s.hasActiveSession(ctx, userID, now)
		if err != nil {
			return domain.SessionView{}, err
		}
		if active {
			return domain.SessionView{}, domain.ErrAlreadyActiveSession
		}
	}

	session := &domain.CoopSession{
		ID:           uuid.NewString(),
		Participants: [2]string{initiatorID, friendID},
		Initiator:    initiatorID,
		Status:       domain.StatusPending,
		Readiness:    map[string]bool{initiatorID: false, friendID: false},
		QuestionIDs:  []string{},
		SubmittedBy:  []string{},
		Results:      map[string]domain.Result{},
		ExpiresAt:    now.Add(domain.PendingTTL),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return domain.SessionView{}, domain.Transient(err)
	}
	s.log.Info().Str("session_id", session.ID).Str("initiator", initiatorID).Msg("coop session created")
	s.announceInvite(ctx, session)
	return session.View(), nil
}

func (s *CoopService) refreshPendingInvite(ctx context.Context, initiatorID, friendID string, now time.Time) (*domain.CoopSession, error) {
	sessions, err := s.sessions.ListByParticipant(ctx, initiatorID)
	if err != nil {
		return nil, domain.Transient(err)
	}
	for _, existing := range sessions {
		if existing.Status != domain.StatusPending || !existing.IsParticipant(friendID) || existing.TimedOut(now) {
			continue
		}
		refreshed, err := s.sessions.Update(ctx, existing.ID, func(cur *domain.CoopSession) error {
			if cur.Status != domain.StatusPending || cur.TimedOut(now) {
				return errUnchanged
			}
			for _, p := range cur.Participants {
				cur.Readiness[p] = false
			}
			cur.ExpiresAt = now.Add(domain.PendingTTL)
			cur.UpdatedAt = now
			return nil
		})
		if errors.Is(err, errUnchanged) {
			continue
		}
		if err != nil {
			return nil, domain.Transient(err)
		}
		return refreshed, nil
	}
	return nil, nil
}

func (s *CoopService) hasActiveSession(ctx context.Context, userID string, now time.Time) (bool, error) {
	sessions, err := s.sessions.ListByParticipant(ctx, userID)
	if err != nil {
		return false, domain.Transient(err)
	}
	for _, existing := range sessions {
		if existing.TimedOut(now) {
			s.expireLazily(ctx, existing.ID)
			continue
		}
		if existing.Active(now) {
			return true, nil
		}
	}
	return false, nil
}

func (s *CoopService) announceInvite(ctx context.Context, session *domain.CoopSession) {
	friendID := session.Opponent(session.Initiator)
	s.events.EmitSessionEvent(session.ID, []string{friendID}, EventInviteReceived, session.View())
	s.notifyOffline(ctx, []string{friendID}, domain.Notification{
		Type:  NotificationInvite,
		Title: "👥 Nouveau défi",
		Body:  "Un ami vous invite à une session coop.",
		Data:  map[string]string{"sessionId": session.ID, "from": session.Initiator},
	})
}

// SetFilters updates the question criteria, correction mode and level. Initiator only, before launch.
func (s *CoopService) SetFilters(ctx context.Context, sessionID, userID string, in FiltersInput) (domain.SessionView, error) {
	if !in.CorrectionMode.Valid() {
		return domain.SessionView{}, domain.ErrInvalidCorrectionMode
	}
	if !in.Level.Valid() {
		return domain.SessionView{}, domain.ErrInvalidLevel
	}
	if c := in.Filters.Count; c != 0 && (c < domain.MinQuestionCount || c > domain.MaxQuestionCount) {
		return domain.SessionView{}, domain.ErrCountOutOfRange
	}
	filters := in.Filters.Normalize()
	s.backfillFromProfile(ctx, strings.TrimSpace(userID), &filters)

	updated, err := s.mutate(ctx, sessionID, userID, func(cur *domain.CoopSession, now time.Time) error {
		if cur.Initiator != strings.TrimSpace(userID) {
			return domain.ErrNotInitiator
		}
		if cur.Status == domain.StatusInProgress {
			return domain.ErrAlreadyStarted
		}
		if cur.Status.Terminal() {
			return domain.ErrSessionClosed
		}
		cur.Filters = filters
		if in.CorrectionMode != "" {
			cur.CorrectionMode = in.CorrectionMode
		}
		if in.Level != "" {
			cur.Level = in.Level
		}
		return cur.Transition(cur.Status, now)
	})
	if err != nil {
		return domain.SessionView{}, err
	}
	view := updated.View()
	s.events.EmitSessionEvent(updated.ID, view.Participants, EventFiltersUpdated, view)
	return view, nil
}

func (s *CoopService) backfillFromProfile(ctx context.Context, userID string, filters *domain.Filters) {
	if s.users == nil || (filters.Speciality != "" && filters.StudyYear != nil) {
		return
	}
	profile, err := s.users.Profile(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("profile lookup failed, filters not backfilled")
		}
		return
	}
	if filters.Speciality == "" {
		filters.Speciality = strings.ToLower(strings.TrimSpace(profile.Speciality))
	}
	if filters.StudyYear == nil && profile.StudyYear != nil {
		y := *profile.StudyYear
		filters.StudyYear = &y
	}
}

// SetReadiness records a participant's readiness and recomputes pending/ready.
func (s *CoopService) SetReadiness(ctx context.Context, sessionID, userID string, ready bool) (domain.SessionView, error) {
	var becameReady bool
	updated, err := s.mutate(ctx, sessionID, userID, func(cur *domain.CoopSession, now time.Time) error {
		if cur.Status == domain.StatusInProgress {
			return domain.ErrAlreadyStarted
		}
		if cur.Status.Terminal() {
			return domain.ErrSessionClosed
		}
		before := cur.Status
		cur.Readiness[strings.TrimSpace(userID)] = ready
		next := cur.RecomputeReadinessStatus()
		becameReady = before != domain.StatusReady && next == domain.StatusReady
		return cur.Transition(next, now)
	})
	if err != nil {
		return domain.SessionView{}, err
	}
	view := updated.View()
	s.events.EmitSessionEvent(updated.ID, view.Participants, EventSessionReady, readinessPayload{
		SessionID: updated.ID,
		Status:    string(updated.Status),
		Readiness: view.Readiness,
	})
	if becameReady {
		s.notifyOffline(ctx, view.Participants, domain.Notification{
			Type:  NotificationReady,
			Title: "✅ Coop prête",
			Body:  "Les deux joueurs sont prêts.",
			Data:  map[string]string{"sessionId": updated.ID},
		})
	}
	return view, nil
}

// LaunchSession samples the question set and starts the duel. Repeated calls return the running session.
func (s *CoopService) LaunchSession(ctx context.Context, sessionID, userID string) (LaunchResult, error) {
	current, err := s.load(ctx, sessionID, userID)
	if err != nil {
		return LaunchResult{}, err
	}
	if current.Status == domain.StatusInProgress && len(current.QuestionIDs) > 0 {
		return s.populate(ctx, current)
	}
	if current.Status.Terminal() {
		return LaunchResult{}, domain.ErrSessionClosed
	}
	if current.Status == domain.StatusInProgress {
		return LaunchResult{}, domain.ErrAlreadyStarted
	}
	if !current.AllReady() {
		return LaunchResult{}, domain.ErrNotAllReady
	}

	count := current.Filters.Count
	if count == 0 {
		count = domain.CountForLevel(current.Level)
	}
	ids, err := s.sampler.Sample(ctx, current.Filters, count)
	if err != nil {
		return LaunchResult{}, err
	}

	launched := false
	updated, err := s.mutate(ctx, sessionID, userID, func(cur *domain.CoopSession, now time.Time) error {
		launched = false
		if cur.Status == domain.StatusInProgress && len(cur.QuestionIDs) > 0 {
			return errUnchanged
		}
		if !cur.AllReady() {
			return domain.ErrNotAllReady
		}
		if err := cur.Transition(domain.StatusInProgress, now); err != nil {
			return err
		}
		cur.QuestionIDs = append([]string(nil), ids...)
		if cur.Seed == "" {
			cur.Seed = uuid.NewString()
		}
		startedAt := now
		cur.StartedAt = &startedAt
		launched = true
		return nil
	})
	if err != nil {
		return LaunchResult{}, err
	}

	if launched {
		s.log.Info().Str("session_id", updated.ID).Int("questions", len(updated.QuestionIDs)).Msg("coop session launched")
		participants := []string{updated.Participants[0], updated.Participants[1]}
		s.events.EmitSessionEvent(updated.ID, participants, EventSessionStarted, startedPayload{
			SessionID:       updated.ID,
			ServerStartedAt: updated.StartedAt.UnixMilli(),
			QuestionIDs:     updated.QuestionIDs,
		})
		s.notifyOffline(ctx, participants, domain.Notification{
			Type:  NotificationStarted,
			Title: "🎮 Coop commencée",
			Body:  "Votre session coop vient de démarrer.",
			Data:  map[string]string{"sessionId": updated.ID},
		})
	}
	return s.populate(ctx, updated)
}

func (s *CoopService) populate(ctx context.Context, session *domain.CoopSession) (LaunchResult, error) {
	byID, err := s.questionsByID(ctx, session.QuestionIDs)
	if err != nil {
		return LaunchResult{}, err
	}
	views := make([]domain.QuestionView, 0, len(session.QuestionIDs))
	for _, id := range session.QuestionIDs {
		if q, ok := byID[id]; ok {
			views = append(views, q.View())
		}
	}
	return LaunchResult{Session: session.View(), Questions: views}, nil
}

func (s *CoopService) questionsByID(ctx context.Context, ids []string) (map[string]domain.Question, error) {
	questions, err := s.questions.GetByIDs(ctx, ids)
	if err != nil {
		return nil, domain.Transient(err)
	}
	byID := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	return byID, nil
}

// SubmitResult grades a participant's answers exactly once and finalizes the duel when both results exist.
func (s *CoopService) SubmitResult(ctx context.Context, sessionID, userID string, in SubmitInput) (domain.SessionView, error) {
	var clientDuration *int64
	if in.DurationMs != nil {
		d := *in.DurationMs
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return domain.SessionView{}, domain.ErrInvalidDuration
		}
		ms := int64(d)
		clientDuration = &ms
	}

	current, err := s.load(ctx, sessionID, userID)
	if err != nil {
		return domain.SessionView{}, err
	}
	if len(current.QuestionIDs) == 0 {
		return domain.SessionView{}, domain.ErrNoQuestionsToGrade
	}

	answers := make(map[string][]int, len(in.Answers))
	for _, a := range in.Answers {
		answers[a.QuestionID] = scoring.NormalizeSelection(a.Selected)
	}
	questions, err := s.questionsByID(ctx, current.QuestionIDs)
	if err != nil {
		return domain.SessionView{}, err
	}
	// Pure computation; selection errors surface before the guard is touched.
	graded, err := scoring.ScoreSession(current.QuestionIDs, questions, answers, current.CorrectionMode)
	if err != nil {
		return domain.SessionView{}, err
	}

	participant := strings.TrimSpace(userID)
	completed := false
	var submittedAt time.Time
	updated, err := s.mutate(ctx, sessionID, userID, func(cur *domain.CoopSession, now time.Time) error {
		completed = false
		if cur.Status != domain.StatusInProgress || cur.HasSubmitted(participant) {
			return domain.ErrAlreadySubmittedOrInactive
		}
		if _, exists := cur.Results[participant]; exists {
			return domain.ErrAlreadySubmittedOrInactive
		}
		cur.SubmittedBy = append(cur.SubmittedBy, participant)

		var duration int64
		if cur.StartedAt != nil {
			duration = max(now.Sub(*cur.StartedAt).Milliseconds(), 0)
		}
		if cur.Results == nil {
			cur.Results = map[string]domain.Result{}
		}
		cur.Results[participant] = domain.Result{
			Score:       graded.Score,
			ScorePct:    graded.ScorePct,
			Total:       graded.Total,
			DurationMs:  duration,
			CompletedAt: now,
		}
		submittedAt = now
		if cur.ResultsComplete() {
			cur.Winner = domain.DetermineWinner(cur.Participants, cur.Results)
			completed = true
			return cur.Transition(domain.StatusInProgress, now)
		}
		return nil
	})
	if err != nil {
		return domain.SessionView{}, err
	}

	s.appendAudit(ctx, updated.ID, participant, graded, submittedAt, clientDuration)

	view := updated.View()
	s.events.EmitSessionEvent(updated.ID, view.Participants, EventOpponentAnswered, answeredPayload{
		SessionID:   updated.ID,
		UserID:      participant,
		SubmittedBy: view.SubmittedBy,
	})
	if completed {
		s.finish(ctx, updated)
	}
	return view, nil
}

func (s *CoopService) appendAudit(ctx context.Context, sessionID, userID string, graded scoring.SessionScore, at time.Time, clientDuration *int64) {
	rows := make([]domain.CoopAnswer, 0, len(graded.Breakdown))
	for _, b := range graded.Breakdown {
		rows = append(rows, domain.CoopAnswer{
			SessionID:        sessionID,
			UserID:           userID,
			QuestionID:       b.QuestionID,
			Selected:         b.Selected,
			Score:            b.Score,
			IsCorrect:        b.Status == scoring.StatusCorrect,
			SubmittedAt:      at,
			ClientDurationMs: clientDuration,
		})
	}
	if err := s.answers.Append(context.WithoutCancel(ctx), rows); err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Str("user_id", userID).Msg("answer audit write failed")
	}
}

func (s *CoopService) finish(ctx context.Context, session *domain.CoopSession) {
	participants := []string{session.Participants[0], session.Participants[1]}
	digests := make(map[string]resultDigest, len(session.Results))
	for id, r := range session.Results {
		digests[id] = resultDigest{ScorePct: r.ScorePct, DurationMs: r.DurationMs}
	}
	s.events.EmitSessionEvent(session.ID, participants, EventBothAnswered, finishedPayload{
		SessionID: session.ID,
		Winner:    session.Winner,
		Results:   digests,
	})
	s.events.EmitSessionEvent(session.ID, participants, EventSessionFinished, session.View())

	for _, p := range participants {
		title := "💪 Défaite en coop"
		switch {
		case session.Winner == nil:
			title = "🤝 Égalité"
		case *session.Winner == p:
			title = "🏆 Victoire !"
		}
		s.notifyOffline(ctx, []string{p}, domain.Notification{
			Type:  NotificationFinished,
			Title: title,
			Body:  "La session coop est terminée.",
			Data:  map[string]string{"sessionId": session.ID},
		})
	}
	s.log.Info().Str("session_id", session.ID).Interface("winner", session.Winner).Msg("coop session finished")
}

// GetSession returns the participant's view and pushes a snapshot to their sockets.
func (s *CoopService) GetSession(ctx context.Context, sessionID, userID string) (domain.SessionView, error) {
	session, err := s.load(ctx, sessionID, userID)
	if err != nil {
		return domain.SessionView{}, err
	}
	view := session.View()
	s.events.SendSnapshot(session.ID, strings.TrimSpace(userID), view)
	return view, nil
}

// EnsureParticipant authorizes joining a session's event room.
func (s *CoopService) EnsureParticipant(ctx context.Context, sessionID, userID string) error {
	_, err := s.load(ctx, sessionID, userID)
	return err
}

// CancelSession moves a live session to cancelled. Cancelling a closed session returns it unchanged.
func (s *CoopService) CancelSession(ctx context.Context, sessionID, userID string) (domain.SessionView, error) {
	cancelled := false
	updated, err := s.mutate(ctx, sessionID, userID, func(cur *domain.CoopSession, now time.Time) error {
		cancelled = false
		if cur.Status.Terminal() {
			return errUnchanged
		}
		cancelled = true
		return cur.Transition(domain.StatusCancelled, now)
	})
	if errors.Is(err, domain.ErrSessionClosed) {
		updated, err = s.load(ctx, sessionID, userID)
	}
	if err != nil {
		return domain.SessionView{}, err
	}
	view := updated.View()
	if cancelled {
		s.events.EmitSessionEvent(updated.ID, view.Participants, EventSessionCancelled, cancelledPayload{
			SessionID:   updated.ID,
			CancelledBy: strings.TrimSpace(userID),
		})
	}
	return view, nil
}

// ExpireAbandoned is one sweeper pass. It returns how many sessions were expired.
func (s *CoopService) ExpireAbandoned(ctx context.Context) (int, error) {
	sessions, err := s.sessions.ListByStatus(ctx, domain.StatusPending, domain.StatusReady, domain.StatusInProgress)
	if err != nil {
		return 0, domain.Transient(err)
	}
	now := s.now()
	cutoff := now.Add(-s.inactivity)
	expired := 0
	for _, session := range sessions {
		switch {
		case session.TimedOut(now):
			if s.expireLazily(ctx, session.ID) {
				expired++
			}
		case session.Status != domain.StatusInProgress:
		case session.ResultsComplete():
			if !now.Before(session.ExpiresAt) && s.expireFinished(ctx, session.ID, now) {
				expired++
			}
		case session.UpdatedAt.Before(cutoff):
			if s.abandon(ctx, session.ID, cutoff) {
				expired++
			}
		}
	}
	return expired, nil
}

func (s *CoopService) abandon(ctx context.Context, sessionID string, cutoff time.Time) bool {
	updated, err := s.sessions.Update(ctx, sessionID, func(cur *domain.CoopSession) error {
		if cur.Status != domain.StatusInProgress || cur.ResultsComplete() || !cur.UpdatedAt.Before(cutoff) {
			return errUnchanged
		}
		if len(cur.Results) == 1 {
			for id := range cur.Results {
				winner := id
				cur.Winner = &winner
			}
		}
		cur.Status = domain.StatusExpired
		cur.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		if !errors.Is(err, errUnchanged) {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("abandon sweep failed")
		}
		return false
	}

	participants := []string{updated.Participants[0], updated.Participants[1]}
	s.events.EmitSessionEvent(updated.ID, participants, EventOpponentAbandoned, abandonedPayload{
		SessionID: updated.ID,
		Winner:    updated.Winner,
	})
	s.notifyOffline(ctx, participants, domain.Notification{
		Type:  NotificationAbandoned,
		Title: "⚠️ Session expirée",
		Body:  "Votre adversaire a quitté.",
		Data:  map[string]string{"sessionId": updated.ID},
	})
	s.log.Info().Str("session_id", updated.ID).Interface("winner", updated.Winner).Msg("abandoned coop session expired")
	return true
}

func (s *CoopService) expireFinished(ctx context.Context, sessionID string, now time.Time) bool {
	_, err := s.sessions.Update(ctx, sessionID, func(cur *domain.CoopSession) error {
		if cur.Status != domain.StatusInProgress || !cur.ResultsComplete() || now.Before(cur.ExpiresAt) {
			return errUnchanged
		}
		cur.Status = domain.StatusExpired
		cur.UpdatedAt = now
		return nil
	})
	return err == nil
}

func (s *CoopService) expireLazily(ctx context.Context, sessionID string) bool {
	changed := false
	_, err := s.sessions.Update(ctx, sessionID, func(cur *domain.CoopSession) error {
		changed = false
		now := s.now()
		if !cur.ExpireIfTimedOut(now) {
			return errUnchanged
		}
		cur.UpdatedAt = now
		changed = true
		return nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("lazy expiry failed")
	}
	return err == nil && changed
}

// load reads a session for a participant, applying lazy expiry.
func (s *CoopService) load(ctx context.Context, sessionID, userID string) (*domain.CoopSession, error) {
	userID = strings.TrimSpace(userID)
	if err := validateIDs(sessionID, userID); err != nil {
		return nil, err
	}
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, domain.Transient(err)
	}
	if !session.IsParticipant(userID) {
		return nil, domain.ErrNotParticipant
	}
	if session.TimedOut(s.now()) {
		s.expireLazily(ctx, sessionID)
		if session, err = s.sessions.Get(ctx, sessionID); err != nil {
			return nil, domain.Transient(err)
		}
	}
	return session, nil
}

// mutate runs fn inside an atomic repository update after the participant and lazy-expiry checks.
// A session found timed out is persisted as expired and reported as closed.
func (s *CoopService) mutate(ctx context.Context, sessionID, userID string, fn func(cur *domain.CoopSession, now time.Time) error) (*domain.CoopSession, error) {
	userID = strings.TrimSpace(userID)
	if err := validateIDs(sessionID, userID); err != nil {
		return nil, err
	}
	expired := false
	updated, err := s.sessions.Update(ctx, sessionID, func(cur *domain.CoopSession) error {
		if !cur.IsParticipant(userID) {
			return domain.ErrNotParticipant
		}
		now := s.now()
		expired = false
		if cur.ExpireIfTimedOut(now) {
			expired = true
			cur.UpdatedAt = now
			return nil
		}
		if err := fn(cur, now); err != nil {
			return err
		}
		cur.UpdatedAt = now
		return nil
	})
	if errors.Is(err, errUnchanged) {
		updated, err = s.sessions.Get(ctx, sessionID)
	}
	if err != nil {
		return nil, domain.Transient(err)
	}
	if expired {
		return nil, domain.ErrSessionClosed
	}
	return updated, nil
}

func (s *CoopService) notifyOffline(ctx context.Context, userIDs []string, n domain.Notification) {
	ctx = context.WithoutCancel(ctx)
	for _, userID := range userIDs {
		if s.events.IsOnline(userID) {
			continue
		}
		n.UserID = userID
		n.CreatedAt = s.now()
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Str("type", n.Type).Msg("offline notification failed")
		}
	}
}

func validateIDs(sessionID, userID string) error {
	if userID == "" {
		return domain.ErrInvalidID
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return domain.ErrInvalidID
	}
	return nil
}

type discardAnswers struct{}

func (discardAnswers) Append(context.Context, []domain.CoopAnswer) error { return nil }

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, domain.Notification) error { return nil }

type silentEmitter struct{}

func (silentEmitter) EmitSessionEvent(string, []string, string, any) bool { return false }
func (silentEmitter) SendSnapshot(string, string, any)                    {}
func (silentEmitter) IsOnline(string) bool                                { return false }
