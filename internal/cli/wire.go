package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"medy-coop-service/internal/app"
	"medy-coop-service/internal/config"
	"medy-coop-service/internal/domain"
	"medy-coop-service/internal/infra/memory"
	"medy-coop-service/internal/infra/postgres"
	infraredis "medy-coop-service/internal/infra/redis"
	"medy-coop-service/internal/realtime"
)

// runtime holds the wired service and the connections it owns.
type runtime struct {
	cfg     config.Config
	log     zerolog.Logger
	redis   *redis.Client
	pool    *pgxpool.Pool
	bus     realtime.Bus
	hub     *realtime.Hub
	service *app.CoopService
}

// wire picks Redis and Postgres adapters when configured and falls back to in-memory stores.
func wire(ctx context.Context, cfg config.Config, log zerolog.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, log: log}

	if cfg.Redis.Addr != "" {
		rt.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rt.redis.Ping(ctx).Err(); err != nil {
			rt.close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		rt.pool = pool
	}

	var (
		questions app.QuestionRepository
		answers   app.AnswerLog
		sessions  app.SessionRepository
		notifier  app.Notifier
		friends   app.FriendshipChecker
		users     app.UserDirectory
	)
	if rt.pool != nil {
		dir := postgres.NewDirectory(rt.pool)
		questions = postgres.NewQuestionStore(rt.pool)
		answers = postgres.NewAnswerLog(rt.pool)
		sessions = postgres.NewSessionStore(rt.pool)
		friends, users = dir, dir
	} else {
		dir := memory.NewDirectory()
		dir.AddFriendship("demo-1", "demo-2")
		questions = memory.NewQuestionBank(demoQuestions())
		answers = memory.NewAnswerLog()
		sessions = memory.NewSessionStore()
		friends, users = dir, dir
		log.Warn().Msg("postgres not configured, using in-memory stores with demo data")
	}

	sampleTTL := config.TTLDuration(cfg.Coop.SampleCacheTTL, 60*time.Second)
	if rt.redis != nil {
		questions = infraredis.NewSampleCache(rt.redis, questions, sampleTTL)
		sessions = infraredis.NewSessionStore(rt.redis, config.TTLDuration(cfg.Redis.Retention, time.Hour))
		notifier = infraredis.NewPushQueue(rt.redis)
	} else {
		questions = memory.NewSampleCache(questions, sampleTTL)
		notifier = memory.NewInbox()
	}

	rt.hub = realtime.NewHub(log, realtime.Options{
		ThrottleWindow: config.TTLDuration(cfg.Realtime.ThrottleWindow, 10*time.Second),
		Retries:        cfg.Realtime.Retries,
		RetryBase:      config.TTLDuration(cfg.Realtime.RetryBase, 100*time.Millisecond),
	})
	if rt.redis != nil {
		bus := infraredis.NewEventBus(rt.redis, infraredis.DefaultEventChannel, log)
		if err := rt.hub.UseBus(ctx, bus); err != nil {
			rt.close()
			return nil, fmt.Errorf("event bus: %w", err)
		}
		rt.bus = bus
		presence := infraredis.NewPresence(rt.redis, infraredis.DefaultPresenceTTL)
		rt.hub.UsePresence(ctx, presence, presence.TTL()/3)
	}

	rt.service = app.NewCoopService(app.Dependencies{
		Sessions:  sessions,
		Questions: questions,
		Answers:   answers,
		Friends:   friends,
		Users:     users,
		Events:    rt.hub,
		Notifier:  notifier,
		Logger:    log,
	}, app.WithInactivityThreshold(config.TTLDuration(cfg.Coop.InactivityThreshold, app.DefaultInactivityThreshold)))
	return rt, nil
}

func (rt *runtime) close() {
	if rt.hub != nil {
		rt.hub.Wait()
	}
	if rt.bus != nil {
		_ = rt.bus.Close()
	}
	if rt.pool != nil {
		rt.pool.Close()
	}
	if rt.redis != nil {
		_ = rt.redis.Close()
	}
}

// demoQuestions seeds the in-memory bank when no question store is configured.
func demoQuestions() []domain.Question {
	prompts := []struct {
		prompt  string
		options []string
		correct []int
	}{
		{"Quel os forme le talon ?", []string{"Calcanéus", "Talus", "Cuboïde", "Naviculaire"}, []int{0}},
		{"Quelle artère irrigue le cœur ?", []string{"Coronaire", "Carotide", "Fémorale"}, []int{0}},
		{"Hormones sécrétées par le pancréas ?", []string{"Insuline", "Glucagon", "Cortisol", "Thyroxine"}, []int{0, 1}},
		{"Nerf crânien de l'odorat ?", []string{"I", "II", "V", "VII"}, []int{0}},
		{"Organe producteur de bile ?", []string{"Foie", "Vésicule", "Rate"}, []int{0}},
		{"Cellules de l'immunité adaptative ?", []string{"Lymphocytes B", "Lymphocytes T", "Hématies"}, []int{0, 1}},
	}
	out := make([]domain.Question, 0, len(prompts))
	for i, p := range prompts {
		out = append(out, domain.Question{
			ID:            fmt.Sprintf("demo-q%d", i+1),
			Prompt:        p.prompt,
			Options:       p.options,
			CorrectAnswer: p.correct,
			Speciality:    "medecine",
		})
	}
	return out
}
