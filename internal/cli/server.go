package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"medy-coop-service/internal/config"
	"medy-coop-service/internal/infra/postgres"
	infraredis "medy-coop-service/internal/infra/redis"
	"medy-coop-service/internal/logger"
	transport "medy-coop-service/internal/transport/http"
	"medy-coop-service/internal/worker"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the coop server, sweeper and push worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := wire(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.close()

	var workers sync.WaitGroup
	sweeper := worker.NewSweeper(rt.service, config.TTLDuration(cfg.Coop.SweepInterval, worker.DefaultSweepInterval), log)
	workers.Add(1)
	go func() {
		defer workers.Done()
		sweeper.Start(ctx)
	}()

	if rt.redis != nil {
		var sender worker.Sender = worker.NewLogSender(log)
		if rt.pool != nil {
			sender = postgres.NewNotificationStore(rt.pool)
		}
		pushWorker := worker.NewPushWorker(rt.redis, infraredis.PushQueueKey, sender, log)
		workers.Add(1)
		go func() {
			defer workers.Done()
			pushWorker.Start(ctx)
		}()
	}

	sessionHandler := transport.NewSessionHandler(rt.service, log)
	wsHandler := transport.NewWSHandler(rt.service, rt.hub, log, transport.WSOptions{
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
		Heartbeat:      config.TTLDuration(cfg.Realtime.Heartbeat, 30*time.Second),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	sessionHandler.Register(mux)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting coop service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	workers.Wait()
	return err
}
