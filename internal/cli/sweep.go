package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"medy-coop-service/internal/config"
	"medy-coop-service/internal/logger"
	"medy-coop-service/internal/worker"
)

// NewSweepCmd runs the abandonment sweeper without serving traffic.
func NewSweepCmd(configPath *string) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire abandoned coop sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), *configPath, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single pass and exit")
	return cmd
}

func runSweep(ctx context.Context, configPath string, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := wire(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer rt.close()

	sweeper := worker.NewSweeper(rt.service, config.TTLDuration(cfg.Coop.SweepInterval, worker.DefaultSweepInterval), log)
	if once {
		expired := sweeper.RunOnce(ctx)
		log.Info().Int("expired", expired).Msg("sweep complete")
		return nil
	}
	sweeper.Start(ctx)
	return nil
}
