package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/venue-registry/internal/api"
	"github.com/sells-group/venue-registry/internal/intake"
	"github.com/sells-group/venue-registry/internal/media"
	"github.com/sells-group/venue-registry/internal/schema"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the submission API server",
	Long:  "Serves intake, review, promotion, media and place reads. Optionally runs the queue reconciler and the media retention sweep in the background. SIGHUP drops cached schema capabilities.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, afero.NewOsFs())
		if err != nil {
			return err
		}
		defer env.Close()

		go watchHangup(ctx, env.Negotiator)
		startBackground(ctx, env)

		handler := api.NewRouter(apiConfig(), apiDeps(env))
		return startServer(ctx, handler, resolvePort(servePort, cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// resolvePort prefers the flag value over config.
func resolvePort(flag, configured int) int {
	if flag != 0 {
		return flag
	}
	return configured
}

func apiConfig() api.Config {
	return api.Config{
		AdminTokens:     cfg.Admin.Tokens,
		CORSOrigins:     cfg.Server.CORSOrigins,
		IntakePerMinute: cfg.Server.IntakePerMinute,
		MaxUploadBytes:  int64(cfg.Server.MaxUploadMB) << 20,
	}
}

// apiDeps leaves the admin services unset when there is no primary store.
func apiDeps(env *appEnv) api.Deps {
	d := api.Deps{
		Intake:  env.Intake,
		Places:  env.Places,
		Media:   env.Media,
		Metrics: env.Metrics,
	}
	if env.Submissions != nil {
		d.Reviews = env.Submissions
	}
	if env.Promoter != nil {
		d.Promoter = env.Promoter
	}
	return d
}

// startServer serves handler on port until ctx is done, then shuts down
// gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- eris.Wrap(err, "server listen")
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return <-errCh
}

// watchHangup invalidates cached capabilities on every SIGHUP.
func watchHangup(ctx context.Context, n *schema.Negotiator) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			n.Invalidate()
			zap.L().Info("schema capability cache invalidated")
		}
	}
}

// startBackground launches the reconciler and the retention loop when they
// have something to work with.
func startBackground(ctx context.Context, env *appEnv) {
	if env.Queue != nil && env.Submissions != nil {
		rec := intake.NewReconciler(reconcileConfig(cfg), env.Queue, env.Submissions, env.Guard, env.Metrics)
		go rec.Run(ctx)
	}
	if cfg.Retention.IntervalHours > 0 && env.Pool != nil {
		sweeper := media.NewSweeper(env.Objects, env.Pool, env.Negotiator, env.Submissions).WithMetrics(env.Metrics)
		go runRetention(ctx, sweeper, time.Duration(cfg.Retention.IntervalHours)*time.Hour, sweepConfig(cfg.Retention.Execute))
	}
}

func runRetention(ctx context.Context, s *media.Sweeper, every time.Duration, sc media.SweepConfig) {
	log := zap.L().With(zap.String("component", "retention"))
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, sc); err != nil {
				log.Error("retention sweep failed", zap.Error(err))
			}
		}
	}
}
