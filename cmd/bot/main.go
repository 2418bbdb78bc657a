package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"racebot/internal/app"
	"racebot/internal/archive"
	"racebot/internal/boards"
	"racebot/internal/chat"
	"racebot/internal/commands"
	"racebot/internal/config"
	"racebot/internal/logger"
	"racebot/internal/registry"
	"racebot/internal/scheduler"
	"racebot/internal/server"
	"racebot/internal/sheets"
	"racebot/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("race bot stopped")
	}
	log.Info().Msg("bye")
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	boardCfgs, err := config.LoadBoards(cfg.BoardsFile)
	if err != nil {
		return err
	}

	platform, err := newPlatform(cfg, log)
	if err != nil {
		return err
	}

	backend, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()
	raceStore, err := backend.Store(store.NamespaceRaces)
	if err != nil {
		return err
	}
	boardStore, err := backend.Store(store.NamespaceBoards)
	if err != nil {
		return err
	}

	archiver, err := newArchiver(ctx, cfg)
	if err != nil {
		return err
	}

	a := &app.App{
		Config:   cfg,
		Platform: platform,
		Races:    raceStore,
		Boards:   boardStore,
		Notifier: chat.NewOperatorNotifier(platform, cfg.OperatorUserID, log),
		Archiver: archiver,
		Log:      log,
	}

	reg := registry.New(a)
	n, err := reg.Restore(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("races", n).Msg("races restored")

	boardSvc := boards.NewService(a, boardCfgs)
	if err := boardSvc.Load(ctx); err != nil {
		return err
	}

	sched, err := scheduler.New(cfg.SchedulerSpec, reg, a.Notifier, a.Logger("scheduler"))
	if err != nil {
		return err
	}
	router := commands.NewRouter(a, reg, boardSvc)
	httpSrv := server.New(cfg.HTTPAddr, reg, cfg.ExportSecret, a.Logger("http"))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Str("platform", platform.Name()).Msg("listening for commands")
		return platform.Listen(gCtx, router.Handle)
	})

	g.Go(func() error {
		sched.Start()
		// A first scan catches races that came due while the bot was down.
		sched.Scan(gCtx)
		<-gCtx.Done()
		sched.Stop()
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		log.Info().Msg("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newArchiver collects the configured sinks for final results.
func newArchiver(ctx context.Context, cfg config.Config) (archive.Archiver, error) {
	var sinks archive.Multi
	if cfg.S3Enabled() {
		s3a, err := archive.NewS3Archiver(ctx, archive.S3Config{
			Bucket:          cfg.ArchiveS3Bucket,
			Endpoint:        cfg.ArchiveS3Endpoint,
			Region:          cfg.ArchiveS3Region,
			AccessKeyID:     cfg.ArchiveS3AccessKeyID,
			SecretAccessKey: cfg.ArchiveS3SecretAccessKey,
			Prefix:          cfg.ArchiveS3Prefix,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s3a)
	}
	if cfg.SheetsEnabled() {
		sh, err := sheets.New(ctx, cfg.GoogleServiceAccountJSON, cfg.SpreadsheetID)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, sh)
	}
	if len(sinks) == 0 {
		return archive.Nop{}, nil
	}
	return sinks, nil
}
