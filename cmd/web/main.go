package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ask-kyra/internal/app"
	"ask-kyra/internal/config"
	"ask-kyra/internal/logging"
	"ask-kyra/internal/scheduler"
	"ask-kyra/internal/web"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("cannot create config: %v", err)
	}

	zapLogger, err := logging.NewZap(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("cannot create logger: %v", err)
	}
	logger := logging.New(zapLogger)
	defer logger.Sync()
	ctx = logging.ContextWithLogger(ctx, logger)

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(ctx, "cannot build services", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error(ctx, "close storage", zap.Error(err))
		}
	}()

	handler := web.NewHandler(a.Desk, cfg.MaxUploadBytes)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           web.NewRouter(handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		// advice calls can take up to AdviceTimeout per attempt
		WriteTimeout: cfg.AdviceTimeout*time.Duration(cfg.AdviceRetries+1) + 30*time.Second,
	}

	sched := scheduler.New(cfg.DigestCron, logger)
	sched.SetReportFunction(a.Desk.SendDigest)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(gctx, "starting server", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(gctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "server stopped with error", zap.Error(err))
		return
	}
	logger.Info(ctx, "server stopped")
}
