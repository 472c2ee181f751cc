package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/feeta/feeta/internal/config"
	"github.com/feeta/feeta/internal/stubapi"
	"github.com/feeta/feeta/pkg/storage"
)

var (
	app  = kingpin.New("feeta-stub", "Local stand-in for the feeta dashboard API")
	seed = app.Flag("seed", "Create a demo project when the store is empty").Default("true").Bool()
	port = app.Flag("port", "Port to listen on (overrides FEETA_HTTP_PORT)").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	env, err := config.LoadStubEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(env.NewLogger(os.Stderr))
	if *port != "" {
		env.HTTPPort = *port
	}

	var store storage.Storage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(context.Background(), env.S3Bucket, env.S3Prefix, env.S3Region)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		store, err = storage.NewLocalStorage(env.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
	}

	repo := stubapi.NewRepository(store)
	if *seed {
		if err := stubapi.Seed(context.Background(), repo, time.Now()); err != nil {
			slog.Error("failed to seed demo data", "error", err)
			os.Exit(1)
		}
	}

	srv, err := stubapi.NewServer(&env.StubEnv, repo)
	if err != nil {
		slog.Error("invalid channel configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
