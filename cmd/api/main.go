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

	"github.com/zhouzirui/z-blog/backend/internal/config"
	"github.com/zhouzirui/z-blog/backend/internal/feed"
	"github.com/zhouzirui/z-blog/backend/internal/handler"
	postservice "github.com/zhouzirui/z-blog/backend/internal/service/post"
	"github.com/zhouzirui/z-blog/backend/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	store := storage.NewFileStore(cfg.Storage.Path)
	log.Printf("[storage] posts file: %s", store.Path())

	var (
		hub    *feed.Hub
		events postservice.Publisher
	)
	if cfg.Feed.IsEnabled() {
		hub = feed.NewHub(cfg.Feed.Buffer)
		events = hub
		log.Printf("[feed] change feed enabled, buffer=%d", cfg.Feed.Buffer)
	} else {
		log.Println("[feed] change feed disabled by configuration")
	}

	postService := postservice.NewService(store, events)
	router := handler.NewRouter(postService, hub, cfg.Feed.Heartbeat())

	startServer(ctx, cfg.Server, router, hub)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, hub *feed.Hub) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if hub != nil {
		// Streaming connections would otherwise hold Shutdown open.
		srv.RegisterOnShutdown(hub.Close)
	}

	log.Printf("blog posts backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv, serverCfg.ShutdownTimeout()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
