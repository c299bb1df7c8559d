package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rafacovez/notify/internal/reconcile"
	"github.com/rafacovez/notify/internal/server"
	"github.com/rafacovez/notify/internal/shared"
	"github.com/rafacovez/notify/internal/spotify"
	"github.com/rafacovez/notify/internal/store"
	"github.com/rafacovez/notify/internal/telegram"
	"github.com/rafacovez/notify/internal/tracker"
	"github.com/urfave/cli/v3"
)

// Serve wires and runs the three long-lived pieces: the Telegram bot, the
// OAuth callback server and the reconciliation loop. It blocks until
// interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd.String("config"))
	if err := config.Validate(); err != nil {
		return err
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	st := store.New(db,
		store.WithBackupPath(config.Database.BackupPath),
		store.WithLogger(r.logger),
	)

	client := spotify.NewClient(spotify.WithLogger(r.logger))
	tokens := spotify.NewTokenManager(
		config.Spotify.ClientID,
		config.Spotify.ClientSecret,
		config.Spotify.RedirectURI,
		st, r.logger,
	)
	registry := tracker.NewRegistry(st, client)
	states := server.NewStateStore()

	bot, err := telegram.New(config.Telegram.BotToken, telegram.Options{
		Store:    st,
		Client:   client,
		Tokens:   tokens,
		Registry: registry,
		States:   states,
		PageSize: config.Reconciler.PageSize,
		Logger:   r.logger,
	})
	if err != nil {
		return err
	}

	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(server.NewOAuthHandler(states, tokens, client, st, bot, r.logger))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler: router,
	}

	loop := reconcile.NewLoop(st, tokens, client, bot,
		time.Duration(config.Reconciler.IntervalMinutes)*time.Minute, r.logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.logger.Info("starting OAuth callback server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		bot.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.Run(ctx)
	}()

	select {
	case err = <-serverErrors:
		err = fmt.Errorf("server error: %w", err)
		stop()
	case <-ctx.Done():
		r.logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		r.logger.Warn("error shutting down server", "error", shutdownErr)
	}

	wg.Wait()
	return err
}
