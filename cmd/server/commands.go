package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeshare/internal/api"
	"codeshare/internal/codegen"
	"codeshare/internal/config"
	"codeshare/internal/database"
	"codeshare/internal/service"
	"codeshare/internal/websocket"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "codeshare",
		Short:         "Share files and text under short codes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to settings.yml (default: ./configs or /configs)")

	load := func() (*config.Config, *logrus.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
		logger, err := newLogger(cfg.Log)
		if err != nil {
			return nil, nil, err
		}
		return cfg, logger, nil
	}

	run := func(fn func(ctx context.Context, cfg *config.Config, log *logrus.Logger, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			if err := fn(cmd.Context(), cfg, logger, args); err != nil {
				logger.WithError(err).Error("command failed")
				return err
			}
			return nil
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			Args:  cobra.NoArgs,
			RunE:  run(serve),
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the database schema",
			Args:  cobra.NoArgs,
			RunE:  run(migrate),
		},
		&cobra.Command{
			Use:   "promote <username>",
			Short: "Grant the admin role to an existing user",
			Args:  cobra.ExactArgs(1),
			RunE:  run(promote),
		},
	)
	return root
}

func serve(ctx context.Context, cfg *config.Config, log *logrus.Logger, _ []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := openRepositories(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer repos.close()

	content, err := openContentStore(cfg, log)
	if err != nil {
		return err
	}

	codes, err := codegen.New(codegen.DefaultLength)
	if err != nil {
		return err
	}

	wsHub := websocket.NewHub(log, cfg.Server.CORSOrigins)
	go wsHub.Run(ctx)

	server := api.NewServer(cfg, api.Services{
		Identity: service.NewIdentityService(repos.users, cfg.JWT.Secret, cfg.JWT.TTL, log),
		Shares:   service.NewShareService(repos.shares, content, codes, shareOptions(cfg.Shares), log),
		Stats:    service.NewStatsService(repos.users, repos.shares),
		Health:   repos.pinger,
	}, wsHub, log)

	srv := newHTTPServer(cfg.Server.Addr, server.Routes())

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func migrate(ctx context.Context, cfg *config.Config, log *logrus.Logger, _ []string) error {
	if cfg.DB.Driver != "postgres" {
		return fmt.Errorf("migrate needs the postgres driver, got %q", cfg.DB.Driver)
	}
	store, err := database.Connect(ctx, cfg.DB.Source)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	log.Info("schema applied")
	return nil
}

func promote(ctx context.Context, cfg *config.Config, log *logrus.Logger, args []string) error {
	if cfg.DB.Driver != "postgres" {
		return fmt.Errorf("promote needs the postgres driver, got %q", cfg.DB.Driver)
	}
	store, err := database.Connect(ctx, cfg.DB.Source)
	if err != nil {
		return err
	}
	defer store.Close()

	identity := service.NewIdentityService(store, cfg.JWT.Secret, cfg.JWT.TTL, log)
	user, err := identity.Promote(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s (id %d) is now an admin\n", user.Username, user.ID)
	return nil
}

// newHTTPServer bounds header reads and idle keep-alives only. /api requests
// get the router's request timeout; /ws connections have none.
func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
