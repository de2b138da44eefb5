package main

import (
	"context"
	"errors"
	"fmt"
	oshttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"grouptalk/internal/api"
	"grouptalk/internal/chat"
	"grouptalk/internal/commands"
	"grouptalk/internal/config"
	"grouptalk/internal/http"
	"grouptalk/internal/log"
	"grouptalk/internal/storage"
	"grouptalk/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func run(ctx context.Context, configPath string) error {
	bootLogger := log.New("info")
	cfg, resolved, err := config.Load(bootLogger, configPath)
	if err != nil {
		return err
	}

	logger := log.New(cfg.LogLevel)
	logger.Info().Str("config", resolved).Str("store", cfg.Store.Driver).Msg("starting grouptalk")
	gin.SetMode(gin.ReleaseMode)

	store, err := storage.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	chatService := chat.NewService(store, chat.Config{
		DeliveryTimeout: cfg.Chat.DeliveryTimeout,
		LockStripes:     cfg.Chat.LockStripes,
		PresenceShards:  cfg.Chat.PresenceShards,
	}, logger)

	hub := ws.NewHub(chatService, logger)
	wsServer := ws.NewServer(hub, ws.Options{
		OutboundBuffer: cfg.Chat.OutboundBuffer,
		WriteTimeout:   cfg.Chat.DeliveryTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
	}, logger)

	adminServer := http.NewAdminServer(
		api.NewAdminHandler(chatService, cfg.BaseURL, logger),
		cfg.AdminAddr, cfg.ReadHeaderTimeout, logger)
	apiServer := http.NewAPIServer(
		api.New(chatService, logger), wsServer,
		cfg.APIAddr, cfg.ReadHeaderTimeout, logger)

	g, gCtx := errgroup.WithContext(ctx)

	// Start Admin Server
	g.Go(func() error {
		err := adminServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	// Start API Server
	g.Go(func() error {
		err := apiServer.Start()
		if err != nil && err != oshttp.ErrServerClosed {
			return err
		}
		return nil
	})

	// Wait for context cancellation (signal)
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("admin server shutdown error")
		}
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("API server shutdown error")
		}
		return nil
	})

	return g.Wait()
}

func newRootCmd() *cobra.Command {
	var configPath string

	serve := func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), configPath)
	}

	root := &cobra.Command{
		Use:           "grouptalk",
		Short:         "Group chat server with live message delivery",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./grouptalk.yaml)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the API and admin servers",
		Args:  cobra.NoArgs,
		RunE:  serve,
	})

	root.AddCommand(&cobra.Command{
		Use:   "add-user <username>",
		Short: "Register a user through the admin API of a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := config.Load(log.New("warn"), configPath)
			if err != nil {
				return err
			}
			return commands.AddUser(cmd.Context(), cmd.OutOrStdout(), args[0], cfg)
		},
	})

	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}
