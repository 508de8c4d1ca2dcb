package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/deepgram/chatroom/internal/api/v1/handlers"
	"github.com/deepgram/chatroom/internal/config"
	"github.com/deepgram/chatroom/internal/services"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = config.GetPort()
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, ":"+port)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "5002", "Port to listen on (defaults to $PORT)")
	return cmd
}

func runServe(ctx context.Context, addr string) error {
	svc, err := services.InitializeServices()
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close services")
		}
	}()

	server := &http.Server{
		Addr:              addr,
		Handler:           handlers.NewRouter(svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		log.Info().Str("addr", addr).Msg("Starting bot server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server listen error")
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down bot server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
