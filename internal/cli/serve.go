package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignatij/taskflow/internal/config"
	internal_http "github.com/ignatij/taskflow/internal/http"
	"github.com/ignatij/taskflow/internal/log"
	"github.com/ignatij/taskflow/internal/notify"
	"github.com/ignatij/taskflow/pkg/service"
	"github.com/spf13/cobra"
)

// SetupServe registers the serve and token commands.
func SetupServe(rootCmd *cobra.Command) {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load()
			if err != nil {
				fail("invalid configuration: %v", err)
			}
			if port, _ := cmd.Flags().GetString("port"); port != "" {
				cfg.HTTPPort = port
			}
			if cfg.JWTSecret == "" {
				fail("JWT_SECRET is required")
			}
			log.SetLevel(cfg.LogLevel)
			if err := serve(cmd, cfg); err != nil {
				log.GetLogger().Errorf("Server failed: %v", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("port", "", "HTTP port (defaults to HTTP_PORT or 8080)")

	tokenCmd := &cobra.Command{
		Use:   "token [userId]",
		Short: "Issue a bearer token for a user (development only)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load()
			if err != nil {
				fail("invalid configuration: %v", err)
			}
			if cfg.JWTSecret == "" {
				fail("JWT_SECRET is required")
			}
			ttl, _ := cmd.Flags().GetDuration("ttl")
			token, err := internal_http.IssueToken([]byte(cfg.JWTSecret), args[0], ttl)
			if err != nil {
				fail("failed to sign token: %v", err)
			}
			fmt.Fprintln(os.Stdout, token)
		},
	}
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")

	rootCmd.AddCommand(serveCmd, tokenCmd)
}

func serve(cmd *cobra.Command, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := initStore(dbConnStr(cmd, cfg))
	defer store.Close()

	// Deliveries outlive the request context, so the pool runs on Background.
	dispatcher := notify.NewDispatcher(context.Background(), notify.StoreSink{Store: store}, log.GetLogger())
	dispatcher.Start(cfg.NotifyWorkers, cfg.NotifyQueueSize)
	defer dispatcher.Stop()

	svc := service.NewTaskService(store, store, dispatcher, log.GetLogger())
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           internal_http.NewRouter(svc, store, []byte(cfg.JWTSecret)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.GetLogger().Infof("Starting taskflow server on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.GetLogger().Infof("Shutting down: %v", ctx.Err())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
