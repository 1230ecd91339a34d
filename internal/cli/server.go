package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"quiz-pipeline-service/internal/config"
	"quiz-pipeline-service/internal/retrieval"
	transport "quiz-pipeline-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the quiz pipeline server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
	cmd.Flags().StringVar(port, "port", "", "port to listen on (overrides config)")
	return cmd
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	s, err := buildStack(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	loadIndex(ctx, s.coord, log)
	if interval := config.TTLDuration(cfg.Retrieval.RefreshInterval, 0); interval > 0 {
		refresher, err := retrieval.StartRefresher(s.coord, interval, log)
		if err != nil {
			return err
		}
		defer func() { _ = refresher.Stop() }()
	}

	if cfg.Server.SeedDemoUsers {
		n, err := s.orch.SeedDemoUsers(ctx)
		if err != nil {
			log.Warn("demo user seeding failed", "error", err)
		} else {
			log.Info("demo users seeded", "created", n)
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	mux := http.NewServeMux()
	transport.NewAPI(s.orch, log).Register(mux)
	mux.HandleFunc("GET /ws", transport.NewWSHandler(s.orch, log).ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting quiz pipeline", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	case err := <-errCh:
		log.Error("server failed", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
