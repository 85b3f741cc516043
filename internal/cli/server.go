package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exam-attempt-service/internal/app"
	"exam-attempt-service/internal/attempt"
	"exam-attempt-service/internal/backend"
	"exam-attempt-service/internal/config"
	"exam-attempt-service/internal/infra/memory"
	pgarchive "exam-attempt-service/internal/infra/postgres"
	"exam-attempt-service/internal/infra/rabbit"
	redisinfra "exam-attempt-service/internal/infra/redis"
	"exam-attempt-service/internal/logger"
	transport "exam-attempt-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the attempt gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8081"
	}

	client := backend.NewClient(cfg.Backend.URL, config.TTLDuration(cfg.Backend.Timeout, 10*time.Second))

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	sessionTTL := config.TTLDuration(cfg.Attempt.SessionTTL, 24*time.Hour)

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var (
		quizRepo app.QuizRepository
		store    app.SessionRepository
		journal  attempt.Journal
	)
	routerOp := transport.RouterOptions{AllowedOrigins: cfg.Server.AllowedOrigins}
	if redisClient != nil {
		redisStore := redisinfra.NewSessionStore(redisClient, redisTTL)
		quizRepo = redisinfra.NewQuizRepository(redisClient, client, quizTTL)
		store = redisStore
		journal = redisinfra.NewJournal(redisClient, sessionTTL)
		routerOp.LiveAttempts = redisStore.Live
	} else {
		quizRepo = memory.NewQuizRepository(client, quizTTL)
		store = memory.NewSessionStore()
		journal = memory.NewJournal()
	}

	opts := []app.Option{app.WithJournal(journal)}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		opts = append(opts, app.WithArchive(pgarchive.NewAttemptArchive(pool)))
	}

	if cfg.RabbitMQ.URL != "" {
		publisher, err := rabbit.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		opts = append(opts, app.WithPublisher(publisher))
	}

	service := app.NewAttemptService(store, quizRepo, client, attempt.Settings{
		PageSize:           cfg.Attempt.PageSize,
		MinutesPerQuestion: cfg.Attempt.MinutesPerQuestion,
	}, opts...)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(service, routerOp),
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Str("backend", cfg.Backend.URL).Msg("starting attempt gateway")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
