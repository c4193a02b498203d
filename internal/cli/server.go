package cli

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"quiz-progression-service/internal/app"
	"quiz-progression-service/internal/config"
	"quiz-progression-service/internal/domain"
	"quiz-progression-service/internal/infra/memory"
	pginfra "quiz-progression-service/internal/infra/postgres"
	redisinfra "quiz-progression-service/internal/infra/redis"
	"quiz-progression-service/internal/logging"
	transport "quiz-progression-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz progression server",
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
	log := logging.New(cfg.Logging.Mode, cfg.Logging.File)
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	var bunDB *bun.DB
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bunDB = bun.NewDB(sqldb, pgdialect.New())
		defer bunDB.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pginfra.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	svcCfg := app.ServiceConfig{
		Quizzes:  quizRepo,
		Sessions: memory.NewSessionStore(),
		Notifier: app.NewLogNotifier(log),
		Logger:   log,
	}
	if redisClient != nil {
		svcCfg.Cache = redisinfra.NewResultCache(redisClient, log)
		svcCfg.LocalLedger = redisinfra.NewLedger(redisClient)
	} else {
		svcCfg.Cache = memory.NewResultCache()
		svcCfg.LocalLedger = memory.NewLedger()
	}
	if bunDB != nil {
		store := pginfra.NewResultStore(bunDB)
		svcCfg.Stats = store
		svcCfg.RemoteLedger = store
	}
	service := app.NewProgressionService(svcCfg)
	wsHandler := transport.NewWSHandler(service, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting quiz progression service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes seeds a demo catalog for running without Postgres.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:         "quiz-1",
			Title:      "Arithmetic basics",
			Category:   "math",
			Difficulty: domain.DifficultyBeginner,
			Questions: []domain.Question{
				{
					ID:           "q1",
					Prompt:       "What is 2 + 2?",
					Options:      []string{"3", "4", "5", "6"},
					CorrectIndex: 1,
					Points:       60,
					TimeLimitSec: 30,
					Explanation:  "Two plus two is four.",
					Tip:          "Count it out on your fingers if unsure.",
				},
				{
					ID:           "q2",
					Prompt:       "What is 9 / 3?",
					Options:      []string{"2", "3", "4", "6"},
					CorrectIndex: 1,
					Points:       40,
					TimeLimitSec: 20,
					Explanation:  "Nine divided by three is three.",
				},
			},
		},
	}
}
