package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quiz-competition-service/internal/app"
	"quiz-competition-service/internal/config"
	"quiz-competition-service/internal/domain"
	"quiz-competition-service/internal/infra/memory"
	pgloader "quiz-competition-service/internal/infra/postgres"
	redisinfra "quiz-competition-service/internal/infra/redis"
	transport "quiz-competition-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz competition server",
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
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.BankLoader = memory.NewStaticBankLoader(sampleBanks())
	if pool != nil {
		loader = pgloader.NewBankLoader(pool)
	}

	bankTTL := config.Duration(cfg.Quiz.BankTTL, 10*time.Minute)
	var banks app.BankProvider
	if redisClient != nil {
		banks = redisinfra.NewBankCache(redisClient, loader, bankTTL)
	} else {
		banks = memory.NewBankCache(loader, bankTTL)
	}

	var answers app.AnswerStore
	var results app.ResultStore
	if redisClient != nil {
		answers = redisinfra.NewAnswerStore(redisClient)
		results = redisinfra.NewResultStore(redisClient)
	} else {
		answers = memory.NewAnswerStore()
		results = memory.NewResultStore()
	}

	questionDuration := config.Duration(cfg.Quiz.QuestionDuration, 60*time.Second)
	service := app.NewCompetitionService(banks, answers, results, app.Options{
		BankID:           cfg.Quiz.BankID,
		QuestionDuration: int(questionDuration / time.Second),
	})
	wsHandler := transport.NewWSHandler(service)

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
		log.Printf("starting quiz competition service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleBanks provides a minimal question bank; swap the loader with the
// Postgres-backed one in production.
func sampleBanks() map[string]domain.QuestionBank {
	return map[string]domain.QuestionBank{
		"default": {
			ID: "default",
			Questions: []domain.Question{
				{
					ID:   "q1",
					Text: "What is 2 + 2?",
					Options: []domain.Option{
						{Label: domain.OptionA, Text: "3"},
						{Label: domain.OptionB, Text: "4"},
						{Label: domain.OptionC, Text: "5"},
						{Label: domain.OptionD, Text: "22"},
					},
					CorrectOption: domain.OptionB,
				},
				{
					ID:   "q2",
					Text: "Which planet is closest to the sun?",
					Options: []domain.Option{
						{Label: domain.OptionA, Text: "Venus"},
						{Label: domain.OptionB, Text: "Earth"},
						{Label: domain.OptionC, Text: "Mercury"},
						{Label: domain.OptionD, Text: "Mars"},
					},
					CorrectOption: domain.OptionC,
				},
			},
		},
	}
}
