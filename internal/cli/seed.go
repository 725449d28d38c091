package cli

import (
	"context"
	"fmt"
	"log"

	"chat-quiz-bot/internal/config"
	"chat-quiz-bot/internal/infra/memory"
	"chat-quiz-bot/internal/infra/postgres"
	redisinfra "chat-quiz-bot/internal/infra/redis"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewSeedCmd loads a YAML question file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load questions from a YAML file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.Quiz.QuestionsFile
			}
			return seedQuestions(cmd.Context(), cfg, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "question YAML file (defaults to quiz.questions_file)")
	return cmd
}

func seedQuestions(ctx context.Context, cfg config.Config, file string) error {
	if file == "" {
		return fmt.Errorf("no question file given")
	}
	items, err := memory.ReadQuestionFile(file)
	if err != nil {
		return err
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.NewQuestionLoader(pool).UpsertQuestions(ctx, items); err != nil {
		return err
	}
	log.Printf("seed: upserted %d questions from %s", len(items), file)

	if cfg.Redis.Addr != "" {
		client := newRedisClient(cfg)
		defer client.Close()
		cache := redisinfra.NewQuestionPool(client, nil, 0)
		if err := cache.Invalidate(ctx); err != nil {
			log.Printf("seed: invalidate question cache: %v", err)
		}
	}
	return nil
}

func newRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
