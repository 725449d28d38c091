package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"chat-quiz-bot/internal/app"
	"chat-quiz-bot/internal/config"
	"chat-quiz-bot/internal/domain"
	"chat-quiz-bot/internal/infra/memory"
	"chat-quiz-bot/internal/infra/postgres"
	"chat-quiz-bot/internal/infra/rabbitmq"
	redisinfra "chat-quiz-bot/internal/infra/redis"
	"chat-quiz-bot/internal/infra/sqlite"
	transport "chat-quiz-bot/internal/transport/http"
	"chat-quiz-bot/internal/transport/telegram"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

type backends struct {
	pool     app.QuestionPool
	progress app.ProgressStore
	names    app.NameStore
	sessions app.SessionRepository
	events   app.EventPublisher
	closers  []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
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

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	opts := []app.Option{app.WithSettings(settingsFrom(cfg))}
	if b.events != nil {
		opts = append(opts, app.WithPublisher(b.events))
	}

	var (
		service *app.QuizService
		router  http.Handler
		bot     *telegram.Bot
	)
	switch cfg.Quiz.Transport {
	case "telegram":
		api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return err
		}
		api.Debug = cfg.Telegram.Debug
		log.Printf("telegram: authorised on account %s", api.Self.UserName)

		service = app.NewQuizService(b.pool, b.progress, b.names, b.sessions, telegram.NewNotifier(api), opts...)
		bot = telegram.NewBot(api, api, service)
		router = transport.NewRouter(service, nil)
	default:
		hub := transport.NewHub()
		service = app.NewQuizService(b.pool, b.progress, b.names, b.sessions, hub, opts...)
		router = transport.NewRouter(service, transport.NewWSHandler(service, hub))
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("starting quiz bot on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if bot != nil {
		g.Go(func() error {
			log.Printf("telegram: polling for updates")
			return bot.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func settingsFrom(cfg config.Config) app.Settings {
	settings := app.DefaultSettings()
	if cfg.Quiz.QuestionCount > 0 {
		settings.QuestionCount = cfg.Quiz.QuestionCount
	}
	if cfg.Quiz.Distractors > 0 {
		settings.Distractors = cfg.Quiz.Distractors
	}
	if cfg.Quiz.LeaderboardSize > 0 {
		settings.LeaderboardSize = cfg.Quiz.LeaderboardSize
	}
	settings.AnswerTimeout = config.TTLDuration(cfg.Quiz.AnswerTimeout, settings.AnswerTimeout)
	return settings
}

// openBackends picks storage by what is configured: Postgres, then SQLite, then Redis, then memory.
// The question catalog comes from Postgres, a YAML file, or the built-in sample, and is cached
// in Redis when available.
func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = newRedisClient(cfg)
		b.closers = append(b.closers, func() { _ = redisClient.Close() })
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pgPool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pgPool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, pgPool.Close)
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	switch {
	case pgPool != nil:
		loader = postgres.NewQuestionLoader(pgPool)
	case cfg.Quiz.QuestionsFile != "":
		loader = memory.NewFileQuestionLoader(cfg.Quiz.QuestionsFile)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if redisClient != nil {
		b.pool = redisinfra.NewQuestionPool(redisClient, loader, quizTTL)
		b.sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		b.pool = memory.NewQuestionPool(loader, quizTTL)
		b.sessions = memory.NewSessionStore()
	}

	switch {
	case pgPool != nil:
		b.progress = postgres.NewProgressStore(pgPool)
		b.names = postgres.NewNameStore(pgPool)
	case cfg.SQLite.Path != "":
		store, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = store.Close() })
		b.progress, b.names = store, store
	case redisClient != nil:
		b.progress = redisinfra.NewProgressStore(redisClient)
		b.names = redisinfra.NewNameStore(redisClient)
	default:
		log.Printf("no durable store configured; progress is kept in memory")
		b.progress = memory.NewProgressStore()
		b.names = memory.NewNameStore()
	}

	if cfg.RabbitMQ.URL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		if err != nil {
			// completion events are optional; the quiz keeps working without them
			log.Printf("rabbitmq: %v", err)
		} else {
			b.events = publisher
			b.closers = append(b.closers, func() { _ = publisher.Close() })
		}
	}
	return b, nil
}

// sampleQuestions is the built-in catalog used when neither Postgres nor a question file is configured.
func sampleQuestions() []domain.QuizItem {
	return []domain.QuizItem{
		{ID: "ar-rahman", Prompt: "Ar-Rahman", CorrectMeaning: "The Beneficent"},
		{ID: "ar-rahim", Prompt: "Ar-Rahim", CorrectMeaning: "The Merciful"},
		{ID: "al-malik", Prompt: "Al-Malik", CorrectMeaning: "The King and Owner of Dominion"},
		{ID: "al-quddus", Prompt: "Al-Quddus", CorrectMeaning: "The Absolutely Pure"},
		{ID: "as-salam", Prompt: "As-Salam", CorrectMeaning: "The Source of Peace and Safety"},
		{ID: "al-mumin", Prompt: "Al-Mu'min", CorrectMeaning: "The Giver of Faith and Security"},
		{ID: "al-muhaymin", Prompt: "Al-Muhaymin", CorrectMeaning: "The Guardian, the Witness, the Overseer"},
		{ID: "al-aziz", Prompt: "Al-Aziz", CorrectMeaning: "The All Mighty"},
		{ID: "al-jabbar", Prompt: "Al-Jabbar", CorrectMeaning: "The Compeller, the Restorer"},
		{ID: "al-mutakabbir", Prompt: "Al-Mutakabbir", CorrectMeaning: "The Supreme, the Majestic"},
		{ID: "al-khaliq", Prompt: "Al-Khaliq", CorrectMeaning: "The Creator, the Maker"},
		{ID: "al-bari", Prompt: "Al-Bari'", CorrectMeaning: "The Originator"},
	}
}
