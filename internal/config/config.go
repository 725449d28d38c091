package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	RabbitMQ struct {
		URL   string `yaml:"url"`
		Queue string `yaml:"queue"`
	} `yaml:"rabbitmq"`
	Telegram struct {
		Token string `yaml:"token"`
		Debug bool   `yaml:"debug"`
	} `yaml:"telegram"`
	Quiz struct {
		TTL             string `yaml:"ttl"`
		QuestionsFile   string `yaml:"questions_file"`
		QuestionCount   int    `yaml:"question_count"`
		Distractors     int    `yaml:"distractors"`
		AnswerTimeout   string `yaml:"answer_timeout"`
		LeaderboardSize int    `yaml:"leaderboard_size"`
		// Transport selects the chat surface: "websocket" (default) or "telegram".
		Transport string `yaml:"transport"`
	} `yaml:"quiz"`
}

// Load reads YAML config from path, then applies environment overrides.
// A missing file is not an error when the environment carries the settings.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	case !os.IsNotExist(err):
		return cfg, err
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	override(&c.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	override(&c.Postgres.URL, "POSTGRES_URL")
	override(&c.Redis.Addr, "REDIS_ADDR")
	override(&c.Redis.Password, "REDIS_PASSWORD")
	override(&c.RabbitMQ.URL, "RABBITMQ_URL")
	override(&c.SQLite.Path, "SQLITE_PATH")
	override(&c.Quiz.Transport, "QUIZ_TRANSPORT")
}

func override(field *string, key string) {
	if v := os.Getenv(key); v != "" {
		*field = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
