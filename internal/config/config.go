package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	RedditClientID     string `env:"REDDIT_CLIENT_ID,required,notEmpty"`
	RedditClientSecret string `env:"REDDIT_CLIENT_SECRET,required,notEmpty"`
	RedditUsername     string `env:"REDDIT_USERNAME,required,notEmpty"`
	RedditPassword     string `env:"REDDIT_PASSWORD,required,notEmpty"`
	RedditUserAgent    string `env:"REDDIT_USER_AGENT"                  envDefault:"linux:titletoimagebot:v1.0"`

	ImgurClientID     string `env:"IMGUR_CLIENT_ID,required,notEmpty"`
	ImgurClientSecret string `env:"IMGUR_CLIENT_SECRET"`
	ImgurRefreshToken string `env:"IMGUR_REFRESH_TOKEN"`

	Subreddits          []string       `env:"SUBREDDITS,required,notEmpty"`
	OwnerName           string         `env:"OWNER_NAME"`
	SourceURL           string         `env:"SOURCE_URL"           envDefault:"https://github.com/gerenook/titletoimagebot"`
	ScoreThresholds     map[string]int `env:"SCORE_THRESHOLDS"     envDefault:"fakehistoryporn:500" envKeyValSeparator:":"`
	DelimitedSubreddits []string       `env:"DELIMITED_SUBREDDITS" envDefault:"boottoobig"`
	RhymeTriggers       []string       `env:"RHYME_TRIGGERS"       envDefault:",|;|roses"           envSeparator:"|"`

	Limit            int           `env:"LIMIT"              envDefault:"10"`
	Interval         time.Duration `env:"INTERVAL"           envDefault:"60s"`
	CycleTimeout     time.Duration `env:"CYCLE_TIMEOUT"      envDefault:"10m"`
	MaxRetryAttempts int           `env:"MAX_RETRY_ATTEMPTS" envDefault:"0"`

	DBPath   string     `env:"DB_PATH"   envDefault:"db.sqlite"`
	FontPath string     `env:"FONT_PATH"`
	TempDir  string     `env:"TEMP_DIR"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
}

func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Limit <= 0 {
		return Config{}, fmt.Errorf("LIMIT must be positive, got %d", cfg.Limit)
	}
	if cfg.Interval <= 0 {
		return Config{}, fmt.Errorf("INTERVAL must be positive, got %s", cfg.Interval)
	}
	if cfg.MaxRetryAttempts < 0 {
		return Config{}, fmt.Errorf("MAX_RETRY_ATTEMPTS must not be negative, got %d", cfg.MaxRetryAttempts)
	}

	return cfg, nil
}
