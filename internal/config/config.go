package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string `env:"TOKEN,required"`
		DefaultLanguage  string `env:"LANG,default=fa"`
		LogLevel         int    `env:"LOG_LEVEL,default=4"`
		DotPath          string `env:"DOT_PATH,default=~/.ngwarden"`
		Workers          int    `env:"WORKERS,default=8"`
		Telegram         Telegram
		DB               DB
		Moderation       Moderation
		Review           Review
		Classifier       Classifier
		Observability    Observability
	}

	Telegram struct {
		Timeout time.Duration `env:"TELEGRAM_TIMEOUT,default=15s"`
		RPS     float64       `env:"TELEGRAM_RPS,default=25"`
	}

	DB struct {
		Driver string `env:"DB_DRIVER,default=sqlite"`
		DSN    string `env:"DB_DSN,default=warden.db"`
	}

	Moderation struct {
		WarnThreshold int           `env:"WARN_THRESHOLD,default=3"`
		PunishMode    string        `env:"PUNISH_MODE,default=restrict"`
		NoticeTTL     time.Duration `env:"NOTICE_TTL,default=5s"`
		SeedWords     bool          `env:"SEED_WORDS,default=true"`
	}

	Review struct {
		ReviewerID      int64         `env:"REVIEWER_ID"`
		NoticeTTL       time.Duration `env:"REVIEW_NOTICE_TTL,default=30s"`
		PendingBackend  string        `env:"PENDING_BACKEND,default=memory"`
		RedisURL        string        `env:"REDIS_URL"`
		MaxScanBytes    int64         `env:"MAX_SCAN_BYTES,default=10485760"`
		ClassifyTimeout time.Duration `env:"CLASSIFIER_TIMEOUT,default=8s"`
	}

	Classifier struct {
		Type    string `env:"CLASSIFIER_TYPE,default=gemini"`
		APIKey  string `env:"CLASSIFIER_API_KEY"`
		Model   string `env:"CLASSIFIER_MODEL"`
		BaseURL string `env:"CLASSIFIER_URL,default=https://api.openai.com/v1"`
	}

	Observability struct {
		MetricsAddr string `env:"METRICS_ADDR,default=:2112"`
		AuditLog    string `env:"AUDIT_LOG"`
	}
)

const (
	PunishModeRestrict = "restrict"
	PunishModeBan      = "ban"

	PendingBackendMemory = "memory"
	PendingBackendSQL    = "sql"
	PendingBackendRedis  = "redis"
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg, err := Process(context.Background(), envconfig.OsLookuper())
		if err != nil {
			globalErr = err
			return
		}
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

// Process reads NG_ prefixed values from lookuper and validates them.
func Process(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	envcfg := envconfig.Config{
		Lookuper: envconfig.PrefixLookuper("NG_", lookuper),
		Target:   cfg,
	}
	if err := envconfig.ProcessWith(ctx, &envcfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	dotPath, err := homedir.Expand(cfg.DotPath)
	if err != nil {
		return nil, fmt.Errorf("expand dot path: %w", err)
	}
	cfg.DotPath = dotPath
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}

func (c *Config) validate() error {
	if c.Moderation.WarnThreshold < 1 {
		return fmt.Errorf("warn threshold must be positive, got %d", c.Moderation.WarnThreshold)
	}
	switch c.Moderation.PunishMode {
	case PunishModeRestrict, PunishModeBan:
	default:
		return fmt.Errorf("unknown punish mode %q", c.Moderation.PunishMode)
	}
	switch c.Review.PendingBackend {
	case PendingBackendMemory, PendingBackendSQL:
	case PendingBackendRedis:
		if c.Review.RedisURL == "" {
			return fmt.Errorf("redis pending backend requires NG_REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown pending backend %q", c.Review.PendingBackend)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return nil
}
