package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yungbote/coursetrack-backend/internal/data/db"
	"github.com/yungbote/coursetrack-backend/internal/jobs/syncretry"
	"github.com/yungbote/coursetrack-backend/internal/modules/progress/syncer"
	"github.com/yungbote/coursetrack-backend/internal/platform/envutil"
	"github.com/yungbote/coursetrack-backend/internal/platform/logger"
	"github.com/yungbote/coursetrack-backend/internal/temporalx"
)

type Config struct {
	ServiceName   string `validate:"required"`
	Environment   string
	Port          string        `validate:"required,numeric"`
	ShutdownGrace time.Duration `validate:"gt=0"`
	CORSOrigins   []string      `validate:"dive,url"`

	DBDriver       string `validate:"oneof=postgres sqlite"`
	DBDSN          string `validate:"required"`
	DBMaxOpenConns int    `validate:"gte=0"`
	AutoMigrate    bool

	JWTSecret string `validate:"required,min=16"`

	RedisAddr     string
	RedisPassword string
	RedisDB       int           `validate:"gte=0"`
	LockTTL       time.Duration `validate:"gt=0"`

	RulesConfigPath   string
	SyncTargetTimeout time.Duration `validate:"gt=0"`
	RetryBase         time.Duration `validate:"gt=0"`
	RetryMax          time.Duration `validate:"gtefield=RetryBase"`
	SyncRetry         syncretry.Config
	Breaker           syncer.BreakerConfig
	ReportConcurrency int `validate:"min=1,max=64"`

	Temporal temporalx.Config
}

// LoadConfig reads the environment and validates the result.
func LoadConfig(log *logger.Logger) (Config, error) {
	breaker := syncer.DefaultBreakerConfig()
	breaker.FailureThreshold = uint32(envutil.Int("SUBMISSION_BREAKER_FAILURES", int(breaker.FailureThreshold)))
	breaker.OpenTimeout = envutil.Duration("SUBMISSION_BREAKER_OPEN_TIMEOUT", breaker.OpenTimeout)

	cfg := Config{
		ServiceName:   envutil.String("SERVICE_NAME", "coursetrack-backend"),
		Environment:   envutil.String("APP_ENV", "development"),
		Port:          envutil.String("PORT", "8080"),
		ShutdownGrace: envutil.Duration("SHUTDOWN_GRACE", 15*time.Second),
		CORSOrigins:   splitList(envutil.String("CORS_ORIGINS", "")),

		DBDriver:       strings.ToLower(envutil.String("DB_DRIVER", db.DriverPostgres)),
		DBDSN:          envutil.String("DB_DSN", ""),
		DBMaxOpenConns: envutil.Int("DB_MAX_OPEN_CONNS", 20),
		AutoMigrate:    envutil.Bool("DB_AUTO_MIGRATE", true),

		JWTSecret: envutil.String("JWT_SECRET", ""),

		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisPassword: envutil.String("REDIS_PASSWORD", ""),
		RedisDB:       envutil.Int("REDIS_DB", 0),
		LockTTL:       envutil.Duration("LOCK_TTL", 30*time.Second),

		RulesConfigPath:   envutil.String("RULES_CONFIG_PATH", ""),
		SyncTargetTimeout: envutil.Duration("SYNC_TARGET_TIMEOUT", 5*time.Second),
		RetryBase:         envutil.Duration("SYNC_RETRY_BACKOFF_BASE", 30*time.Second),
		RetryMax:          envutil.Duration("SYNC_RETRY_BACKOFF_MAX", time.Hour),
		SyncRetry:         syncretry.ConfigFromEnv(),
		Breaker:           breaker,
		ReportConcurrency: envutil.Int("REPORT_CONCURRENCY", 8),

		Temporal: temporalx.LoadConfig(),
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if log != nil {
		log.Info("Configuration loaded",
			"db_driver", cfg.DBDriver,
			"redis_lock", cfg.RedisAddr != "",
			"temporal", cfg.Temporal.Enabled(),
		)
	}
	return cfg, nil
}

func (c Config) Address() string { return ":" + c.Port }

func (c Config) RetryPolicy() syncer.RetryPolicy {
	return syncer.RetryPolicy{Base: c.RetryBase, Max: c.RetryMax, MaxAttempts: c.SyncRetry.MaxAttempts}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
