package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	BackendRemote   = "remote"
	BackendPostgres = "postgres"
)

type Config struct {
	LogLevel          string `env:"LOG_LEVEL"`
	Backend           string `env:"HOLDINGS_BACKEND" envDefault:"remote"`
	Postgres          Postgres
	Telegram          Telegram
	Redis             Redis
	API               API
	Valuation         Valuation
	Jobs              Jobs
	GoogleDrive       GoogleDrive
	SessionExpiration time.Duration `env:"SESSION_EXPIRATION"`
}

type Postgres struct {
	Host            string `env:"PG_HOST" envDefault:"localhost"`
	Port            int    `env:"PG_PORT" envDefault:"5432"`
	DbName          string `env:"PG_DB_NAME" envDefault:"fund_tracker"`
	Password        string `env:"PG_PASSWORD" envDefault:""`
	User            string `env:"PG_USER" envDefault:"postgres"`
	MaxOpenConns    int    `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
	ConnMaxLifetime int    `env:"PG_CONN_MAX_LIFETIME" envDefault:"300"`
	MaxIdleConns    int    `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxIdleTime int    `env:"PG_CONN_MAX_IDLE_TIME" envDefault:"60"`
	MigrationDir    string `env:"PG_MIGRATION_DIR" envDefault:"migrations"`
}

type Telegram struct {
	Token      string        `env:"TELEGRAM_TOKEN"`
	UpdTimeout time.Duration `env:"TELEGRAM_UPD_TIMEOUT"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST"`
	Port     int    `env:"REDIS_PORT"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"`
}

type API struct {
	Debug       bool          `env:"API_DEBUG"`
	Timeout     time.Duration `env:"API_TIMEOUT"`
	FundApi     FundApi
	HoldingsApi HoldingsApi
}

type FundApi struct {
	Url string `env:"FUND_API_URL"`
}

type HoldingsApi struct {
	Url string `env:"HOLDINGS_API_URL" envDefault:""`
}

type Valuation struct {
	// captured: share count persisted at creation is a fact;
	// derived: share count is recomputed from amount and latest valuation on amount edits
	ShareCountPolicy  string `env:"SHARE_COUNT_POLICY" envDefault:"captured"`
	EnrichConcurrency int    `env:"ENRICH_CONCURRENCY" envDefault:"8"`
}

type Jobs struct {
	EvictWorkspacesInterval  time.Duration `env:"EVICT_WORKSPACES_JOB_INTERVAL" envDefault:"10m"`
	DeleteOldReportsInterval time.Duration `env:"DELETE_OLD_REPORTS_JOB_INTERVAL" envDefault:"1h"`
}

type GoogleDrive struct {
	Enabled         bool          `env:"GOOGLE_DRIVE_ENABLED" envDefault:"false"`
	CredentialsFile string        `env:"GOOGLE_DRIVE_CREDENTIALS_FILE" envDefault:""`
	FileTTL         time.Duration `env:"GOOGLE_DRIVE_FILE_TTL" envDefault:"24h"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	if cfg.Backend != BackendRemote && cfg.Backend != BackendPostgres {
		log.Fatalf("unknown HOLDINGS_BACKEND %q", cfg.Backend)
	}

	if cfg.Backend == BackendRemote && cfg.API.HoldingsApi.Url == "" {
		log.Fatalf("HOLDINGS_API_URL is required for %s backend", BackendRemote)
	}

	return cfg
}
