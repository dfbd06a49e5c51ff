// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config is the full process configuration.
type Config struct {
	Server    Server
	Database  Database
	Redis     Redis
	Kafka     Kafka
	Mint      Mint
	Vesting   Vesting
	Deduction Deduction
	Verifier  Verifier
	Guard     Guard
	Otel      Otel
	Jobs      Jobs
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string `env:"COVENANT_ADDR"           envDefault:":8080"`
	Environment   string `env:"COVENANT_ENV"            envDefault:"dev"`
	LogLevel      string `env:"COVENANT_LOG_LEVEL"      envDefault:"info"`
	JWTSigningKey string `env:"JWT_SIGNING_KEY"`
	TokenIssuer   string `env:"JWT_ISSUER"              envDefault:"covenant"`
	TokenAudience string `env:"JWT_AUDIENCE"            envDefault:"covenant-operators"`
	// StoreBackend is "postgres" or "memory". Memory is for local runs only.
	StoreBackend string `env:"COVENANT_STORE_BACKEND"   envDefault:"postgres"`
}

type Database struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"5m"`
	TxTimeout       time.Duration `env:"DATABASE_TX_TIMEOUT"        envDefault:"5s"`
}

type Redis struct {
	URL             string        `env:"REDIS_URL"`
	PoolSize        int           `env:"REDIS_POOL_SIZE"         envDefault:"10"`
	MinIdleConns    int           `env:"REDIS_MIN_IDLE_CONNS"    envDefault:"2"`
	DialTimeout     time.Duration `env:"REDIS_DIAL_TIMEOUT"      envDefault:"5s"`
	ReadTimeout     time.Duration `env:"REDIS_READ_TIMEOUT"      envDefault:"3s"`
	WriteTimeout    time.Duration `env:"REDIS_WRITE_TIMEOUT"     envDefault:"3s"`
	VestingCacheTTL time.Duration `env:"REDIS_VESTING_CACHE_TTL" envDefault:"30s"`
}

type Kafka struct {
	Brokers           string        `env:"KAFKA_BROKERS"`
	Acks              string        `env:"KAFKA_ACKS"                envDefault:"all"`
	Retries           int           `env:"KAFKA_RETRIES"             envDefault:"3"`
	DeliveryTimeout   time.Duration `env:"KAFKA_DELIVERY_TIMEOUT"    envDefault:"30s"`
	LedgerTopic       string        `env:"KAFKA_LEDGER_TOPIC"        envDefault:"covenant.ledger.events"`
	Partitions        int32         `env:"KAFKA_TOPIC_PARTITIONS"    envDefault:"3"`
	ReplicationFactor int16         `env:"KAFKA_TOPIC_REPLICATION"   envDefault:"1"`
	OutboxBatchSize   int           `env:"OUTBOX_BATCH_SIZE"         envDefault:"100"`
	OutboxInterval    time.Duration `env:"OUTBOX_POLL_INTERVAL"      envDefault:"200ms"`
	OutboxRetention   time.Duration `env:"OUTBOX_RETENTION"          envDefault:"168h"`
}

type Mint struct {
	Schedule            string          `env:"MINT_SCHEDULE"             envDefault:"covenant-11"`
	PersonhoodThreshold decimal.Decimal `env:"MINT_PERSONHOOD_THRESHOLD" envDefault:"0.8"`
	AgreementVersion    string          `env:"MINT_AGREEMENT_VERSION"    envDefault:"covenant-v1"`
	ActivationDebit     decimal.Decimal `env:"MINT_ACTIVATION_DEBIT"     envDefault:"0.1"`
	// ReleaseThreshold is the minted-identity count that unlocks every vault.
	ReleaseThreshold int64 `env:"MINT_GLOBAL_RELEASE_THRESHOLD" envDefault:"1000000000"`
}

type Vesting struct {
	Target int    `env:"VESTING_TARGET" envDefault:"10"`
	Policy string `env:"VESTING_POLICY" envDefault:"single-handshake"`
}

type Deduction struct {
	CorporateRate      decimal.Decimal `env:"DEDUCTION_CORPORATE_RATE"  envDefault:"0.02"`
	NationalRate       decimal.Decimal `env:"DEDUCTION_NATIONAL_RATE"   envDefault:"0.03"`
	ConversionLevyRate decimal.Decimal `env:"DEDUCTION_CONVERSION_RATE" envDefault:"0.02"`
	SovereigntyFee     decimal.Decimal `env:"DEDUCTION_SOVEREIGNTY_FEE" envDefault:"0.5"`
}

type Verifier struct {
	BaseURL          string          `env:"VERIFIER_BASE_URL"`
	Timeout          time.Duration   `env:"VERIFIER_TIMEOUT"           envDefault:"3s"`
	FailureThreshold int             `env:"VERIFIER_FAILURE_THRESHOLD" envDefault:"5"`
	SuccessThreshold int             `env:"VERIFIER_SUCCESS_THRESHOLD" envDefault:"2"`
	Cooldown         time.Duration   `env:"VERIFIER_COOLDOWN"          envDefault:"10s"`
	MinScore         decimal.Decimal `env:"VERIFIER_MIN_SCORE"         envDefault:"0.9"`
}

type Guard struct {
	// AnchorPepper keys the BLAKE2b digest of legacy contact anchors.
	AnchorPepper string `env:"GUARD_ANCHOR_PEPPER"`
}

type Otel struct {
	Endpoint    string `env:"OTEL_EXPORTER_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"covenant"`
}

// Enabled reports whether spans are exported.
func (o Otel) Enabled() bool { return o.Endpoint != "" }

type Jobs struct {
	ReleaseInterval    time.Duration `env:"JOB_RELEASE_INTERVAL"     envDefault:"1m"`
	ReconcileInterval  time.Duration `env:"JOB_RECONCILE_INTERVAL"   envDefault:"5m"`
	ReservationStaleAt time.Duration `env:"JOB_RESERVATION_STALE_AT" envDefault:"2m"`
}

const devSigningKey = "dev-secret-key-change-in-production"

// Load reads an optional .env file, parses the environment and validates
// the result.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv parses and validates the environment without touching .env.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Server.IsDev() {
		if cfg.Server.JWTSigningKey == "" {
			cfg.Server.JWTSigningKey = devSigningKey
		}
		if cfg.Guard.AnchorPepper == "" {
			cfg.Guard.AnchorPepper = "dev-anchor-pepper"
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (s Server) IsDev() bool { return s.Environment == "dev" }

// Validate enforces cross-field invariants that struct tags cannot express.
func (c Config) Validate() error {
	var errs []error

	if c.Server.JWTSigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY is required"))
	}
	if c.Guard.AnchorPepper == "" {
		errs = append(errs, errors.New("GUARD_ANCHOR_PEPPER is required"))
	}
	switch c.Server.StoreBackend {
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Server.StoreBackend))
	}

	one := decimal.NewFromInt(1)
	rates := map[string]decimal.Decimal{
		"DEDUCTION_CORPORATE_RATE":  c.Deduction.CorporateRate,
		"DEDUCTION_NATIONAL_RATE":   c.Deduction.NationalRate,
		"DEDUCTION_CONVERSION_RATE": c.Deduction.ConversionLevyRate,
	}
	for name, r := range rates {
		if r.IsNegative() || r.GreaterThanOrEqual(one) {
			errs = append(errs, fmt.Errorf("%s must be in [0, 1), got %s", name, r))
		}
	}
	if c.Deduction.CorporateRate.Add(c.Deduction.NationalRate).GreaterThanOrEqual(one) {
		errs = append(errs, errors.New("corporate and national rates must sum to less than 1"))
	}
	if c.Deduction.SovereigntyFee.IsNegative() {
		errs = append(errs, errors.New("DEDUCTION_SOVEREIGNTY_FEE must not be negative"))
	}
	if c.Mint.ActivationDebit.IsNegative() {
		errs = append(errs, errors.New("MINT_ACTIVATION_DEBIT must not be negative"))
	}
	if c.Mint.ReleaseThreshold <= 0 {
		errs = append(errs, errors.New("MINT_GLOBAL_RELEASE_THRESHOLD must be positive"))
	}
	if c.Vesting.Target <= 0 {
		errs = append(errs, errors.New("VESTING_TARGET must be positive"))
	}
	switch c.Vesting.Policy {
	case "single-handshake", "daily-trickle":
	default:
		errs = append(errs, fmt.Errorf("unknown vesting policy %q", c.Vesting.Policy))
	}
	switch c.Mint.Schedule {
	case "covenant-11", "dual-mint-10":
	default:
		errs = append(errs, fmt.Errorf("unknown mint schedule %q", c.Mint.Schedule))
	}
	if c.Mint.AgreementVersion == "" {
		errs = append(errs, errors.New("MINT_AGREEMENT_VERSION is required"))
	}

	return errors.Join(errs...)
}
