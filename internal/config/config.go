package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	LedgerURL            string `env:"LEDGER_URL" envDefault:"http://mock-corebank:8081"`
	ClearingURL          string `env:"CLEARING_URL" envDefault:"http://mock-corebank:8081"`
	OperatorGatewayURL   string `env:"OPERATOR_GATEWAY_URL" envDefault:"http://mock-corebank:8081"`
	ClientTimeoutSeconds int    `env:"CLIENT_TIMEOUT_SECONDS" envDefault:"10"`

	DailyLimit   decimal.Decimal `env:"DAILY_LIMIT" envDefault:"5000.00"`
	MonthlyLimit decimal.Decimal `env:"MONTHLY_LIMIT" envDefault:"25000.00"`

	FraudHighAmountThreshold    decimal.Decimal `env:"FRAUD_HIGH_AMOUNT_THRESHOLD" envDefault:"5000.00"`
	FraudMaxTransactionsPerHour int             `env:"FRAUD_MAX_TRANSACTIONS_PER_HOUR" envDefault:"10"`

	InstantMaxAmount      decimal.Decimal `env:"INSTANT_MAX_AMOUNT" envDefault:"15000.00"`
	InstantTimeoutSeconds int             `env:"INSTANT_TIMEOUT_SECONDS" envDefault:"30"`

	SEPACutoff   string `env:"SEPA_CUTOFF" envDefault:"16:00"`
	SEPATimezone string `env:"SEPA_TIMEZONE" envDefault:"Europe/Paris"`

	SwiftFlatFee decimal.Decimal `env:"SWIFT_FLAT_FEE" envDefault:"25.00"`

	OperatorTimeoutSeconds int `env:"OPERATOR_TIMEOUT_SECONDS" envDefault:"15"`

	SanctionsMarkers []string `env:"SANCTIONS_MARKERS" envSeparator:"," envDefault:"SANCTIONED"`

	// bcrypt hash of the one-time code accepted for step-up authentication.
	// When unset, SCA_DEMO_OTP is hashed at startup.
	SCAOTPHash string `env:"SCA_OTP_HASH"`
	SCADemoOTP string `env:"SCA_DEMO_OTP" envDefault:"123456"`

	SettlementWebhookSecret  string `env:"SETTLEMENT_WEBHOOK_SECRET,required"`
	SettlementPollIntervalMs int    `env:"SETTLEMENT_POLL_INTERVAL_MS" envDefault:"1000"`

	EventsQueueURL   string `env:"EVENTS_SQS_QUEUE_URL"`
	AWSRegion        string `env:"AWS_REGION" envDefault:"eu-west-1"`
	AWSEndpoint      string `env:"AWS_ENDPOINT"`
	EventsBufferSize int    `env:"EVENTS_BUFFER_SIZE" envDefault:"256"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if _, err := cfg.SEPACutoffClock(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if _, err := time.LoadLocation(cfg.SEPATimezone); err != nil {
		return nil, fmt.Errorf("config.Load: SEPA_TIMEZONE: %w", err)
	}
	return &cfg, nil
}

// SEPACutoffClock returns the cut-off as an offset from midnight.
func (c *Config) SEPACutoffClock() (time.Duration, error) {
	t, err := time.Parse("15:04", c.SEPACutoff)
	if err != nil {
		return 0, fmt.Errorf("SEPA_CUTOFF %q: %w", c.SEPACutoff, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func (c *Config) SEPALocation() *time.Location {
	loc, err := time.LoadLocation(c.SEPATimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
