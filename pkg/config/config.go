package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	HTTP             HTTP
	Logger           Logger
	Postgres         Postgres
	Documents        Documents
	Logo             Logo
	Jobs             Jobs
	Mailer           Mailer
	Kafka            Kafka
	IssuerConfigPath string          `env:"ISSUER_CONFIG_PATH" envDefault:"config.json"`
	TaxRate          decimal.Decimal `env:"VAT_RATE" envDefault:"0.21"`
}

type HTTP struct {
	Port          int    `env:"HTTP_PORT" envDefault:"8080"`
	APIKeyEnabled bool   `env:"HTTP_API_KEY_ENABLED" envDefault:"false"`
	APIKey        string `env:"HTTP_API_KEY" envDefault:"dev"`
}

type Logger struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

type Postgres struct {
	DSN     string `env:"POSTGRES_DSN"`
	MaxConn int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
}

type Documents struct {
	Dir string `env:"DOCUMENTS_DIR" envDefault:"generated_invoices"`
}

type Logo struct {
	Timeout       time.Duration `env:"LOGO_TIMEOUT" envDefault:"10s"`
	RetryAttempts int           `env:"LOGO_RETRY_ATTEMPTS" envDefault:"2"`
}

type Jobs struct {
	WarmDocumentsEnabled  bool          `env:"JOB_WARM_DOCUMENTS_ENABLED" envDefault:"true"`
	WarmDocumentsInterval time.Duration `env:"JOB_WARM_DOCUMENTS_INTERVAL" envDefault:"1h"`
	WarmDocumentsLookback time.Duration `env:"JOB_WARM_DOCUMENTS_LOOKBACK" envDefault:"720h"`
}

// Mailer settings are optional at start. The mailer reports missing values when a message is sent.
type Mailer struct {
	Host     string `env:"MAILER_HOST" envDefault:""`
	Port     int    `env:"MAILER_PORT" envDefault:"0"`
	Login    string `env:"MAILER_LOGIN" envDefault:""`
	Password string `env:"MAILER_PASSWORD" envDefault:""`
	From     string `env:"MAILER_FROM" envDefault:""`
	FromName string `env:"MAILER_FROM_NAME" envDefault:""`
}

type Kafka struct {
	Brokers             []string `env:"KAFKA_BROKERS" envDefault:""`
	InvoiceCreatedTopic string   `env:"KAFKA_INVOICE_CREATED_TOPIC" envDefault:"invoice-created"`
}

func New(envPath string) (Config, error) {
	err := godotenv.Load(envPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}

	c, err := env.ParseAsWithOptions[Config](env.Options{
		RequiredIfNoDef: true,
	})
	if err != nil {
		return Config{}, err
	}

	err = validateTaxRate(c.TaxRate)
	if err != nil {
		return Config{}, err
	}

	return c, nil
}

// Limits of the invoices.tax_rate column, NUMERIC(6,4).
const (
	taxRatePlaces = 4
	maxTaxRate    = 100
)

// validateTaxRate rejects rates the ledger cannot store exactly, so the stored rate always
// reproduces the stored tax amount.
func validateTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() {
		return errors.New("VAT_RATE must not be negative")
	}

	if rate.GreaterThanOrEqual(decimal.NewFromInt(maxTaxRate)) {
		return fmt.Errorf("VAT_RATE must be below %d", maxTaxRate)
	}

	if !rate.Equal(rate.Round(taxRatePlaces)) {
		return fmt.Errorf("VAT_RATE must have at most %d decimals", taxRatePlaces)
	}

	return nil
}
