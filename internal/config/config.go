package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Data sources the dashboard can read purchases from.
const (
	SourceMongo    = "mongo"
	SourceBigQuery = "bigquery"
)

// Config holds everything the binaries need. Values come from flags whose
// defaults are read from the environment.
type Config struct {
	Port string

	LogLevel  string
	LogFormat string

	DataSource string

	MongoURI           string
	MongoDatabase      string
	RequestsCollection string
	PlansCollection    string
	UsersCollection    string
	ClientsCollection  string

	BQProject string
	BQDataset string
	BQTable   string

	SourceTZ *time.Location
	TargetTZ *time.Location

	TopN           int
	CurrencyPrefix string

	// YearsPerClient narrows the year selector to the chosen client's years.
	// Off by default: the year list is global.
	YearsPerClient bool

	SnapshotBucket string
}

// Load parses args (without the program name) into a Config. getenv supplies
// flag defaults; pass os.Getenv in production.
func Load(name string, args []string, getenv func(string) string) (*Config, error) {
	return Parse(flag.NewFlagSet(name, flag.ContinueOnError), args, getenv)
}

// Parse registers the config flags on fs, which may already carry
// command-specific flags, then parses args.
func Parse(fs *flag.FlagSet, args []string, getenv func(string) string) (*Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}

	topNDefault, err := envInt(getenv, "TOP_N", 10)
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	yearsPerClientDefault, err := envBool(getenv, "YEARS_PER_CLIENT")
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}

	cfg := &Config{}
	fs.StringVar(&cfg.Port, "port", env("PORT", "8080"), "HTTP server port")
	fs.StringVar(&cfg.LogLevel, "log-level", env("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", env("LOG_FORMAT", "console"), "Log format: console or json")
	fs.StringVar(&cfg.DataSource, "source", env("DATA_SOURCE", SourceMongo), "Purchase data source: mongo or bigquery")

	fs.StringVar(&cfg.MongoURI, "mongo-uri", env("MONGO_URI", "mongodb://localhost:27017/"), "MongoDB connection string")
	fs.StringVar(&cfg.MongoDatabase, "mongo-db", env("MONGO_DATABASE", "production"), "MongoDB database name")
	fs.StringVar(&cfg.RequestsCollection, "requests-collection", env("MONGO_REQUESTS_COLLECTION", "serviceplanrequests"), "Purchase request collection")
	fs.StringVar(&cfg.PlansCollection, "plans-collection", env("MONGO_PLANS_COLLECTION", "serviceplans"), "Plan collection")
	fs.StringVar(&cfg.UsersCollection, "users-collection", env("MONGO_USERS_COLLECTION", "users"), "User collection")
	fs.StringVar(&cfg.ClientsCollection, "clients-collection", env("MONGO_CLIENTS_COLLECTION", "clients"), "Client collection")

	fs.StringVar(&cfg.BQProject, "bq-project", env("BQ_PROJECT", ""), "BigQuery project (source=bigquery)")
	fs.StringVar(&cfg.BQDataset, "bq-dataset", env("BQ_DATASET", "dashboard"), "BigQuery dataset (source=bigquery)")
	fs.StringVar(&cfg.BQTable, "bq-table", env("BQ_TABLE", "purchases"), "BigQuery table (source=bigquery)")

	sourceTZ := fs.String("source-tz", env("SOURCE_TZ", "UTC"), "Time zone of stored dates")
	targetTZ := fs.String("target-tz", env("TARGET_TZ", "Asia/Kolkata"), "Time zone for display and grouping")

	topN := fs.Int("top-n", topNDefault, "Number of items in top/bottom charts")
	fs.StringVar(&cfg.CurrencyPrefix, "currency-prefix", env("CURRENCY_PREFIX", "₹"), "Currency prefix for price axes")
	fs.BoolVar(&cfg.YearsPerClient, "years-per-client", yearsPerClientDefault, "Offer only the selected client's years")

	fs.StringVar(&cfg.SnapshotBucket, "bucket", env("GCS_BUCKET", ""), "GCS bucket for dashboard snapshots (empty disables)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("Load: parsing flags: %w", err)
	}

	if cfg.SourceTZ, err = time.LoadLocation(*sourceTZ); err != nil {
		return nil, fmt.Errorf("Load: source time zone %q: %w", *sourceTZ, err)
	}
	if cfg.TargetTZ, err = time.LoadLocation(*targetTZ); err != nil {
		return nil, fmt.Errorf("Load: target time zone %q: %w", *targetTZ, err)
	}
	cfg.TopN = *topN

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.TopN <= 0 {
		return fmt.Errorf("Validate: top-n must be positive, got %d", c.TopN)
	}
	switch c.DataSource {
	case SourceMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("Validate: mongo-uri is required for source %q", c.DataSource)
		}
	case SourceBigQuery:
		if c.BQProject == "" {
			return fmt.Errorf("Validate: bq-project is required for source %q", c.DataSource)
		}
	default:
		return fmt.Errorf("Validate: unknown data source %q", c.DataSource)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("Validate: unknown log format %q", c.LogFormat)
	}
	return nil
}

// envInt returns fallback for an unset key and an error for a value that is
// not an integer.
func envInt(getenv func(string) string, key string, fallback int) (int, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not an integer", key, v)
	}
	return n, nil
}

func envBool(getenv func(string) string, key string) (bool, error) {
	v := strings.TrimSpace(getenv(key))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a boolean", key, v)
	}
	return b, nil
}
