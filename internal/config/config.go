package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/turbolytics/duesync/internal/coordinator"
	"github.com/turbolytics/duesync/internal/dispatcher"
	"github.com/turbolytics/duesync/internal/export"
	"github.com/turbolytics/duesync/internal/ledger"
	"github.com/turbolytics/duesync/internal/lock"
	"github.com/turbolytics/duesync/internal/source"
)

const EnvPrefix = "DUESYNC"

type Logger struct {
	Level       string `yaml:"level" mapstructure:"level"`
	Development bool   `yaml:"development" mapstructure:"development"`
}

// Auth holds the client credentials used to obtain a source token.
// TokenURL overrides the Entra ID endpoint derived from TenantID.
type Auth struct {
	TenantID     string   `yaml:"tenant_id" mapstructure:"tenant_id"`
	ClientID     string   `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string   `yaml:"client_secret" mapstructure:"client_secret"`
	TokenURL     string   `yaml:"token_url" mapstructure:"token_url"`
	Scopes       []string `yaml:"scopes" mapstructure:"scopes"`
}

type Source struct {
	BaseURL        string          `yaml:"base_url" mapstructure:"base_url"`
	APIPath        string          `yaml:"api_path" mapstructure:"api_path"`
	EntitySet      string          `yaml:"entity_set" mapstructure:"entity_set"`
	Filter         string          `yaml:"filter" mapstructure:"filter"`
	PageSize       int             `yaml:"page_size" mapstructure:"page_size"`
	MaxPages       int             `yaml:"max_pages" mapstructure:"max_pages"`
	Timeout        time.Duration   `yaml:"timeout" mapstructure:"timeout"`
	CompletedValue string          `yaml:"completed_value" mapstructure:"completed_value"`
	Fields         source.FieldMap `yaml:"fields" mapstructure:"fields"`
}

// Update configures the per-record retry policy. Strategy is "constant" or
// "exponential", exponential starts at Backoff and is capped at MaxBackoff.
type Update struct {
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff" mapstructure:"backoff"`
	Strategy    string        `yaml:"strategy" mapstructure:"strategy"`
	MaxBackoff  time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"`
}

// Archive is where export files are published. ConnectionString is either
// s3://?region=..&endpoint=..&force_path_style=true or file:///base/path, the
// container is the bucket or a sub-directory of the base path.
type Archive struct {
	ConnectionString string `yaml:"connection_string" mapstructure:"connection_string"`
	Container        string `yaml:"container" mapstructure:"container"`
	Prefix           string `yaml:"prefix" mapstructure:"prefix"`
	Label            string `yaml:"label" mapstructure:"label"`
	WriteSummaries   bool   `yaml:"write_summaries" mapstructure:"write_summaries"`
}

type Export struct {
	Format    string `yaml:"format" mapstructure:"format"`
	Reconcile bool   `yaml:"reconcile" mapstructure:"reconcile"`
}

type Server struct {
	Address    string        `yaml:"address" mapstructure:"address"`
	RunTimeout time.Duration `yaml:"run_timeout" mapstructure:"run_timeout"`
}

type Ledger struct {
	ConnectionString string `yaml:"connection_string" mapstructure:"connection_string"`
	Table            string `yaml:"table" mapstructure:"table"`
}

type Lock struct {
	RedisAddress string        `yaml:"redis_address" mapstructure:"redis_address"`
	Key          string        `yaml:"key" mapstructure:"key"`
	TTL          time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

type Notify struct {
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	Topic   string   `yaml:"topic" mapstructure:"topic"`
}

type Config struct {
	Logger  Logger  `yaml:"logger" mapstructure:"logger"`
	Auth    Auth    `yaml:"auth" mapstructure:"auth"`
	Source  Source  `yaml:"source" mapstructure:"source"`
	Update  Update  `yaml:"update" mapstructure:"update"`
	Archive Archive `yaml:"archive" mapstructure:"archive"`
	Export  Export  `yaml:"export" mapstructure:"export"`
	Server  Server  `yaml:"server" mapstructure:"server"`
	Ledger  Ledger  `yaml:"ledger" mapstructure:"ledger"`
	Lock    Lock    `yaml:"lock" mapstructure:"lock"`
	Notify  Notify  `yaml:"notify" mapstructure:"notify"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.development", false)

	v.SetDefault("auth.tenant_id", "")
	v.SetDefault("auth.client_id", "")
	v.SetDefault("auth.client_secret", "")
	v.SetDefault("auth.token_url", "")
	v.SetDefault("auth.scopes", []string{})

	v.SetDefault("source.base_url", "")
	v.SetDefault("source.api_path", source.DefaultAPIPath)
	v.SetDefault("source.entity_set", "contacts")
	v.SetDefault("source.filter", "")
	v.SetDefault("source.page_size", source.DefaultPageSize)
	v.SetDefault("source.max_pages", 0)
	v.SetDefault("source.timeout", source.DefaultTimeout)
	v.SetDefault("source.completed_value", source.DefaultCompletedValue)
	fields := source.DefaultFieldMap()
	v.SetDefault("source.fields.id", fields.ID)
	v.SetDefault("source.fields.name", fields.Name)
	v.SetDefault("source.fields.email", fields.Email)
	v.SetDefault("source.fields.phone", fields.Phone)
	v.SetDefault("source.fields.street", fields.Street)
	v.SetDefault("source.fields.city", fields.City)
	v.SetDefault("source.fields.postal_code", fields.PostalCode)
	v.SetDefault("source.fields.country", fields.Country)
	v.SetDefault("source.fields.amount", fields.Amount)
	v.SetDefault("source.fields.quantity", fields.Quantity)
	v.SetDefault("source.fields.latitude", fields.Latitude)
	v.SetDefault("source.fields.longitude", fields.Longitude)
	v.SetDefault("source.fields.due_at", fields.DueAt)
	v.SetDefault("source.fields.processed_flag", fields.ProcessedFlag)

	v.SetDefault("update.max_attempts", dispatcher.DefaultMaxAttempts)
	v.SetDefault("update.backoff", dispatcher.DefaultBackoff)
	v.SetDefault("update.strategy", "constant")
	v.SetDefault("update.max_backoff", 30*time.Second)
	v.SetDefault("update.concurrency", 1)

	v.SetDefault("archive.connection_string", "")
	v.SetDefault("archive.container", "")
	v.SetDefault("archive.prefix", coordinator.DefaultArchivePrefix)
	v.SetDefault("archive.label", coordinator.DefaultArchiveLabel)
	v.SetDefault("archive.write_summaries", false)

	v.SetDefault("export.format", export.FormatCSV)
	v.SetDefault("export.reconcile", false)

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.run_timeout", 10*time.Minute)

	v.SetDefault("ledger.connection_string", "")
	v.SetDefault("ledger.table", ledger.DefaultTable)

	v.SetDefault("lock.redis_address", "")
	v.SetDefault("lock.key", lock.DefaultKey)
	v.SetDefault("lock.ttl", lock.DefaultTTL)

	v.SetDefault("notify.brokers", []string{})
	v.SetDefault("notify.topic", "duesync.runs")
}

// Load reads the YAML file at path, when given, over the defaults and
// applies DUESYNC_* environment overrides, e.g. DUESYNC_AUTH_CLIENT_SECRET
// for auth.client_secret.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &c, nil
}

// Validate reports every missing or invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	required := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}

	required("auth.client_id", c.Auth.ClientID)
	required("auth.client_secret", c.Auth.ClientSecret)
	if c.Auth.TokenURL == "" {
		required("auth.tenant_id", c.Auth.TenantID)
	}
	required("source.base_url", c.Source.BaseURL)
	required("source.entity_set", c.Source.EntitySet)
	required("source.fields.id", c.Source.Fields.ID)
	required("source.fields.due_at", c.Source.Fields.DueAt)
	required("source.fields.processed_flag", c.Source.Fields.ProcessedFlag)
	required("archive.connection_string", c.Archive.ConnectionString)

	if c.Source.BaseURL != "" {
		if u, err := url.Parse(c.Source.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("source.base_url %q is not an absolute url", c.Source.BaseURL))
		}
	}
	if c.Source.PageSize < 1 {
		errs = append(errs, errors.New("source.page_size must be positive"))
	}
	if c.Update.MaxAttempts < 1 {
		errs = append(errs, errors.New("update.max_attempts must be at least 1"))
	}
	if c.Update.Backoff < 0 {
		errs = append(errs, errors.New("update.backoff must not be negative"))
	}
	if c.Update.Concurrency < 1 {
		errs = append(errs, errors.New("update.concurrency must be at least 1"))
	}
	switch c.Update.Strategy {
	case "constant", "exponential":
	default:
		errs = append(errs, fmt.Errorf("update.strategy %q must be constant or exponential", c.Update.Strategy))
	}
	if _, err := export.New(c.Export.Format); err != nil {
		errs = append(errs, err)
	}
	if c.Archive.ConnectionString != "" {
		if _, err := parseArchive(c.Archive.ConnectionString); err != nil {
			errs = append(errs, err)
		}
	}
	if len(c.Notify.Brokers) > 0 && c.Notify.Topic == "" {
		errs = append(errs, errors.New("notify.topic is required when brokers are set"))
	}

	return errors.Join(errs...)
}

// RetryPolicy builds the dispatcher policy from the update settings.
func (u Update) RetryPolicy() dispatcher.RetryPolicy {
	p := dispatcher.RetryPolicy{
		MaxAttempts: u.MaxAttempts,
		Backoff:     dispatcher.ConstantBackoff(u.Backoff),
	}
	if u.Strategy == "exponential" {
		p.Backoff = dispatcher.ExponentialBackoff(u.Backoff, u.MaxBackoff)
	}
	return p
}
