// Package config loads service configuration.
// Sources, lowest to highest priority: defaults, YAML file, SHOP_* env
// vars, command line flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	auth "github.com/goliatone/go-shop-auth"
)

const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Config holds all service configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Auth   AuthConfig   `yaml:"auth"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Address        string        `yaml:"address"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type AuthConfig struct {
	SigningKey          string        `yaml:"signing_key"`
	Issuer              string        `yaml:"issuer"`
	TokenTTL            time.Duration `yaml:"token_ttl"`
	CookieName          string        `yaml:"cookie_name"`
	CookieSecure        bool          `yaml:"cookie_secure"`
	PasswordCost        int           `yaml:"password_cost"`
	DistinctLoginErrors bool          `yaml:"distinct_login_errors"`
	Revocation          bool          `yaml:"revocation"`
	// LoginRate is requests per second per client IP
	LoginRate  float64 `yaml:"login_rate"`
	LoginBurst int     `yaml:"login_burst"`
}

type StoreConfig struct {
	Driver        string `yaml:"driver"`
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
	SQLiteDSN     string `yaml:"sqlite_dsn"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns configuration with sensible defaults. The signing key
// has no default.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:        ":8080",
			RequestTimeout: 10 * time.Second,
		},
		Auth: AuthConfig{
			Issuer:       "go-shop-auth",
			TokenTTL:     auth.DefaultTokenExpiration,
			CookieName:   auth.DefaultCookieName,
			PasswordCost: 10,
			LoginRate:    5,
			LoginBurst:   10,
		},
		Store: StoreConfig{
			Driver:        DriverMemory,
			MongoDatabase: "shop",
			SQLiteDSN:     "file:shop.db?cache=shared",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from every source and validates it.
// args are command line arguments without the program name.
func Load(args []string) (Config, error) {
	cfg := Default()

	fs := pflag.NewFlagSet("shopd", pflag.ContinueOnError)
	path := fs.StringP("config", "c", os.Getenv("SHOP_CONFIG"), "path to a YAML config file")
	overrides := bindFlags(fs)

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if *path != "" {
		if err := cfg.LoadFile(*path); err != nil {
			return cfg, err
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	overrides(fs, &cfg)

	return cfg, cfg.Validate()
}

// LoadFile overlays the YAML file at path
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// ApplyEnv overlays SHOP_* variables read through lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []string

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, key)
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, key)
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, key)
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, key)
				return
			}
			*dst = d
		}
	}

	str("SHOP_SERVER_ADDRESS", &c.Server.Address)
	duration("SHOP_SERVER_REQUEST_TIMEOUT", &c.Server.RequestTimeout)

	str("SHOP_AUTH_SIGNING_KEY", &c.Auth.SigningKey)
	str("SHOP_AUTH_ISSUER", &c.Auth.Issuer)
	duration("SHOP_AUTH_TOKEN_TTL", &c.Auth.TokenTTL)
	str("SHOP_AUTH_COOKIE_NAME", &c.Auth.CookieName)
	boolean("SHOP_AUTH_COOKIE_SECURE", &c.Auth.CookieSecure)
	integer("SHOP_AUTH_PASSWORD_COST", &c.Auth.PasswordCost)
	boolean("SHOP_AUTH_DISTINCT_LOGIN_ERRORS", &c.Auth.DistinctLoginErrors)
	boolean("SHOP_AUTH_REVOCATION", &c.Auth.Revocation)
	float("SHOP_AUTH_LOGIN_RATE", &c.Auth.LoginRate)
	integer("SHOP_AUTH_LOGIN_BURST", &c.Auth.LoginBurst)

	str("SHOP_STORE_DRIVER", &c.Store.Driver)
	str("SHOP_STORE_MONGO_URI", &c.Store.MongoURI)
	str("SHOP_STORE_MONGO_DATABASE", &c.Store.MongoDatabase)
	str("SHOP_STORE_SQLITE_DSN", &c.Store.SQLiteDSN)

	str("SHOP_LOG_LEVEL", &c.Log.Level)
	boolean("SHOP_LOG_DEVELOPMENT", &c.Log.Development)

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment values: %s", strings.Join(errs, ", "))
	}
	return nil
}

// bindFlags registers flags and returns a func applying the ones that
// were set explicitly
func bindFlags(fs *pflag.FlagSet) func(*pflag.FlagSet, *Config) {
	d := Default()

	addr := fs.String("address", d.Server.Address, "HTTP listen address")
	signingKey := fs.String("signing-key", "", "HMAC key used to sign session tokens")
	driver := fs.String("store", d.Store.Driver, "store driver: memory, mongo or sqlite")
	mongoURI := fs.String("mongo-uri", "", "MongoDB connection URI")
	sqliteDSN := fs.String("sqlite-dsn", d.Store.SQLiteDSN, "SQLite DSN")
	logLevel := fs.String("log-level", d.Log.Level, "log level: debug, info, warn, error")
	dev := fs.Bool("dev", false, "development logging")

	return func(fs *pflag.FlagSet, c *Config) {
		fs.Visit(func(f *pflag.Flag) {
			switch f.Name {
			case "address":
				c.Server.Address = *addr
			case "signing-key":
				c.Auth.SigningKey = *signingKey
			case "store":
				c.Store.Driver = *driver
			case "mongo-uri":
				c.Store.MongoURI = *mongoURI
			case "sqlite-dsn":
				c.Store.SQLiteDSN = *sqliteDSN
			case "log-level":
				c.Log.Level = *logLevel
			case "dev":
				c.Log.Development = *dev
			}
		})
	}
}

// Validate checks the configuration. A missing signing key is reported
// as auth.ErrMissingSigningKey.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.SigningKey) == "" {
		return auth.ErrMissingSigningKey
	}

	var mongoRules, sqliteRules []validation.Rule
	switch c.Store.Driver {
	case DriverMongo:
		mongoRules = append(mongoRules, validation.Required)
	case DriverSQLite:
		sqliteRules = append(sqliteRules, validation.Required)
	}

	err := validation.Errors{
		"server.address":     validation.Validate(c.Server.Address, validation.Required),
		"auth.token_ttl":     validation.Validate(c.Auth.TokenTTL, validation.Required, validation.Min(time.Second)),
		"auth.cookie_name":   validation.Validate(c.Auth.CookieName, validation.Required),
		"auth.password_cost": validation.Validate(c.Auth.PasswordCost, validation.Min(4), validation.Max(31)),
		"auth.login_burst":   validation.Validate(c.Auth.LoginBurst, validation.Min(1)),
		"store.driver":       validation.Validate(c.Store.Driver, validation.Required, validation.In(DriverMemory, DriverMongo, DriverSQLite)),
		"store.mongo_uri":    validation.Validate(c.Store.MongoURI, mongoRules...),
		"store.sqlite_dsn":   validation.Validate(c.Store.SQLiteDSN, sqliteRules...),
	}.Filter()
	if err != nil {
		return auth.NewValidationError("invalid configuration", err)
	}
	return nil
}

// AuthSettings exposes the auth section as an auth.Config
func (c Config) AuthSettings() auth.Config {
	return authSettings{c.Auth}
}

type authSettings struct {
	AuthConfig
}

var _ auth.Config = authSettings{}

func (a authSettings) GetSigningKey() string             { return a.SigningKey }
func (a authSettings) GetIssuer() string                 { return a.Issuer }
func (a authSettings) GetTokenExpiration() time.Duration { return a.TokenTTL }
func (a authSettings) GetCookieName() string             { return a.CookieName }
func (a authSettings) GetCookieSecure() bool             { return a.CookieSecure }
func (a authSettings) GetPasswordCost() int              { return a.PasswordCost }
func (a authSettings) GetDistinctLoginErrors() bool      { return a.DistinctLoginErrors }
