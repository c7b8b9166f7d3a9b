package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Port               string        `yaml:"port"`
		LogLevel           string        `yaml:"log_level"`
		LogFormat          string        `yaml:"log_format"`
		SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
	} `yaml:"app"`

	TableCRM struct {
		BaseURL      string        `yaml:"base_url"`
		Timeout      time.Duration `yaml:"timeout"`
		CatalogTTL   time.Duration `yaml:"catalog_ttl"`
		ProductTTL   time.Duration `yaml:"product_ttl"`
		ProductLimit int           `yaml:"product_limit"`
	} `yaml:"tablecrm"`

	Form struct {
		MinPhoneLength  int `yaml:"min_phone_length"`
		MinSearchLength int `yaml:"min_search_length"`
	} `yaml:"form"`
}

const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{}
	cfg.App.Port = "8080"
	cfg.App.LogLevel = "info"
	cfg.App.LogFormat = LogFormatConsole
	cfg.App.SessionIdleTimeout = 30 * time.Minute

	cfg.TableCRM.BaseURL = "https://app.tablecrm.com/api/v1"
	cfg.TableCRM.Timeout = 15 * time.Second
	cfg.TableCRM.CatalogTTL = 60 * time.Second
	cfg.TableCRM.ProductTTL = 0
	cfg.TableCRM.ProductLimit = 50

	cfg.Form.MinPhoneLength = 6
	cfg.Form.MinSearchLength = 2
	return cfg
}

// Load reads an optional .env file at path, then the environment, then the
// YAML file named by CONFIG_FILE if set. Later sources win.
func Load(path string) (*Config, error) {
	if path != "" {
		err := godotenv.Load(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	cfg := Default()
	if err := cfg.fromEnv(); err != nil {
		return nil, err
	}

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		if err := cfg.fromFile(file); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) fromEnv() error {
	var errs []error
	setString(&c.App.Port, "APP_PORT")
	setString(&c.App.LogLevel, "LOG_LEVEL")
	setString(&c.App.LogFormat, "LOG_FORMAT")
	errs = append(errs, setDuration(&c.App.SessionIdleTimeout, "SESSION_IDLE_TIMEOUT"))

	setString(&c.TableCRM.BaseURL, "TABLECRM_BASE_URL")
	errs = append(errs,
		setDuration(&c.TableCRM.Timeout, "TABLECRM_TIMEOUT"),
		setDuration(&c.TableCRM.CatalogTTL, "CATALOG_TTL"),
		setDuration(&c.TableCRM.ProductTTL, "PRODUCT_TTL"),
		setInt(&c.TableCRM.ProductLimit, "PRODUCT_LIMIT"),
		setInt(&c.Form.MinPhoneLength, "MIN_PHONE_LENGTH"),
		setInt(&c.Form.MinSearchLength, "MIN_SEARCH_LENGTH"),
	)
	return errors.Join(errs...)
}

func (c *Config) fromFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(c); err != nil {
		return fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.App.Port == "" {
		errs = append(errs, errors.New("APP_PORT is required"))
	}
	if c.App.LogFormat != LogFormatConsole && c.App.LogFormat != LogFormatJSON {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be %q or %q, got %q", LogFormatConsole, LogFormatJSON, c.App.LogFormat))
	}
	if c.App.SessionIdleTimeout < 0 {
		errs = append(errs, errors.New("SESSION_IDLE_TIMEOUT must not be negative"))
	}
	if c.TableCRM.BaseURL == "" {
		errs = append(errs, errors.New("TABLECRM_BASE_URL is required"))
	}
	if c.TableCRM.Timeout <= 0 {
		errs = append(errs, errors.New("TABLECRM_TIMEOUT must be positive"))
	}
	if c.TableCRM.CatalogTTL < 0 || c.TableCRM.ProductTTL < 0 {
		errs = append(errs, errors.New("cache TTLs must not be negative"))
	}
	if c.TableCRM.ProductLimit <= 0 {
		errs = append(errs, errors.New("PRODUCT_LIMIT must be positive"))
	}
	if c.Form.MinPhoneLength <= 0 || c.Form.MinSearchLength <= 0 {
		errs = append(errs, errors.New("MIN_PHONE_LENGTH and MIN_SEARCH_LENGTH must be positive"))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, v)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q", key, v)
	}
	*dst = d
	return nil
}
