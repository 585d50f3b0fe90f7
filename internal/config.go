package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	Env           string              `mapstructure:"env"`
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Reconciler    ReconcilerConfig    `mapstructure:"reconciler"`
	Telegram      TelegramConfig      `mapstructure:"telegram"`
	Storefront    StorefrontConfig    `mapstructure:"storefront"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	WebhookRateLimit  float64       `mapstructure:"webhook_rate_limit"`
	WebhookBurst      int           `mapstructure:"webhook_burst"`
	PublicRateLimit   float64       `mapstructure:"public_rate_limit"`
	PublicBurst       int           `mapstructure:"public_burst"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

// SecurityConfig guards the admin panel. The panel is a single shared secret, stored as a
// bcrypt hash, exchanged for a short-lived JWT.
type SecurityConfig struct {
	AdminPasswordHash string        `mapstructure:"admin_password_hash"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	AdminTokenTTL     time.Duration `mapstructure:"admin_token_ttl"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GatewayConfig holds the merchant credentials and contract options for the hosted payment page.
type GatewayConfig struct {
	Name                       string        `mapstructure:"name"`
	BaseURL                    string        `mapstructure:"base_url"`
	TerminalKey                string        `mapstructure:"terminal_key"`
	Password                   string        `mapstructure:"password"`
	SignatureConvention        string        `mapstructure:"signature_convention"`
	SignNestedObjects          bool          `mapstructure:"sign_nested_objects"`
	StrictResponseVerification bool          `mapstructure:"strict_response_verification"`
	Timeout                    time.Duration `mapstructure:"timeout"`
	SuccessURL                 string        `mapstructure:"success_url"`
	FailURL                    string        `mapstructure:"fail_url"`
	NotificationURL            string        `mapstructure:"notification_url"`
	Taxation                   string        `mapstructure:"taxation"`
	DefaultTax                 string        `mapstructure:"default_tax"`
}

type ReconcilerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	StaleAfter   time.Duration `mapstructure:"stale_after"`
	BatchSize    int           `mapstructure:"batch_size"`
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
}

type TelegramConfig struct {
	BotToken    string        `mapstructure:"bot_token"`
	AdminChatID string        `mapstructure:"admin_chat_id"`
	APIURL      string        `mapstructure:"api_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type StorefrontConfig struct {
	Currency string `mapstructure:"currency"`
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Gateway.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("gateway config: %v", err))
	}

	if err := c.Reconciler.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("reconciler config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	if c.WebhookRateLimit < 0 {
		return errors.New("webhook_rate_limit must not be negative")
	}
	if c.PublicRateLimit < 0 {
		return errors.New("public_rate_limit must not be negative")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if c.AdminPasswordHash == "" {
		return errors.New("admin_password_hash is required")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 characters")
	}
	if c.AdminTokenTTL <= 0 {
		return errors.New("admin_token_ttl must be positive")
	}
	return nil
}

// Validate reports half-configured merchant settings as a ConfigurationError.
func (c *GatewayConfig) Validate() error {
	if strings.TrimSpace(c.TerminalKey) == "" || strings.TrimSpace(c.Password) == "" {
		return NewConfigurationError("gateway terminal_key and password are required", ErrCodeMissingCredentials)
	}
	if c.BaseURL == "" {
		return NewConfigurationError("gateway base_url is required", ErrCodeMissingCredentials)
	}
	if c.SuccessURL == "" || c.FailURL == "" || c.NotificationURL == "" {
		return NewConfigurationError("gateway success_url, fail_url and notification_url are required", ErrCodeMissingRedirectURL)
	}
	switch c.SignatureConvention {
	case "", "password_field", "trailing":
	default:
		return NewConfigurationError(fmt.Sprintf("unknown signature_convention %q", c.SignatureConvention), ErrCodeMissingCredentials)
	}
	if c.Timeout <= 0 {
		return NewConfigurationError("gateway timeout must be positive", ErrCodeMissingCredentials)
	}
	return nil
}

func (c *ReconcilerConfig) Validate() error {
	if c.PollInterval <= 0 {
		return errors.New("poll_interval must be positive")
	}
	if c.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	return nil
}

// Enabled reports whether operator notifications can be delivered.
func (c *TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.AdminChatID != ""
}
