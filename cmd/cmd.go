package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/frahmantamala/storefront/internal"
	"github.com/frahmantamala/storefront/pkg/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront",
	Long:  `Telegram Mini-App storefront with hosted-page card payments.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("http_server.port", 8080)
	v.SetDefault("http_server.allowed_origins", "*")
	v.SetDefault("http_server.read_header_timeout", 5*time.Second)
	v.SetDefault("http_server.read_timeout", 15*time.Second)
	v.SetDefault("http_server.write_timeout", 30*time.Second)
	v.SetDefault("http_server.idle_timeout", 60*time.Second)
	v.SetDefault("http_server.webhook_rate_limit", 20)
	v.SetDefault("http_server.webhook_burst", 40)
	v.SetDefault("http_server.public_rate_limit", 1)
	v.SetDefault("http_server.public_burst", 5)

	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)

	v.SetDefault("security.admin_token_ttl", 12*time.Hour)

	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")
	v.SetDefault("observability.tracing.service_name", "storefront")
	v.SetDefault("observability.tracing.sampling_rate", 1.0)

	v.SetDefault("gateway.name", "tinkoff")
	v.SetDefault("gateway.base_url", "https://securepay.tinkoff.ru/v2")
	v.SetDefault("gateway.signature_convention", "password_field")
	v.SetDefault("gateway.sign_nested_objects", true)
	v.SetDefault("gateway.timeout", 30*time.Second)
	v.SetDefault("gateway.taxation", "usn_income")
	v.SetDefault("gateway.default_tax", "none")

	v.SetDefault("reconciler.poll_interval", time.Minute)
	v.SetDefault("reconciler.stale_after", 5*time.Minute)
	v.SetDefault("reconciler.batch_size", 50)
	v.SetDefault("reconciler.workers", 4)
	v.SetDefault("reconciler.queue_size", 100)

	v.SetDefault("telegram.timeout", 5*time.Second)

	v.SetDefault("storefront.currency", "RUB")
}

// loadConfig reads config.yml from path when present. Environment variables
// prefixed with APP_ override any key, e.g. APP_GATEWAY_PASSWORD.
func loadConfig(path string) (*internal.Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(path)
		v.SetConfigName("config")
		v.SetConfigType("yml")
	}
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg internal.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	logger.Init(cfg.Env, logger.Options{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	})

	return &cfg, nil
}

// bindEnv registers keys without a default so Unmarshal sees their
// environment values.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"database.source",
		"http_server.base_url",
		"security.admin_password_hash",
		"security.jwt_secret",
		"observability.logging.level",
		"observability.logging.format",
		"observability.tracing.enabled",
		"observability.tracing.otlp_endpoint",
		"gateway.terminal_key",
		"gateway.password",
		"gateway.strict_response_verification",
		"gateway.success_url",
		"gateway.fail_url",
		"gateway.notification_url",
		"telegram.bot_token",
		"telegram.admin_chat_id",
		"telegram.api_url",
	} {
		_ = v.BindEnv(key)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yml)")

	rootCmd.AddCommand(httpServerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
