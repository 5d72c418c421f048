package config

import (
	"time"

	"github.com/spf13/viper"
)

// LedgerConfig holds the policy switches and retry budget of the ledger core
type LedgerConfig struct {
	AllowSelfTransfer            bool
	AllowReRequestAfterRejection bool
	MaxRetries                   int
	RetryBaseDelay               time.Duration
	EventQueueKey                string
	CatalogCacheTTL              time.Duration
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

func LoadLedgerConfig() *LedgerConfig {
	viper.SetDefault("ledger.allow_self_transfer", false)
	viper.SetDefault("ledger.allow_rerequest_after_rejection", true)
	viper.SetDefault("ledger.max_retries", 3)
	viper.SetDefault("ledger.retry_base_delay", 25*time.Millisecond)
	viper.SetDefault("events.queue_key", "ledger_events")
	viper.SetDefault("catalog.cache_ttl", 10*time.Minute)

	return &LedgerConfig{
		AllowSelfTransfer:            viper.GetBool("ledger.allow_self_transfer"),
		AllowReRequestAfterRejection: viper.GetBool("ledger.allow_rerequest_after_rejection"),
		MaxRetries:                   viper.GetInt("ledger.max_retries"),
		RetryBaseDelay:               viper.GetDuration("ledger.retry_base_delay"),
		EventQueueKey:                viper.GetString("events.queue_key"),
		CatalogCacheTTL:              viper.GetDuration("catalog.cache_ttl"),
	}
}

func LoadServerConfig() *ServerConfig {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 15*time.Second)
	viper.SetDefault("server.idle_timeout", 60*time.Second)
	viper.SetDefault("server.request_timeout", 60*time.Second)
	viper.SetDefault("server.shutdown_timeout", 30*time.Second)
	viper.SetDefault("server.allowed_origins", []string{"https://*", "http://*"})

	return &ServerConfig{
		Port:            viper.GetString("server.port"),
		ReadTimeout:     viper.GetDuration("server.read_timeout"),
		WriteTimeout:    viper.GetDuration("server.write_timeout"),
		IdleTimeout:     viper.GetDuration("server.idle_timeout"),
		RequestTimeout:  viper.GetDuration("server.request_timeout"),
		ShutdownTimeout: viper.GetDuration("server.shutdown_timeout"),
		AllowedOrigins:  viper.GetStringSlice("server.allowed_origins"),
	}
}
