package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config collects the environment-driven settings shared by the service
// binaries. Each main validates the fields it actually needs.
type Config struct {
	Port            string
	PostgresURL     string
	KafkaBrokers    []string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	AdminAPIKey     string
	APIServiceURL   string
	EmailServiceURL string
	MigrationsPath  string
}

func Load(defaultPort string) *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", defaultPort)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MIGRATIONS_PATH", "file://migrations")

	cfg := &Config{
		Port:            v.GetString("PORT"),
		PostgresURL:     v.GetString("POSTGRES_URL"),
		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		RedisDB:         v.GetInt("REDIS_DB"),
		AdminAPIKey:     v.GetString("ADMIN_API_KEY"),
		APIServiceURL:   v.GetString("API_SERVICE_URL"),
		EmailServiceURL: v.GetString("EMAIL_SERVICE_URL"),
		MigrationsPath:  v.GetString("MIGRATIONS_PATH"),
	}

	if brokers := v.GetString("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	return cfg
}
