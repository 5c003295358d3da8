package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Gateway  GatewayConfig
	Terminal TerminalConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	Schema   string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret        string
	AccessExpiry  int // in minutes
	RefreshExpiry int // in days
}

// GatewayConfig holds the card payment gateway credentials
type GatewayConfig struct {
	SecretKey     string
	WebhookSecret string
}

// TerminalConfig holds settings for the cashier terminal binary
type TerminalConfig struct {
	APIBaseURL string
	StoreName  string
	CartPath   string
	PageSize   int
}

func Load() *Config {
	// .env values become visible to AutomaticEnv below
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not read .env file: %v", err)
	}
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("JWT_ACCESS_EXPIRY", 15)
	viper.SetDefault("JWT_REFRESH_EXPIRY", 7)
	viper.SetDefault("TERMINAL_API_URL", "http://localhost:8080")
	viper.SetDefault("TERMINAL_STORE_NAME", "ACME Store")
	viper.SetDefault("TERMINAL_CART_PATH", ".pos-register/cart.json")
	viper.SetDefault("TERMINAL_PAGE_SIZE", 100)

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
			Env:  viper.GetString("SERVER_ENV"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			Database: viper.GetString("DB_DATABASE"),
			Schema:   viper.GetString("DB_SCHEMA"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:        viper.GetString("JWT_SECRET"),
			AccessExpiry:  viper.GetInt("JWT_ACCESS_EXPIRY"),
			RefreshExpiry: viper.GetInt("JWT_REFRESH_EXPIRY"),
		},
		Gateway: GatewayConfig{
			SecretKey:     viper.GetString("GATEWAY_SECRET_KEY"),
			WebhookSecret: viper.GetString("GATEWAY_WEBHOOK_SECRET"),
		},
		Terminal: TerminalConfig{
			APIBaseURL: viper.GetString("TERMINAL_API_URL"),
			StoreName:  viper.GetString("TERMINAL_STORE_NAME"),
			CartPath:   viper.GetString("TERMINAL_CART_PATH"),
			PageSize:   viper.GetInt("TERMINAL_PAGE_SIZE"),
		},
	}
}
