package config

import (
	"fmt"
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application's configuration values.
// It is populated once at startup and treated as immutable afterwards;
// components receive the sections they need rather than reading env vars.
type Config struct {
	AppEnv     string `envconfig:"APP_ENV" default:"development"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	HttpServer ServerConfig
	GrpcServer GrpcServerConfig
	Postgres   PostgresConfig
	JWT        JWTConfig
	ShopDir    ShopDirectoryConfig
	Blob       BlobConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port         string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle  time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
// The gRPC port only exposes the standard health and reflection services.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// PostgresConfig holds PostgreSQL database connection details.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	DBName   string `envconfig:"POSTGRES_DBNAME" required:"true"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName)
}

// JWTConfig holds the verification material for tokens minted by the auth
// service. Secret and algorithm must match the issuer's.
type JWTConfig struct {
	Secret    string `envconfig:"JWT_SECRET" required:"true"`
	Algorithm string `envconfig:"JWT_ALGORITHM" default:"HS256"`
}

// ShopDirectoryConfig points at the external shop service used to resolve
// which shops a user owns.
type ShopDirectoryConfig struct {
	BaseURL string        `envconfig:"SHOP_SERVICE_URL" default:"http://127.0.0.1:8001/api/shops/"`
	Timeout time.Duration `envconfig:"SHOP_SERVICE_TIMEOUT" default:"5s"`
}

// BlobConfig configures local storage for uploaded product images.
type BlobConfig struct {
	Dir     string `envconfig:"BLOB_DIR" default:"./product_images"`
	BaseURL string `envconfig:"BLOB_BASE_URL" default:"/media/product_images"`
}

// Load initializes the configuration from environment variables.
// It should be called once during application startup.
func Load() (*Config, error) {
	log.Println("Loading service configuration...")
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}

	log.Printf("Configuration loaded successfully for APP_ENV: %s", cfg.AppEnv)
	return &cfg, nil
}
