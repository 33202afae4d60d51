package config

import (
	"sync"
)

var (
	globalConfig *Config
	globalErr    error
	initOnce     sync.Once
)

type Config struct {
	Server   ServerConfig   `json:"server" envPrefix:"SERVER_" validate:"required"`
	Database DatabaseConfig `json:"database" envPrefix:"DB_" validate:"required"`
	Redis    RedisConfig    `json:"redis" envPrefix:"REDIS_" validate:"required"`
	JWT      JWTConfig      `json:"jwt" envPrefix:"JWT_" validate:"required"`
	Session  SessionConfig  `json:"session" envPrefix:"SESSION_" validate:"required"`
	Cookie   CookieConfig   `json:"cookie" envPrefix:"COOKIE_" validate:"required"`
	Log      LogConfig      `json:"log" envPrefix:"LOG_" validate:"required"`
}

type ServerConfig struct {
	Port            string   `json:"port" env:"PORT" validate:"required,numeric"`
	Host            string   `json:"host" env:"HOST" validate:"required,hostname|ip"`
	ReadTimeout     Duration `json:"read_timeout" env:"READ_TIMEOUT" validate:"required,duration_gt0"`
	WriteTimeout    Duration `json:"write_timeout" env:"WRITE_TIMEOUT" validate:"required,duration_gt0"`
	ShutdownTimeout Duration `json:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" validate:"required,duration_gt0"`
	AllowedOrigins  []string `json:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:"," validate:"dive,url"`
	TrustProxy      bool     `json:"trust_proxy" env:"TRUST_PROXY"`
}

type DatabaseConfig struct {
	Host           string `json:"host" env:"HOST" validate:"required,hostname|ip"`
	Port           string `json:"port" env:"PORT" validate:"required,numeric"`
	User           string `json:"user" env:"USER" validate:"required"`
	Password       string `json:"password" env:"PASSWORD" validate:"required"`
	DBName         string `json:"db_name" env:"NAME" validate:"required"`
	SSLMode        string `json:"ssl_mode" env:"SSL_MODE" validate:"required,oneof=disable require verify-ca verify-full"`
	MigrationsPath string `json:"migrations_path" env:"MIGRATIONS_PATH" validate:"required"`
	MaxOpenConns   int    `json:"max_open_conns" env:"MAX_OPEN_CONNS" validate:"gte=0"`
}

type RedisConfig struct {
	Addr     string `json:"addr" env:"ADDR" validate:"required,hostname_port"`
	Password string `json:"password" env:"PASSWORD" validate:"omitempty"`
	DB       int    `json:"db" env:"DB" validate:"gte=0"`
}

// JWTConfig holds the two signing secrets. They must differ so that a leaked
// access secret cannot be used to mint refresh tokens and vice versa.
type JWTConfig struct {
	AccessSecret    string   `json:"access_secret" env:"ACCESS_SECRET" validate:"required,min=32"`
	RefreshSecret   string   `json:"refresh_secret" env:"REFRESH_SECRET" validate:"required,min=32,nefield=AccessSecret"`
	AccessTokenTTL  Duration `json:"access_token_ttl" env:"ACCESS_TOKEN_TTL" validate:"required,duration_gt0"`
	RefreshTokenTTL Duration `json:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" validate:"required,duration_gt0"`
	Issuer          string   `json:"issuer" env:"ISSUER" validate:"required"`
}

// SessionConfig controls refresh-session housekeeping. A zero SweepInterval
// disables the background sweeper; expired rows are then only filtered out on read.
// A zero MaxRefreshAttempts disables refresh throttling.
type SessionConfig struct {
	SweepInterval      Duration `json:"sweep_interval" env:"SWEEP_INTERVAL" validate:"gte=0"`
	MaxRefreshAttempts int      `json:"max_refresh_attempts" env:"MAX_REFRESH_ATTEMPTS" validate:"gte=0"`
	AttemptWindow      Duration `json:"attempt_window" env:"ATTEMPT_WINDOW" validate:"required,duration_gt0"`
}

type CookieConfig struct {
	AccessName  string `json:"access_name" env:"ACCESS_NAME" validate:"required"`
	RefreshName string `json:"refresh_name" env:"REFRESH_NAME" validate:"required,nefield=AccessName"`
	Domain      string `json:"domain" env:"DOMAIN" validate:"omitempty,hostname"`
	Path        string `json:"path" env:"PATH" validate:"required,startswith=/"`
	Secure      bool   `json:"secure" env:"SECURE"`
}

type LogConfig struct {
	Level string `json:"level" env:"LEVEL" validate:"required,oneof=debug info warn error"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}
