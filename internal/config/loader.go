package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

// GetConfig loads the configuration once per process and returns the same
// instance on every call. The returned Config must be treated as read-only.
func GetConfig() (*Config, error) {
	initOnce.Do(func() {
		globalConfig, globalErr = Load()
	})

	return globalConfig, globalErr
}

// Load sets default values to a fresh Config, then overrides them with a .json config file
// (the path is stored in the CONFIG_PATH environment variable), then with environment
// variables, and finally validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if err := loadFromJSON(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from JSON: %w", err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Server = ServerConfig{
		Port:            "8080",
		Host:            "0.0.0.0",
		ReadTimeout:     Duration(30 * time.Second),
		WriteTimeout:    Duration(30 * time.Second),
		ShutdownTimeout: Duration(10 * time.Second),
	}

	cfg.Database = DatabaseConfig{
		Host:           "localhost",
		Port:           "5432",
		User:           "postgres",
		Password:       "password",
		DBName:         "tasks",
		SSLMode:        "disable",
		MigrationsPath: "migrations",
		MaxOpenConns:   10,
	}

	cfg.Redis = RedisConfig{
		Addr:     "localhost:6379",
		Password: "",
		DB:       0,
	}

	// Secrets have no defaults on purpose: startup fails until both are provided.
	cfg.JWT = JWTConfig{
		AccessTokenTTL:  Duration(15 * time.Minute),
		RefreshTokenTTL: Duration(7 * 24 * time.Hour),
		Issuer:          "tasks-auth",
	}

	cfg.Session = SessionConfig{
		SweepInterval:      Duration(time.Hour),
		MaxRefreshAttempts: 0,
		AttemptWindow:      Duration(time.Minute),
	}

	cfg.Cookie = CookieConfig{
		AccessName:  "accessToken",
		RefreshName: "refreshToken",
		Path:        "/",
		Secure:      true,
	}

	cfg.Log = LogConfig{
		Level: "info",
	}
}

func loadFromJSON(cfg *Config) error {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(cfg)
}

// loadFromEnv unmarshalles env variables for config from enviroment
func loadFromEnv(cfg *Config) error {
	return env.Parse(cfg)
}

// getConfigPath reads path to .json config from CONFIG_PATH env variable
func getConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return filepath.Join("config", "config.json")
}

func validate(cfg *Config) error {
	validate := validator.New()

	// Custom validation for Duration type: must be greater than 0
	if err := validate.RegisterValidation("duration_gt0", func(fl validator.FieldLevel) bool {
		d, ok := fl.Field().Interface().(Duration)
		return ok && d > 0
	}); err != nil {
		return err
	}

	return validate.Struct(cfg)
}
