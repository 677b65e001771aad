package config

import "time"

// DatabaseConfig holds the pgx/sqlx connection pool settings. Mirrors the
// teacher's database Config but drops the ent-specific fields since storage
// is accessed directly through pgx/sqlx here.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoadDatabaseConfigFromEnv loads DB_* environment variables with
// production defaults, matching the teacher's database config loader.
func LoadDatabaseConfigFromEnv() (*DatabaseConfig, error) {
	port, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, &ValidationError{Component: "database", Field: "DB_PORT", Err: err}
	}

	maxOpen, err := getEnvInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, &ValidationError{Component: "database", Field: "DB_MAX_OPEN_CONNS", Err: err}
	}

	maxIdle, err := getEnvInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, &ValidationError{Component: "database", Field: "DB_MAX_IDLE_CONNS", Err: err}
	}

	maxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour)
	if err != nil {
		return nil, &ValidationError{Component: "database", Field: "DB_CONN_MAX_LIFETIME", Err: err}
	}

	maxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute)
	if err != nil {
		return nil, &ValidationError{Component: "database", Field: "DB_CONN_MAX_IDLE_TIME", Err: err}
	}

	cfg := &DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            port,
		User:            getEnv("DB_USER", "sessionwave"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "sessionwave"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: maxLifetime,
		ConnMaxIdleTime: maxIdleTime,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks internal consistency of the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Password == "" {
		return &ValidationError{Component: "database", Field: "DB_PASSWORD", Err: ErrMissingRequiredField}
	}
	if c.MaxOpenConns < 1 {
		return &ValidationError{Component: "database", Field: "MaxOpenConns", Err: ErrInvalidValue}
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return &ValidationError{Component: "database", Field: "MaxIdleConns", Err: ErrInvalidValue}
	}
	if c.MaxIdleConns < 0 {
		return &ValidationError{Component: "database", Field: "MaxIdleConns", Err: ErrInvalidValue}
	}
	return nil
}
