package helper

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// DatabaseConfiguration holds the connection parameters for Postgres.
// Values are read from the environment; a .env file is loaded when present.
type DatabaseConfiguration struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConnections int
}

// NewDatabaseConfiguration builds a configuration from the environment.
// Required variables: DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME.
// Optional: DB_SSLMODE (default disable), DB_MAX_OPEN_CONNS (default 10).
func NewDatabaseConfiguration() (*DatabaseConfiguration, error) {
	// A missing .env file is fine, the variables may come from the process env.
	_ = godotenv.Load()

	config := &DatabaseConfiguration{
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     os.Getenv("DB_NAME"),
		SSLMode:  os.Getenv("DB_SSLMODE"),
	}

	if config.Host == "" || config.Port == "" || config.User == "" || config.Password == "" || config.Name == "" {
		return nil, NewError("database configuration validation", fmt.Errorf("missing required database environment variables"))
	}

	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	config.MaxOpenConnections = 10
	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		maxConns, err := strconv.Atoi(v)
		if err != nil {
			return nil, NewError("parse DB_MAX_OPEN_CONNS", err)
		}
		config.MaxOpenConnections = maxConns
	}

	return config, nil
}

// NewDatabaseConfigurationFromURL builds a configuration wrapper around a
// complete connection URL.
func NewDatabaseConfigurationFromURL(url string) *DatabaseConfiguration {
	return &DatabaseConfiguration{Host: url}
}

// ConnectionString returns the lib/pq connection string.
func (c *DatabaseConfiguration) ConnectionString() string {
	// Host doubles as a full URL when the configuration was built from one.
	if c.Port == "" && c.User == "" {
		return c.Host
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}
