package db

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

// DefaultConfig returns the named default profile targeting a local
// development database.
func DefaultConfig() *Config {
	return &Config{
		Host:            "127.0.0.1",
		Port:            3306,
		Database:        "dev",
		Username:        "root",
		Charset:         "utf8mb4",
		Collation:       "utf8mb4_unicode_ci",
		TimeZone:        "UTC",
		ConnectTimeout:  15 * time.Second,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		Logging:         LoggingConfig{Level: "error"},
	}
}

// Validate checks if the database configuration is valid
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: database host is required", ErrMissingConfig)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: database port must be between 1 and 65535, got %d", ErrMissingConfig, c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("%w: database name is required", ErrMissingConfig)
	}
	if c.Username == "" {
		return fmt.Errorf("%w: database username is required", ErrMissingConfig)
	}
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("%w: max_open_conns must be at least 1", ErrMissingConfig)
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("%w: max_idle_conns cannot be greater than max_open_conns", ErrMissingConfig)
	}

	// Validate TLS configuration if SSL is enabled
	if c.SSL.Enabled && !c.SSL.SkipVerify {
		if err := c.validateTLSFiles(); err != nil {
			return fmt.Errorf("TLS configuration error: %w", err)
		}
	}

	return nil
}

// validateTLSFiles validates that TLS certificate files exist and are readable
func (c *Config) validateTLSFiles() error {
	if c.SSL.CAFile != "" {
		if _, err := os.Stat(c.SSL.CAFile); err != nil {
			return fmt.Errorf("CA file not accessible: %w", err)
		}
	}

	if c.SSL.CertFile != "" || c.SSL.KeyFile != "" {
		// Both cert and key must be provided together
		if c.SSL.CertFile == "" || c.SSL.KeyFile == "" {
			return fmt.Errorf("both CertFile and KeyFile must be provided together")
		}

		if _, err := os.Stat(c.SSL.CertFile); err != nil {
			return fmt.Errorf("client certificate file not accessible: %w", err)
		}

		if _, err := os.Stat(c.SSL.KeyFile); err != nil {
			return fmt.Errorf("client key file not accessible: %w", err)
		}
	}

	return nil
}

// GetDSN returns the MySQL Data Source Name using the official MySQL driver config builder
func (c *Config) GetDSN() (string, error) {
	cfg := mysql.Config{
		User:      c.Username,
		Passwd:    c.Password,
		Net:       "tcp",
		Addr:      fmt.Sprintf("%s:%d", c.Host, c.Port),
		DBName:    c.Database,
		Collation: c.Collation,
		Loc:       parseLocation(c.TimeZone),
		Timeout:   c.ConnectTimeout,
		ParseTime: true,
		// ClientFoundRows makes UPDATE affected-row counts mean "rows
		// matched" rather than "rows changed". The repository layer infers
		// row existence from affected counts, so an update that rewrites
		// identical values must still count its row.
		ClientFoundRows:      true,
		AllowNativePasswords: true,
	}

	if c.SSL.Enabled {
		if c.SSL.SkipVerify {
			cfg.TLSConfig = "skip-verify"
		} else {
			tlsConfig := &tls.Config{}

			if c.SSL.CAFile != "" {
				caCert, err := os.ReadFile(c.SSL.CAFile)
				if err != nil {
					return "", fmt.Errorf("failed to read CA file: %w", err)
				}
				pool := x509.NewCertPool()
				if !pool.AppendCertsFromPEM(caCert) {
					return "", fmt.Errorf("invalid CA certificate in %s", c.SSL.CAFile)
				}
				tlsConfig.RootCAs = pool
			}

			if c.SSL.CertFile != "" && c.SSL.KeyFile != "" {
				cert, err := tls.LoadX509KeyPair(c.SSL.CertFile, c.SSL.KeyFile)
				if err != nil {
					return "", fmt.Errorf("failed to load client certificate: %w", err)
				}
				tlsConfig.Certificates = []tls.Certificate{cert}
			}

			if c.SSL.ServerName != "" {
				tlsConfig.ServerName = c.SSL.ServerName
			}

			// Register under a config-derived name so multiple Config
			// instances with different TLS material don't collide.
			tlsName := c.generateTLSConfigName()
			if err := mysql.RegisterTLSConfig(tlsName, tlsConfig); err != nil {
				return "", fmt.Errorf("failed to register TLS config: %w", err)
			}
			cfg.TLSConfig = tlsName
		}
	}

	return cfg.FormatDSN(), nil
}

// generateTLSConfigName creates a unique name for TLS config registration
// based on the SSL configuration to prevent collisions between multiple Config instances
func (c *Config) generateTLSConfigName() string {
	h := sha256.New()
	h.Write([]byte(c.SSL.CAFile))
	h.Write([]byte(c.SSL.CertFile))
	h.Write([]byte(c.SSL.KeyFile))
	h.Write([]byte(c.SSL.ServerName))
	hash := hex.EncodeToString(h.Sum(nil))[:16]
	return fmt.Sprintf("repo4go_tls_%s", hash)
}

// parseLocation parses timezone string to *time.Location
func parseLocation(tz string) *time.Location {
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		// Fallback to UTC if timezone parsing fails
		loc, _ = time.LoadLocation("UTC")
	}
	return loc
}

// logLevel maps the configured level name to a zerolog level
func logLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "silent":
		return zerolog.Disabled
	default:
		return zerolog.ErrorLevel
	}
}
