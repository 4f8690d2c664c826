package db

import "errors"

// Sentinel errors for connection management
var (
	// ErrMissingConfig is returned when no configuration is supplied or a
	// required connection setting is absent or invalid
	ErrMissingConfig = errors.New("database configuration missing or invalid")

	// ErrConnectionFailed is returned when the database cannot be reached
	// or authenticated
	ErrConnectionFailed = errors.New("database connection failed")
)

// IsMissingConfig checks if an error is ErrMissingConfig
func IsMissingConfig(err error) bool {
	return errors.Is(err, ErrMissingConfig)
}

// IsConnectionFailed checks if an error is ErrConnectionFailed
func IsConnectionFailed(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}
