package apporbit

import (
	"errors"
	"fmt"
	"net/url"
)

// ConfigMustString returns the string value for the given key.
// It panics if the key doesn't exist or the value is empty.
//
// Example:
//
//	baseURL := apporbit.ConfigMustString("api.baseUrl", "Set AO__API__BASE_URL environment variable")
func ConfigMustString(key, helpMsg string) string {
	if !Config.Exists(key) {
		panic(fmt.Sprintf("required config '%s' not set: %s", key, helpMsg))
	}
	value := Config.String(key)
	if value == "" {
		panic(fmt.Sprintf("required config '%s' is empty: %s", key, helpMsg))
	}
	return value
}

// ValidateIntRange validates that a value is within the given range (inclusive).
func ValidateIntRange(value, minVal, maxVal int) error {
	if value < minVal || value > maxVal {
		return fmt.Errorf("must be between %d and %d, got: %d", minVal, maxVal, value)
	}
	return nil
}

// ValidatePort validates that a port number is valid (1-65535).
func ValidatePort(port int) error {
	return ValidateIntRange(port, 1, 65535)
}

// ValidateURL validates that a string is a usable absolute URL.
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return errors.New("URL cannot be empty")
	}
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" {
		return errors.New("URL must have a scheme (http:// or https://)")
	}
	if parsed.Host == "" {
		return errors.New("URL must have a host")
	}
	return nil
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Key     string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

// ValidateConfig performs validation of critical configuration values.
// Returns all validation errors found, or nil if configuration is valid.
//
// This should be called early in initialization to fail fast on
// misconfigurations.
func ValidateConfig() []ValidationError {
	var errs []ValidationError

	if Config.Exists("server.port") {
		if err := ValidatePort(Config.Int("server.port")); err != nil {
			errs = append(errs, ValidationError{Key: "server.port", Message: err.Error()})
		}
	}

	if Config.Exists("api.baseUrl") {
		if err := ValidateURL(Config.String("api.baseUrl")); err != nil {
			errs = append(errs, ValidationError{Key: "api.baseUrl", Message: err.Error()})
		}
	}

	if Config.Exists("auth.tokenExpiry") {
		if Config.Duration("auth.tokenExpiry") <= 0 {
			errs = append(errs, ValidationError{Key: "auth.tokenExpiry", Message: "must be positive"})
		}
	}

	if Config.Exists("client.roleMaxAge") {
		if Config.Duration("client.roleMaxAge") < 0 {
			errs = append(errs, ValidationError{Key: "client.roleMaxAge", Message: "must be non-negative"})
		}
	}

	return errs
}
