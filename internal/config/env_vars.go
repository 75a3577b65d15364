package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jrsteele09/go-magic-auth/internal/errors"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	envVar         = "ENV"
	logLevelEnvVar = "LOG_LEVEL"
)

type EnvVars struct {
	Port     string
	AppName  string
	Env      string
	LogLevel string
}

var _ EnvConfig = EnvVars{}

func loadEnvVars() EnvVars {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return EnvVars{
		Port:     port,
		AppName:  GetEnv(appNameVar, "Magic Auth"),
		Env:      strings.ToUpper(GetEnv(envVar, "DEV")),
		LogLevel: GetEnv(logLevelEnvVar, "info"),
	}
}

func (e EnvVars) GetPort() string {
	return e.Port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return e.Env
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func GetEnv(envVar, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(envVar))
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvDuration parses a Go duration string. Unset means defaultValue; an unparsable or
// non-positive value is a configuration error rather than a silent fallback.
func GetEnvDuration(envVar string, defaultValue time.Duration) (time.Duration, error) {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, errors.Wrapf(errors.ErrConfig, "%s=%q is not a positive duration", envVar, value)
	}
	return d, nil
}
