package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"ideforge/internal/logging"
)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set are left alone. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	logging.Config("loaded environment from %s", path)
	return nil
}

// SigningCredentials is the installer signing material read from the environment.
type SigningCredentials struct {
	CertPath string
	Password string
}

// Complete reports whether both the certificate and the password are set.
func (s SigningCredentials) Complete() bool {
	return s.CertPath != "" && s.Password != ""
}

// Credentials reads the configured signing variables.
func (c SigningConfig) Credentials() SigningCredentials {
	return SigningCredentials{
		CertPath: os.Getenv(c.CertEnv),
		Password: os.Getenv(c.PasswordEnv),
	}
}
