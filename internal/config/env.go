package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// CredentialEnv names the environment variables holding broker credentials.
type CredentialEnv struct {
	APIKey       string `yaml:"api_key"`
	ClientCode   string `yaml:"client_code"`
	AuthToken    string `yaml:"auth_token"`
	RefreshToken string `yaml:"refresh_token"`
	FeedToken    string `yaml:"feed_token"`
}

// DefaultCredentialEnv returns the variable names written by the broker login flow.
func DefaultCredentialEnv() CredentialEnv {
	return CredentialEnv{
		APIKey:       "API_KEY",
		ClientCode:   "CLIENT_CODE",
		AuthToken:    "jwtToken",
		RefreshToken: "refreshToken",
		FeedToken:    "feedToken",
	}
}

// Credentials are the session secrets shared by the REST client and the stream.
type Credentials struct {
	APIKey       string
	ClientCode   string
	AuthToken    string
	RefreshToken string
	FeedToken    string
}

// LoadCredentials reads credentials from the environment after a best-effort load of the given
// dotenv files (".env" when none are given). Variables already set in the process win.
func LoadCredentials(names CredentialEnv, files ...string) (Credentials, error) {
	_ = godotenv.Load(files...)

	creds := Credentials{
		APIKey:       os.Getenv(names.APIKey),
		ClientCode:   os.Getenv(names.ClientCode),
		AuthToken:    os.Getenv(names.AuthToken),
		RefreshToken: os.Getenv(names.RefreshToken),
		FeedToken:    os.Getenv(names.FeedToken),
	}

	var missing []string
	for name, v := range map[string]string{
		names.APIKey:     creds.APIKey,
		names.ClientCode: creds.ClientCode,
		names.AuthToken:  creds.AuthToken,
		names.FeedToken:  creds.FeedToken,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return creds, fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return creds, nil
}

// ErrMissingCredentials is returned when a required credential variable is unset.
var ErrMissingCredentials = errors.New("config: missing credentials")
