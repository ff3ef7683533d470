package gateway

import (
	"errors"
	"strings"
)

// CredentialSource names where a credential value came from. Events report
// the source name only; credential values never leave this package.
type CredentialSource string

const (
	SourceSecureStore CredentialSource = "secure_store"
	SourceOAuth       CredentialSource = "oauth"
	SourceAPIKey      CredentialSource = "api_key"
	SourceConfigFile  CredentialSource = "config_file"
)

// CredentialConfig holds the candidate credential values for one provider.
// Callers populate whichever sources they have; resolution picks one.
type CredentialConfig struct {
	// SecureStore is a value retrieved from the OS secure store.
	SecureStore string

	// OAuthToken is a bearer token from an OAuth flow. It is used only when
	// its prefix identifies it as a bearer token.
	OAuthToken string

	// APIKey is a static API key, typically from the environment.
	APIKey string

	// ConfigFile is a key read from the configuration file.
	ConfigFile string
}

// Credential is a resolved credential plus how to present it.
type Credential struct {
	Value  string
	Source CredentialSource
	// Bearer selects Authorization: Bearer over the provider's API-key
	// header scheme.
	Bearer bool
}

// ErrNoCredential is returned when no source yields a usable value.
var ErrNoCredential = errors.New("no credential configured")

var bearerPrefixes = []string{
	"sk-ant-oat", // Anthropic OAuth access token
	"oauth_",
	"ya29.", // Google OAuth2 access token
}

func isBearerToken(value string) bool {
	for _, p := range bearerPrefixes {
		if strings.HasPrefix(value, p) {
			return true
		}
	}
	return false
}

// ResolveCredential picks one credential from the configured sources in
// fixed priority order: secure store, then OAuth bearer, then static API
// key, then config file. The function is pure; the same config always
// resolves to the same credential.
func ResolveCredential(cfg CredentialConfig) (Credential, error) {
	if cfg.SecureStore != "" {
		return Credential{
			Value:  cfg.SecureStore,
			Source: SourceSecureStore,
			Bearer: isBearerToken(cfg.SecureStore),
		}, nil
	}
	if cfg.OAuthToken != "" && isBearerToken(cfg.OAuthToken) {
		return Credential{
			Value:  cfg.OAuthToken,
			Source: SourceOAuth,
			Bearer: true,
		}, nil
	}
	if cfg.APIKey != "" {
		return Credential{
			Value:  cfg.APIKey,
			Source: SourceAPIKey,
			Bearer: isBearerToken(cfg.APIKey),
		}, nil
	}
	if cfg.ConfigFile != "" {
		return Credential{
			Value:  cfg.ConfigFile,
			Source: SourceConfigFile,
			Bearer: isBearerToken(cfg.ConfigFile),
		}, nil
	}
	return Credential{}, ErrNoCredential
}
