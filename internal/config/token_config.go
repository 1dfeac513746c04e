package config

import (
	"time"

	"github.com/rs/zerolog/log"
)

const (
	signingSecretEnvVar     = "JWT_SECRET"
	accessTokenExpiryEnvVar = "ACCESS_TOKEN_EXPIRY"
	refreshWindowEnvVar     = "REFRESH_WINDOW"
	issuerEnvVar            = "TOKEN_ISSUER"

	devSigningSecret = "rally-stub-development-signing-secret"
)

type TokenConfig interface {
	GetSigningSecret() string
	GetIssuer() string
	GetAccessTokenExpiry() time.Duration
	// GetRefreshWindow is how long after expiry a token may still be refreshed
	GetRefreshWindow() time.Duration
}

type Tokens struct{}

var _ TokenConfig = Tokens{}

func (Tokens) GetSigningSecret() string {
	return GetEnv(signingSecretEnvVar, devSigningSecret)
}

func (Tokens) GetIssuer() string {
	return GetEnv(issuerEnvVar, "rally-stub")
}

func (Tokens) GetAccessTokenExpiry() time.Duration {
	return getDuration(accessTokenExpiryEnvVar, 30*time.Minute)
}

func (Tokens) GetRefreshWindow() time.Duration {
	return getDuration(refreshWindowEnvVar, 7*24*time.Hour)
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	raw := GetEnv(envVar, "")
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn().Str("var", envVar).Str("value", raw).Msg("Invalid duration, using default")
		return defaultValue
	}
	return d
}
