package embed

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/insightdeck/insightdeck/pkg/validation"
)

// ErrConfigIncomplete indicates required relay settings are absent. The relay
// fails fast on it and attempts no upstream calls.
var ErrConfigIncomplete = errors.New("embed: configuration incomplete")

// DefaultEmbedURLBase is the report-hosting viewer the embed URL points at.
const DefaultEmbedURLBase = "https://app.powerbi.com/reportEmbed"

// Config holds the server-side settings for the embed token relay. None of
// these are ever accepted from the client.
type Config struct {
	TenantID     string `validate:"required"`
	ClientID     string `validate:"required"`
	ClientSecret string `validate:"required"`
	Scope        string `validate:"required"`
	AuthorityURL string `validate:"required,url"`
	APIBaseURL   string `validate:"required,url"`
	WorkspaceID  string `validate:"required"`
	ReportID     string `validate:"required"`
	EmbedURLBase string `validate:"required,url"`
}

// FromEnv reads relay settings from EMBED_* environment variables. The result
// is not validated here; the relay validates on each token request so a
// partially configured server still boots and serves the rest of the API.
func FromEnv() Config {
	cfg := Config{
		TenantID:     strings.TrimSpace(os.Getenv("EMBED_TENANT_ID")),
		ClientID:     strings.TrimSpace(os.Getenv("EMBED_CLIENT_ID")),
		ClientSecret: strings.TrimSpace(os.Getenv("EMBED_CLIENT_SECRET")),
		Scope:        strings.TrimSpace(os.Getenv("EMBED_SCOPE")),
		AuthorityURL: strings.TrimSpace(os.Getenv("EMBED_AUTHORITY_URL")),
		APIBaseURL:   strings.TrimSpace(os.Getenv("EMBED_API_URL")),
		WorkspaceID:  strings.TrimSpace(os.Getenv("EMBED_WORKSPACE_ID")),
		ReportID:     strings.TrimSpace(os.Getenv("EMBED_REPORT_ID")),
		EmbedURLBase: strings.TrimSpace(os.Getenv("EMBED_URL_BASE")),
	}
	if cfg.EmbedURLBase == "" {
		cfg.EmbedURLBase = DefaultEmbedURLBase
	}
	return cfg
}

// Validate reports the first missing or malformed setting. The message names
// the offending field but never echoes its value.
func (c Config) Validate() error {
	if err := validation.Validator().Struct(c); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return fmt.Errorf("%w: %s", ErrConfigIncomplete, strings.ToLower(ve[0].Field()))
		}
		return ErrConfigIncomplete
	}
	return nil
}
