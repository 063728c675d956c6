package config

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/MarwanELAdawy/graphql-engine/pkg/auth"
	engerr "github.com/MarwanELAdawy/graphql-engine/pkg/errors"
)

// Environment variables consumed by [LoadAuth]. Both take precedence over
// the corresponding file values.
const (
	// EnvJWTSources holds the token source configuration as a JSON
	// document: either a single source object or an array of sources.
	EnvJWTSources = "ENGINE_JWT_SOURCES"

	// EnvUnauthorizedRole names the role assumed by requests that present
	// no credential. Unset or empty means anonymous access is disabled.
	EnvUnauthorizedRole = "ENGINE_UNAUTHORIZED_ROLE"
)

// authFile is the on-disk shape of the engine's auth configuration.
type authFile struct {
	JWT              []auth.SourceConfig `json:"jwt" yaml:"jwt"`
	UnauthorizedRole string              `json:"unauthorized_role" yaml:"unauthorized_role" env:"UNAUTHORIZED_ROLE"`
}

// LoadAuth resolves the engine's authentication configuration. File values
// (optional; YAML or JSON, selected by extension) are loaded first, then
// [EnvJWTSources] and [EnvUnauthorizedRole] override them. The result is
// validated before being returned.
//
// An empty path skips file loading entirely.
func LoadAuth(path string) (auth.Config, error) {
	var doc authFile

	loader := New().WithEnvPrefix("ENGINE")
	if path != "" {
		loader = loader.WithFile(path)
	}
	if err := loader.Load(&doc); err != nil {
		return auth.Config{}, err
	}

	// The source list is a structured document, beyond what tag-driven
	// env mapping can express, so it is decoded separately.
	if raw, ok := os.LookupEnv(EnvJWTSources); ok && strings.TrimSpace(raw) != "" {
		sources, err := parseSourcesJSON(raw)
		if err != nil {
			return auth.Config{}, err
		}
		doc.JWT = sources
	}

	cfg := auth.Config{
		Sources:          doc.JWT,
		UnauthorizedRole: doc.UnauthorizedRole,
	}
	if err := cfg.Validate(); err != nil {
		return auth.Config{}, err
	}
	return cfg, nil
}

// parseSourcesJSON decodes the source configuration from a JSON document
// holding either a single source object or an array of sources.
func parseSourcesJSON(raw string) ([]auth.SourceConfig, error) {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "[") {
		var sources []auth.SourceConfig
		if err := json.Unmarshal([]byte(trimmed), &sources); err != nil {
			return nil, engerr.Wrapf(err, engerr.CodeConfiguration,
				"config: failed to parse %s as a JSON array of token sources", EnvJWTSources)
		}
		return sources, nil
	}

	var source auth.SourceConfig
	if err := json.Unmarshal([]byte(trimmed), &source); err != nil {
		return nil, engerr.Wrapf(err, engerr.CodeConfiguration,
			"config: failed to parse %s as a JSON token source", EnvJWTSources)
	}
	return []auth.SourceConfig{source}, nil
}
