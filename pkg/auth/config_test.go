package auth

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerr "github.com/MarwanELAdawy/graphql-engine/pkg/errors"
)

const testSecret = "supersecretsupersecretsupersecret"

func TestSecretRedaction(t *testing.T) {
	t.Parallel()

	s := Secret("hunter2")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", s))
	assert.Equal(t, "hunter2", s.Value())

	out, err := json.Marshal(struct {
		Key Secret `json:"key"`
	}{Key: s})
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hunter2")
}

func TestDurationDecoding(t *testing.T) {
	t.Parallel()

	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"90s"`), &d))
	assert.Equal(t, 90*time.Second, d.Std())

	require.NoError(t, json.Unmarshal([]byte(`30`), &d))
	assert.Equal(t, 30*time.Second, d.Std())

	assert.Error(t, json.Unmarshal([]byte(`"not-a-duration"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestAudienceDecoding(t *testing.T) {
	t.Parallel()

	var a Audience
	require.NoError(t, json.Unmarshal([]byte(`"api"`), &a))
	assert.Equal(t, Audience{"api"}, a)

	require.NoError(t, json.Unmarshal([]byte(`["api","console"]`), &a))
	assert.Equal(t, Audience{"api", "console"}, a)

	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &a))
}

func TestTokenLocationValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		loc     TokenLocation
		wantErr bool
		wantKey string
	}{
		{"zero value is authorization header", TokenLocation{}, false, "authorization"},
		{"explicit authorization", TokenLocation{Type: LocationAuthorizationHeader}, false, "authorization"},
		{"cookie with name", TokenLocation{Type: LocationCookie, Name: "session"}, false, "cookie:session"},
		{"cookie without name", TokenLocation{Type: LocationCookie}, true, ""},
		{"authorization with name", TokenLocation{Type: LocationAuthorizationHeader, Name: "x"}, true, ""},
		{"unknown type", TokenLocation{Type: "query"}, true, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			loc := tt.loc
			err := loc.validate()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, tt.wantKey, loc.key())
		})
	}
}

func TestClaimsStrategyDecoding(t *testing.T) {
	t.Parallel()

	t.Run("empty document is default namespace", func(t *testing.T) {
		t.Parallel()
		var cs ClaimsStrategy
		require.NoError(t, json.Unmarshal([]byte(`{}`), &cs))
		require.NotNil(t, cs.Namespace)
		require.Nil(t, cs.Map)

		require.Nil(t, cs.validate())
		assert.Equal(t, DefaultClaimsNamespace, cs.Namespace.Key)
		assert.Equal(t, ClaimsFormatJSON, cs.Namespace.Format)
	})

	t.Run("namespace with key and format", func(t *testing.T) {
		t.Parallel()
		var cs ClaimsStrategy
		doc := `{"type":"namespace","key":"claims","format":"stringified-json"}`
		require.NoError(t, json.Unmarshal([]byte(doc), &cs))
		require.NotNil(t, cs.Namespace)
		assert.Equal(t, "claims", cs.Namespace.Key)
		assert.Equal(t, ClaimsFormatStringifiedJSON, cs.Namespace.Format)
	})

	t.Run("namespace with path", func(t *testing.T) {
		t.Parallel()
		var cs ClaimsStrategy
		require.NoError(t, json.Unmarshal([]byte(`{"path":"$.app.claims"}`), &cs))
		require.NotNil(t, cs.Namespace)
		assert.Equal(t, "$.app.claims", cs.Namespace.Path)
	})

	t.Run("namespace rejects both key and path", func(t *testing.T) {
		t.Parallel()
		var cs ClaimsStrategy
		require.NoError(t, json.Unmarshal([]byte(`{"key":"a","path":"$.b"}`), &cs))
		require.NotNil(t, cs.validate())
	})

	t.Run("map strategy", func(t *testing.T) {
		t.Parallel()
		var cs ClaimsStrategy
		doc := `{"type":"map","map":{
			"x-engine-allowed-roles": {"path": "$.roles"},
			"x-engine-default-role":  "viewer",
			"x-engine-user-id":       {"path": "$.sub", "default": "unknown"}
		}}`
		require.NoError(t, json.Unmarshal([]byte(doc), &cs))
		require.Nil(t, cs.Namespace)
		require.Len(t, cs.Map, 3)

		roles := cs.Map["x-engine-allowed-roles"]
		assert.True(t, roles.IsPath())
		assert.Equal(t, "$.roles", roles.Path)
		assert.False(t, roles.HasDefault)

		role := cs.Map["x-engine-default-role"]
		assert.False(t, role.IsPath())
		assert.Equal(t, "viewer", role.Literal)

		user := cs.Map["x-engine-user-id"]
		assert.True(t, user.HasDefault)
		assert.Equal(t, "unknown", user.Default)

		require.Nil(t, cs.validate())
	})

	t.Run("map entry with null default", func(t *testing.T) {
		t.Parallel()
		var e ClaimsMapEntry
		require.NoError(t, json.Unmarshal([]byte(`{"path":"$.org","default":null}`), &e))
		assert.True(t, e.HasDefault)
		assert.Nil(t, e.Default)
	})

	t.Run("map entry object without path is a literal", func(t *testing.T) {
		t.Parallel()
		var e ClaimsMapEntry
		require.NoError(t, json.Unmarshal([]byte(`{"plan":"free"}`), &e))
		assert.False(t, e.IsPath())
		assert.Equal(t, map[string]any{"plan": "free"}, e.Literal)
	})

	t.Run("map entry rejects unknown keys next to path", func(t *testing.T) {
		t.Parallel()
		var e ClaimsMapEntry
		assert.Error(t, json.Unmarshal([]byte(`{"path":"$.x","fallback":"y"}`), &e))
	})

	t.Run("unknown strategy type", func(t *testing.T) {
		t.Parallel()
		var cs ClaimsStrategy
		assert.Error(t, json.Unmarshal([]byte(`{"type":"regex"}`), &cs))
	})

	t.Run("map type rejects namespace fields", func(t *testing.T) {
		t.Parallel()
		var cs ClaimsStrategy
		assert.Error(t, json.Unmarshal([]byte(`{"type":"map","key":"claims"}`), &cs))
	})

	t.Run("map strategy requires mandatory entries", func(t *testing.T) {
		t.Parallel()
		var cs ClaimsStrategy
		doc := `{"type":"map","map":{"x-engine-user-id":{"path":"$.sub"}}}`
		require.NoError(t, json.Unmarshal([]byte(doc), &cs))
		err := cs.validate()
		require.NotNil(t, err)
		assert.Equal(t, engerr.CodeConfiguration, err.Code)
	})
}

func TestSourceConfigValidate(t *testing.T) {
	t.Parallel()

	valid := func() SourceConfig {
		return SourceConfig{Algorithm: "HS256", Key: testSecret}
	}

	tests := []struct {
		name    string
		mutate  func(*SourceConfig)
		wantErr bool
	}{
		{"embedded HMAC key", func(c *SourceConfig) {}, false},
		{"remote key set", func(c *SourceConfig) {
			c.Key = ""
			c.Algorithm = ""
			c.JWKSURL = "https://keys.example/jwks.json"
		}, false},
		{"remote key set with pinned RS256", func(c *SourceConfig) {
			c.Key = ""
			c.Algorithm = "RS256"
			c.JWKSURL = "https://keys.example/jwks.json"
		}, false},
		{"neither key nor url", func(c *SourceConfig) {
			c.Key = ""
		}, true},
		{"both key and url", func(c *SourceConfig) {
			c.JWKSURL = "https://keys.example/jwks.json"
		}, true},
		{"embedded key without algorithm", func(c *SourceConfig) {
			c.Algorithm = ""
		}, true},
		{"unsupported algorithm", func(c *SourceConfig) {
			c.Algorithm = "HS1024"
		}, true},
		{"HMAC with remote key set", func(c *SourceConfig) {
			c.Key = ""
			c.JWKSURL = "https://keys.example/jwks.json"
		}, true},
		{"negative clock skew", func(c *SourceConfig) {
			c.ClockSkew = Duration(-time.Second)
		}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				e, ok := engerr.AsError(err)
				require.True(t, ok)
				assert.Equal(t, engerr.CodeConfiguration, e.Code)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestSourceConfigValidMethods(t *testing.T) {
	t.Parallel()

	pinned := SourceConfig{Algorithm: "ES256"}
	assert.Equal(t, []string{"ES256"}, pinned.validMethods())

	remote := SourceConfig{JWKSURL: "https://keys.example/jwks.json"}
	methods := remote.validMethods()
	assert.Contains(t, methods, "RS256")
	assert.Contains(t, methods, "EdDSA")
	assert.NotContains(t, methods, "HS256")
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	err := cfg.Validate()
	require.Error(t, err)

	cfg.Sources = []SourceConfig{{Algorithm: "HS256", Key: testSecret}}
	require.NoError(t, cfg.Validate())

	// Defaults applied in place.
	require.NotNil(t, cfg.Sources[0].Claims.Namespace)
	assert.Equal(t, DefaultClaimsNamespace, cfg.Sources[0].Claims.Namespace.Key)
	assert.Equal(t, LocationAuthorizationHeader, cfg.Sources[0].Location.Type)
}
