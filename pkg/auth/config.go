package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	engerr "github.com/MarwanELAdawy/graphql-engine/pkg/errors"
)

// ---------------------------------------------------------------------------
// Platform conventions
// ---------------------------------------------------------------------------

const (
	// SessionVariablePrefix is the reserved prefix identifying engine session
	// attributes, both inside a token's claims namespace and in plain request
	// headers. Comparison is always case-insensitive.
	SessionVariablePrefix = "x-engine-"

	// AllowedRolesClaim is the mandatory normalized entry listing the roles
	// the token's bearer may assume.
	AllowedRolesClaim = "x-engine-allowed-roles"

	// DefaultRoleClaim is the mandatory normalized entry naming the role
	// used when the caller does not request one explicitly.
	DefaultRoleClaim = "x-engine-default-role"

	// RoleHeader is the request header a caller uses to pick one of its
	// allowed roles for this request.
	RoleHeader = "X-Engine-Role"

	// HeaderAuthorization is the standard bearer-token request header.
	HeaderAuthorization = "Authorization"

	// DefaultClaimsNamespace is the top-level payload key holding engine
	// claims when a source does not configure its own namespace.
	DefaultClaimsNamespace = "https://graphql-engine.dev/jwt/claims"
)

// ---------------------------------------------------------------------------
// Secret type — prevents accidental logging of sensitive values
// ---------------------------------------------------------------------------

// Secret is a string type that redacts its value in String(), GoString(), and
// MarshalText() to prevent accidental exposure in logs, JSON output, or
// fmt.Printf. The actual value is only accessible via the [Secret.Value]
// method, which should be called only where the raw value is truly needed
// (e.g., passing to a cryptographic function).
type Secret string

// secretRedacted is the placeholder text shown instead of the actual secret
// value when the secret is printed, formatted, or serialized.
const secretRedacted = "[REDACTED]"

// String returns the redacted placeholder, preventing the secret from being
// printed via fmt.Println, log.Printf, or similar functions.
func (s Secret) String() string { return secretRedacted }

// GoString returns the redacted placeholder, preventing the secret from being
// printed via fmt.Printf("%#v", secret).
func (s Secret) GoString() string { return secretRedacted }

// Value returns the actual secret string. This is the only way to access the
// underlying value and should be used only where the raw secret is required
// (e.g., building a verification key).
func (s Secret) Value() string { return string(s) }

// MarshalText implements [encoding.TextMarshaler], returning the redacted
// placeholder. This prevents the secret from leaking into JSON, YAML, or
// any other text-based serialization format.
func (s Secret) MarshalText() ([]byte, error) { return []byte(secretRedacted), nil }

// ---------------------------------------------------------------------------
// Signing algorithms
// ---------------------------------------------------------------------------

// supportedAlgorithms lists the JWS algorithms a source may pin. HS* verify
// against an embedded shared secret; the rest are asymmetric.
var supportedAlgorithms = map[string]bool{
	"HS256": true, "HS384": true, "HS512": true,
	"RS256": true, "RS384": true, "RS512": true,
	"PS256": true, "PS384": true, "PS512": true,
	"ES256": true, "ES384": true, "ES512": true,
	"EdDSA": true,
}

// asymmetricAlgorithms lists every supported non-HMAC algorithm. Remote key
// sets never yield HMAC verification: accepting HS* tokens against keys an
// attacker can read would invert the trust model.
var asymmetricAlgorithms = []string{
	"RS256", "RS384", "RS512",
	"PS256", "PS384", "PS512",
	"ES256", "ES384", "ES512",
	"EdDSA",
}

func isHMACAlgorithm(alg string) bool {
	return strings.HasPrefix(alg, "HS")
}

// ---------------------------------------------------------------------------
// Duration — accepts Go duration strings or integer seconds
// ---------------------------------------------------------------------------

// Duration is a time.Duration that unmarshals from either a Go duration
// string ("30s", "2m") or a plain number of seconds, in both JSON and YAML
// configuration documents.
type Duration time.Duration

// Std returns the value as a standard time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := durationFromAny(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := durationFromAny(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON implements json.Marshaler, emitting the Go duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func durationFromAny(raw any) (Duration, error) {
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("cannot parse duration %q: %w", v, err)
		}
		return Duration(parsed), nil
	case float64:
		return Duration(time.Duration(v * float64(time.Second))), nil
	case int:
		return Duration(time.Duration(v) * time.Second), nil
	case int64:
		return Duration(time.Duration(v) * time.Second), nil
	default:
		return 0, fmt.Errorf("cannot parse duration from %T", raw)
	}
}

// ---------------------------------------------------------------------------
// Audience — accepts a single string or a list
// ---------------------------------------------------------------------------

// Audience is the set of audience values a source accepts. Configuration
// documents may supply either a single string or a list of strings.
type Audience []string

// UnmarshalJSON implements json.Unmarshaler.
func (a *Audience) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := audienceFromAny(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (a *Audience) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := audienceFromAny(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func audienceFromAny(raw any) (Audience, error) {
	switch v := raw.(type) {
	case string:
		return Audience{v}, nil
	case []any:
		out := make(Audience, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("audience entries must be strings, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("audience must be a string or a list of strings, got %T", raw)
	}
}

// ---------------------------------------------------------------------------
// Token location
// ---------------------------------------------------------------------------

// LocationType identifies where in a request a source expects its token.
type LocationType string

const (
	// LocationAuthorizationHeader reads the token from the Authorization
	// header using the Bearer scheme. This is the default.
	LocationAuthorizationHeader LocationType = "authorization"

	// LocationCookie reads the token verbatim from a named request cookie.
	LocationCookie LocationType = "cookie"
)

// TokenLocation is the configured request location of a source's token.
// The zero value means the Authorization header.
type TokenLocation struct {
	// Type selects the location kind. Empty is treated as "authorization".
	Type LocationType `json:"type,omitempty" yaml:"type,omitempty"`

	// Name is the cookie name. Required for cookie locations, forbidden
	// otherwise.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// key returns the canonical multimap key for this location. Every source
// sharing a physical header or cookie shares a key.
func (l TokenLocation) key() string {
	if l.Type == LocationCookie {
		return "cookie:" + l.Name
	}
	return "authorization"
}

func (l *TokenLocation) validate() *engerr.Error {
	switch l.Type {
	case "":
		l.Type = LocationAuthorizationHeader
	case LocationAuthorizationHeader:
	case LocationCookie:
		if l.Name == "" {
			return engerr.New(engerr.CodeConfiguration,
				"auth: cookie token location requires a cookie name")
		}
		return nil
	default:
		return engerr.Newf(engerr.CodeConfiguration,
			"auth: unknown token location type %q", l.Type)
	}
	if l.Name != "" {
		return engerr.New(engerr.CodeConfiguration,
			"auth: authorization header location does not take a name")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Claims strategies
// ---------------------------------------------------------------------------

// ClaimsFormat describes how the claims namespace value is encoded inside
// the token payload.
type ClaimsFormat string

const (
	// ClaimsFormatJSON means the namespace value is itself a JSON object.
	ClaimsFormatJSON ClaimsFormat = "json"

	// ClaimsFormatStringifiedJSON means the namespace value is a JSON string
	// whose contents parse as a JSON object.
	ClaimsFormatStringifiedJSON ClaimsFormat = "stringified-json"
)

// NamespaceStrategy locates a sub-object of the token payload that carries
// every engine claim. Exactly one of Key (a top-level payload key, compared
// literally) or Path (a gjson path into the payload, optionally prefixed
// with "$.") selects the sub-object.
type NamespaceStrategy struct {
	Key    string       `json:"key,omitempty" yaml:"key,omitempty"`
	Path   string       `json:"path,omitempty" yaml:"path,omitempty"`
	Format ClaimsFormat `json:"format,omitempty" yaml:"format,omitempty"`
}

func (n *NamespaceStrategy) validate() *engerr.Error {
	if n.Key != "" && n.Path != "" {
		return engerr.New(engerr.CodeConfiguration,
			"auth: claims namespace key and path are mutually exclusive")
	}
	if n.Key == "" && n.Path == "" {
		n.Key = DefaultClaimsNamespace
	}
	switch n.Format {
	case "":
		n.Format = ClaimsFormatJSON
	case ClaimsFormatJSON, ClaimsFormatStringifiedJSON:
	default:
		return engerr.Newf(engerr.CodeConfiguration,
			"auth: unknown claims format %q", n.Format)
	}
	return nil
}

// ClaimsMapEntry is one output entry of the explicit claims-map strategy:
// either a literal JSON value used as-is, or a gjson path evaluated against
// the entire token payload with an optional default used when the path
// resolves to nothing.
//
// In configuration documents, an object carrying a "path" key is the path
// form; any other value is a literal:
//
//	"x-engine-default-role": "viewer"
//	"x-engine-user-id":      {"path": "$.sub"}
//	"x-engine-org":          {"path": "$.org.slug", "default": "public"}
type ClaimsMapEntry struct {
	// Literal is the literal value, valid when Path is empty.
	Literal any

	// Path is the gjson lookup path into the full token payload.
	Path string

	// Default is used when Path resolves to nothing. Only meaningful when
	// HasDefault is true; a configured default may legitimately be nil.
	Default    any
	HasDefault bool
}

// IsPath reports whether the entry is a path lookup rather than a literal.
func (e ClaimsMapEntry) IsPath() bool { return e.Path != "" }

// UnmarshalJSON implements json.Unmarshaler.
func (e *ClaimsMapEntry) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return e.fromAny(raw)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *ClaimsMapEntry) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return e.fromAny(raw)
}

func (e *ClaimsMapEntry) fromAny(raw any) error {
	obj, ok := raw.(map[string]any)
	if !ok {
		e.Literal = raw
		return nil
	}
	pathVal, hasPath := obj["path"]
	if !hasPath {
		// An object without a "path" key is a literal object value.
		e.Literal = raw
		return nil
	}
	path, ok := pathVal.(string)
	if !ok || path == "" {
		return fmt.Errorf("claims map entry path must be a non-empty string")
	}
	for k := range obj {
		if k != "path" && k != "default" {
			return fmt.Errorf("claims map entry has unknown key %q", k)
		}
	}
	e.Path = path
	if def, hasDefault := obj["default"]; hasDefault {
		e.Default = def
		e.HasDefault = true
	}
	return nil
}

// ClaimsMap maps output claim names to their sources for the explicit
// claims-map strategy.
type ClaimsMap map[string]ClaimsMapEntry

func (m ClaimsMap) validate() *engerr.Error {
	if _, ok := m[AllowedRolesClaim]; !ok {
		return engerr.Newf(engerr.CodeConfiguration,
			"auth: claims map must define %q", AllowedRolesClaim)
	}
	if _, ok := m[DefaultRoleClaim]; !ok {
		return engerr.Newf(engerr.CodeConfiguration,
			"auth: claims map must define %q", DefaultRoleClaim)
	}
	return nil
}

// ClaimsStrategy is the tagged union of the two claim-extraction strategies.
// Exactly one of Namespace or Map is set after decoding; the zero value
// decodes to the default namespace strategy. The union is dispatched once at
// configuration load, never per request.
type ClaimsStrategy struct {
	Namespace *NamespaceStrategy
	Map       ClaimsMap
}

// claimsStrategyDoc is the wire shape of a claims strategy in configuration
// documents.
type claimsStrategyDoc struct {
	Type   string       `json:"type" yaml:"type"`
	Key    string       `json:"key" yaml:"key"`
	Path   string       `json:"path" yaml:"path"`
	Format ClaimsFormat `json:"format" yaml:"format"`
	Map    ClaimsMap    `json:"map" yaml:"map"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ClaimsStrategy) UnmarshalJSON(data []byte) error {
	var doc claimsStrategyDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	return c.fromDoc(doc)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *ClaimsStrategy) UnmarshalYAML(node *yaml.Node) error {
	var doc claimsStrategyDoc
	if err := node.Decode(&doc); err != nil {
		return err
	}
	return c.fromDoc(doc)
}

func (c *ClaimsStrategy) fromDoc(doc claimsStrategyDoc) error {
	switch doc.Type {
	case "", "namespace":
		if len(doc.Map) > 0 {
			return fmt.Errorf("namespace claims strategy does not take a map")
		}
		c.Namespace = &NamespaceStrategy{Key: doc.Key, Path: doc.Path, Format: doc.Format}
		c.Map = nil
	case "map":
		if doc.Key != "" || doc.Path != "" || doc.Format != "" {
			return fmt.Errorf("map claims strategy does not take namespace fields")
		}
		if len(doc.Map) == 0 {
			return fmt.Errorf("map claims strategy requires a non-empty map")
		}
		c.Namespace = nil
		c.Map = doc.Map
	default:
		return fmt.Errorf("unknown claims strategy type %q", doc.Type)
	}
	return nil
}

func (c *ClaimsStrategy) validate() *engerr.Error {
	if c.Namespace == nil && c.Map == nil {
		c.Namespace = &NamespaceStrategy{}
	}
	if c.Namespace != nil && c.Map != nil {
		return engerr.New(engerr.CodeConfiguration,
			"auth: claims strategy cannot be both namespace and map")
	}
	if c.Namespace != nil {
		return c.Namespace.validate()
	}
	return c.Map.validate()
}

// ---------------------------------------------------------------------------
// SourceConfig — one trust domain
// ---------------------------------------------------------------------------

// SourceConfig is the static configuration for one JWT trust domain.
// Exactly one of Key (embedded key material) and JWKSURL (a remote key set
// to fetch and keep refreshed) must be set. Immutable after [Config.Validate].
type SourceConfig struct {
	// Key is embedded key material: the shared secret for HS* algorithms,
	// or a PEM-encoded public key (or certificate) for asymmetric ones.
	Key Secret `json:"key,omitempty" yaml:"key,omitempty"`

	// Algorithm is the JWS algorithm tokens from this source are signed
	// with. Required alongside Key; optional alongside JWKSURL, where it
	// pins verification to a single asymmetric algorithm instead of the
	// full asymmetric family.
	Algorithm string `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`

	// JWKSURL is the remote JWK set endpoint for this source. The set is
	// fetched synchronously at startup and kept refreshed in the background.
	JWKSURL string `json:"jwks_url,omitempty" yaml:"jwks_url,omitempty"`

	// Issuer, when set, is the exact "iss" value tokens must carry. It also
	// disambiguates between sources sharing a request location.
	Issuer string `json:"issuer,omitempty" yaml:"issuer,omitempty"`

	// Audience, when non-empty, requires the token's audience list to
	// intersect it.
	Audience Audience `json:"audience,omitempty" yaml:"audience,omitempty"`

	// ClockSkew is the allowed clock difference when checking token expiry.
	// Defaults to zero.
	ClockSkew Duration `json:"clock_skew,omitempty" yaml:"clock_skew,omitempty"`

	// Location is where in the request this source's token is presented.
	// Defaults to the Authorization header.
	Location TokenLocation `json:"location,omitempty" yaml:"location,omitempty"`

	// Claims selects how engine claims are extracted from the verified
	// payload. Defaults to the namespace strategy with
	// [DefaultClaimsNamespace] and JSON format.
	Claims ClaimsStrategy `json:"claims,omitempty" yaml:"claims,omitempty"`
}

// Validate checks the source for logical correctness and applies defaults
// in place. Returns a *[engerr.Error] with code [engerr.CodeConfiguration]
// if any field is invalid.
func (c *SourceConfig) Validate() error {
	hasKey := c.Key.Value() != ""
	hasURL := c.JWKSURL != ""
	if hasKey == hasURL {
		return engerr.New(engerr.CodeConfiguration,
			"auth: exactly one of key and jwks_url must be set")
	}

	if c.Algorithm != "" && !supportedAlgorithms[c.Algorithm] {
		return engerr.Newf(engerr.CodeConfiguration,
			"auth: unsupported algorithm %q", c.Algorithm)
	}
	if hasKey && c.Algorithm == "" {
		return engerr.New(engerr.CodeConfiguration,
			"auth: algorithm is required with an embedded key")
	}
	if hasURL && isHMACAlgorithm(c.Algorithm) {
		return engerr.New(engerr.CodeConfiguration,
			"auth: HMAC algorithms cannot be used with a remote key set")
	}

	if c.ClockSkew < 0 {
		return engerr.New(engerr.CodeConfiguration,
			"auth: clock skew must be non-negative")
	}

	if err := c.Location.validate(); err != nil {
		return err
	}
	if err := c.Claims.validate(); err != nil {
		return err
	}
	return nil
}

// validMethods returns the JWS algorithms verification accepts for this
// source: the pinned algorithm if one is configured, else the asymmetric
// family (remote sources always have one of the two).
func (c *SourceConfig) validMethods() []string {
	if c.Algorithm != "" {
		return []string{c.Algorithm}
	}
	return asymmetricAlgorithms
}

// ---------------------------------------------------------------------------
// Config — the whole subsystem
// ---------------------------------------------------------------------------

// Config holds the authentication subsystem's startup configuration: one or
// more JWT sources plus the optional unauthenticated fallback role.
type Config struct {
	// Sources are the configured trust domains. At least one is required.
	Sources []SourceConfig `json:"sources" yaml:"sources"`

	// UnauthorizedRole, when set, is the role assumed by requests that carry
	// no credential at all. Ambiguous or issuer-mismatched credentials are
	// never eligible for this fallback.
	UnauthorizedRole string `json:"unauthorized_role,omitempty" yaml:"unauthorized_role,omitempty"`

	// HTTPClient fetches remote key sets. If nil, a default [http.Client]
	// with a 10-second timeout is used. TLS and proxy concerns belong to
	// the client, not this package.
	HTTPClient HTTPClient `json:"-" yaml:"-"`

	// Logger receives refresh and rejection events. If nil, [slog.Default]
	// is used.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// Validate checks the configuration for logical correctness and applies
// per-source defaults in place. A broken source is fatal: the process must
// not serve traffic with it.
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return engerr.New(engerr.CodeConfiguration,
			"auth: at least one JWT source must be configured")
	}
	for i := range c.Sources {
		if err := c.Sources[i].Validate(); err != nil {
			return engerr.Wrapf(err, engerr.CodeConfiguration,
				"auth: invalid JWT source %d", i)
		}
	}
	return nil
}
