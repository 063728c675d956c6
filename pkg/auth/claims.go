package auth

import (
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	engerr "github.com/MarwanELAdawy/graphql-engine/pkg/errors"
)

// NormalizedClaims is the uniform output of claim extraction, independent of
// which strategy produced it: a flat map from lowercased session variable
// name to value. After successful normalization the two mandatory entries
// are present with their canonical types — [AllowedRolesClaim] as a
// non-empty []string and [DefaultRoleClaim] as a non-empty string.
type NormalizedClaims map[string]any

// AllowedRoles returns the mandatory allowed-roles entry.
func (n NormalizedClaims) AllowedRoles() []string {
	roles, _ := n[AllowedRolesClaim].([]string)
	return roles
}

// DefaultRole returns the mandatory default-role entry.
func (n NormalizedClaims) DefaultRole() string {
	role, _ := n[DefaultRoleClaim].(string)
	return role
}

// normalize extracts session variables from a verified claim set using the
// source's configured strategy.
func normalize(claims jwt.MapClaims, strategy ClaimsStrategy) (NormalizedClaims, error) {
	if strategy.Namespace != nil {
		return normalizeNamespace(claims, strategy.Namespace)
	}
	return normalizeClaimsMap(claims, strategy.Map)
}

// normalizeNamespace extracts the engine claims object from a single
// namespace inside the payload, decodes it per the configured format, and
// keeps only the keys carrying the session variable prefix
// (case-insensitively, lowercasing them on the way out).
func normalizeNamespace(claims jwt.MapClaims, ns *NamespaceStrategy) (NormalizedClaims, error) {
	var raw any
	switch {
	case ns.Path == "":
		v, ok := claims[ns.Key]
		if !ok {
			return nil, engerr.Newf(engerr.CodeClaimMissing,
				"auth: token has no %q claim", ns.Key)
		}
		raw = v
	case ns.Path == "$":
		raw = map[string]any(claims)
	default:
		payload, err := json.Marshal(map[string]any(claims))
		if err != nil {
			return nil, engerr.Wrap(err, engerr.CodeInternal, "auth: failed to re-encode token payload")
		}
		res := gjson.GetBytes(payload, gjsonPath(ns.Path))
		if !res.Exists() {
			return nil, engerr.Newf(engerr.CodeClaimMissing,
				"auth: no claims found at path %q", ns.Path)
		}
		raw = res.Value()
	}

	obj, err := decodeNamespaceValue(raw, ns.Format)
	if err != nil {
		return nil, err
	}

	out := make(NormalizedClaims)
	for k, v := range obj {
		lower := strings.ToLower(k)
		if strings.HasPrefix(lower, SessionVariablePrefix) {
			out[lower] = v
		}
	}
	return finishNormalization(out)
}

// decodeNamespaceValue interprets the located namespace value per format:
// a JSON object directly, or a string containing an encoded JSON object.
func decodeNamespaceValue(raw any, format ClaimsFormat) (map[string]any, error) {
	switch format {
	case ClaimsFormatStringifiedJSON:
		s, ok := raw.(string)
		if !ok {
			return nil, engerr.New(engerr.CodeClaimFormat,
				"auth: claims namespace must be a string containing encoded JSON")
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
			return nil, engerr.New(engerr.CodeClaimFormat,
				"auth: claims namespace string must decode to a JSON object")
		}
		return obj, nil
	default:
		obj, ok := raw.(map[string]any)
		if !ok {
			return nil, engerr.New(engerr.CodeClaimFormat,
				"auth: claims namespace must be a JSON object")
		}
		return obj, nil
	}
}

// normalizeClaimsMap builds the session variables from an explicit mapping.
// Literal entries pass through untouched; path entries are resolved against
// the full payload, with an explicit JSON null treated the same as an
// absent value. A missing path without a configured default is an error
// naming the entry.
func normalizeClaimsMap(claims jwt.MapClaims, m ClaimsMap) (NormalizedClaims, error) {
	payload, err := json.Marshal(map[string]any(claims))
	if err != nil {
		return nil, engerr.Wrap(err, engerr.CodeInternal, "auth: failed to re-encode token payload")
	}

	out := make(NormalizedClaims, len(m))
	for name, entry := range m {
		key := strings.ToLower(name)
		if !entry.IsPath() {
			out[key] = entry.Literal
			continue
		}
		res := gjson.GetBytes(payload, gjsonPath(entry.Path))
		if res.Exists() && res.Type != gjson.Null {
			out[key] = res.Value()
			continue
		}
		if entry.HasDefault {
			out[key] = entry.Default
			continue
		}
		return nil, engerr.Newf(engerr.CodeClaimMissing,
			"auth: claim %q not found in token at path %q", name, entry.Path)
	}
	return finishNormalization(out)
}

// finishNormalization checks the two mandatory entries and rewrites them
// into their canonical types.
func finishNormalization(out NormalizedClaims) (NormalizedClaims, error) {
	rawRoles, ok := out[AllowedRolesClaim]
	if !ok {
		return nil, engerr.Newf(engerr.CodeClaimMissing,
			"auth: token claims are missing %q", AllowedRolesClaim)
	}
	roles, err := roleListValue(rawRoles)
	if err != nil {
		return nil, err
	}

	rawDefault, ok := out[DefaultRoleClaim]
	if !ok {
		return nil, engerr.Newf(engerr.CodeClaimMissing,
			"auth: token claims are missing %q", DefaultRoleClaim)
	}
	role, rok := rawDefault.(string)
	if !rok || role == "" {
		return nil, engerr.Newf(engerr.CodeClaimFormat,
			"auth: %q must be a non-empty string", DefaultRoleClaim)
	}

	out[AllowedRolesClaim] = roles
	out[DefaultRoleClaim] = role
	return out, nil
}

func roleListValue(raw any) ([]string, error) {
	var roles []string
	switch v := raw.(type) {
	case []string:
		roles = v
	case []any:
		roles = make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, engerr.Newf(engerr.CodeClaimFormat,
					"auth: %q must contain only strings", AllowedRolesClaim)
			}
			roles = append(roles, s)
		}
	default:
		return nil, engerr.Newf(engerr.CodeClaimFormat,
			"auth: %q must be a list of strings", AllowedRolesClaim)
	}
	if len(roles) == 0 {
		return nil, engerr.Newf(engerr.CodeClaimFormat,
			"auth: %q must not be empty", AllowedRolesClaim)
	}
	return roles, nil
}

// gjsonPath translates a configured JSON path into gjson syntax: "$" means
// the whole document and a leading "$." is stripped.
func gjsonPath(p string) string {
	if p == "$" {
		return "@this"
	}
	return strings.TrimPrefix(p, "$.")
}
