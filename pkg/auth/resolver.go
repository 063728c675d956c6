package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	engerr "github.com/MarwanELAdawy/graphql-engine/pkg/errors"
)

// ResolvedIdentity is the authenticated caller handed to the rest of the
// engine: the effective role, the string-valued session variables that
// downstream authorization keys on, and the token's expiry when one was
// carried.
type ResolvedIdentity struct {
	Role             string
	SessionVariables map[string]string
	Expiry           *time.Time
}

var roleHeaderLower = strings.ToLower(RoleHeader)

// resolveIdentity turns normalized claims into the final identity. The
// caller-requested role (when present) or the token's default role must be
// a member of the allowed roles; the mandatory role entries are consumed
// here and do not appear among the session variables.
func resolveIdentity(claims NormalizedClaims, requestedRole string, expiry *time.Time) (*ResolvedIdentity, error) {
	role := requestedRole
	if role == "" {
		role = claims.DefaultRole()
	}
	if !slices.Contains(claims.AllowedRoles(), role) {
		return nil, engerr.Newf(engerr.CodeRoleNotAllowed,
			"auth: requested role %q is not in allowed roles", role)
	}

	vars := make(map[string]string, len(claims))
	for k, v := range claims {
		if k == AllowedRolesClaim || k == DefaultRoleClaim {
			continue
		}
		vars[k] = sessionValueString(v)
	}

	return &ResolvedIdentity{
		Role:             role,
		SessionVariables: vars,
		Expiry:           expiry,
	}, nil
}

// sessionValueString renders one session variable for transport: strings
// pass through verbatim, everything else is compact JSON.
func sessionValueString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// unauthenticatedIdentity builds the fallback identity for requests that
// present no credential, when a fallback role is configured. Session
// variables come from plain request headers carrying the session variable
// prefix; the role selection header itself is not a session variable.
func unauthenticatedIdentity(hdr http.Header, role string) *ResolvedIdentity {
	vars := make(map[string]string)
	for name, values := range hdr {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, SessionVariablePrefix) || len(values) == 0 {
			continue
		}
		if lower == roleHeaderLower {
			continue
		}
		vars[lower] = values[0]
	}
	return &ResolvedIdentity{Role: role, SessionVariables: vars}
}
