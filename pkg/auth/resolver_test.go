package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarwanELAdawy/graphql-engine/internal/testutil"
	engerr "github.com/MarwanELAdawy/graphql-engine/pkg/errors"
)

func normalizedFixture() NormalizedClaims {
	return NormalizedClaims{
		AllowedRolesClaim:  []string{"user", "admin"},
		DefaultRoleClaim:   "user",
		"x-engine-user-id": "42",
	}
}

func TestResolveIdentityDefaultRole(t *testing.T) {
	t.Parallel()

	identity, err := resolveIdentity(normalizedFixture(), "", nil)
	require.NoError(t, err)

	assert.Equal(t, "user", identity.Role)
	assert.Equal(t, map[string]string{"x-engine-user-id": "42"}, identity.SessionVariables)
	assert.Nil(t, identity.Expiry)
}

func TestResolveIdentityRequestedRole(t *testing.T) {
	t.Parallel()

	identity, err := resolveIdentity(normalizedFixture(), "admin", nil)
	require.NoError(t, err)
	assert.Equal(t, "admin", identity.Role)
}

func TestResolveIdentityDisallowedRole(t *testing.T) {
	t.Parallel()

	_, err := resolveIdentity(normalizedFixture(), "superadmin", nil)
	testutil.RequireErrorCode(t, err, engerr.CodeRoleNotAllowed)
}

func TestResolveIdentityStripsMandatoryEntries(t *testing.T) {
	t.Parallel()

	identity, err := resolveIdentity(normalizedFixture(), "", nil)
	require.NoError(t, err)
	assert.NotContains(t, identity.SessionVariables, AllowedRolesClaim)
	assert.NotContains(t, identity.SessionVariables, DefaultRoleClaim)
}

func TestResolveIdentityStringifiesValues(t *testing.T) {
	t.Parallel()

	claims := NormalizedClaims{
		AllowedRolesClaim:  []string{"user"},
		DefaultRoleClaim:   "user",
		"x-engine-user-id": "42",
		"x-engine-count":   float64(7),
		"x-engine-beta":    true,
		"x-engine-teams":   []any{"a", "b"},
		"x-engine-meta":    map[string]any{"k": "v"},
	}

	identity, err := resolveIdentity(claims, "", nil)
	require.NoError(t, err)

	vars := identity.SessionVariables
	assert.Equal(t, "42", vars["x-engine-user-id"], "strings pass through verbatim")
	assert.Equal(t, "7", vars["x-engine-count"])
	assert.Equal(t, "true", vars["x-engine-beta"])
	assert.Equal(t, `["a","b"]`, vars["x-engine-teams"])
	assert.Equal(t, `{"k":"v"}`, vars["x-engine-meta"])
}

func TestResolveIdentityPropagatesExpiry(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	identity, err := resolveIdentity(normalizedFixture(), "", &exp)
	require.NoError(t, err)
	require.NotNil(t, identity.Expiry)
	assert.True(t, identity.Expiry.Equal(exp))
}

func TestUnauthenticatedIdentity(t *testing.T) {
	t.Parallel()

	hdr := http.Header{}
	hdr.Set("X-Engine-Org", "acme")
	hdr.Set("X-Engine-User-Id", "anon-7")
	hdr.Set("X-Engine-Role", "admin") // role selection is not a session variable
	hdr.Set("Accept", "application/json")

	identity := unauthenticatedIdentity(hdr, "anonymous")

	assert.Equal(t, "anonymous", identity.Role)
	assert.Equal(t, map[string]string{
		"x-engine-org":     "acme",
		"x-engine-user-id": "anon-7",
	}, identity.SessionVariables)
	assert.Nil(t, identity.Expiry)
}
