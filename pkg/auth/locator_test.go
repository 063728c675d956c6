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

func headerRuntime(issuer string) *sourceRuntime {
	return &sourceRuntime{cfg: SourceConfig{Issuer: issuer}}
}

func cookieRuntime(name string) *sourceRuntime {
	return &sourceRuntime{cfg: SourceConfig{
		Location: TokenLocation{Type: LocationCookie, Name: name},
	}}
}

func issuedToken(t *testing.T, issuer string) string {
	t.Helper()
	return testutil.SignHS256(t, testSecret, testutil.StandardClaims(issuer, time.Hour))
}

func TestLocateNoCredential(t *testing.T) {
	t.Parallel()

	res, err := locate([]*sourceRuntime{headerRuntime("")}, http.Header{})
	require.NoError(t, err)
	assert.Equal(t, locateNoCredential, res.kind)
}

func TestLocateResolvedFromAuthorizationHeader(t *testing.T) {
	t.Parallel()

	rt := headerRuntime("")
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer sometoken")

	res, err := locate([]*sourceRuntime{rt}, hdr)
	require.NoError(t, err)
	assert.Equal(t, locateResolved, res.kind)
	assert.Same(t, rt, res.runtime)
	assert.Equal(t, "sometoken", res.token)
}

func TestLocateBearerSchemeIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	hdr := http.Header{}
	hdr.Set("Authorization", "bearer sometoken")

	res, err := locate([]*sourceRuntime{headerRuntime("")}, hdr)
	require.NoError(t, err)
	assert.Equal(t, locateResolved, res.kind)
}

func TestLocateMalformedAuthorizationIsHardError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
	}{
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"scheme only", "Bearer"},
		{"too many fields", "Bearer one two"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			hdr := http.Header{}
			hdr.Set("Authorization", tt.value)

			_, err := locate([]*sourceRuntime{headerRuntime("")}, hdr)
			testutil.RequireErrorCode(t, err, engerr.CodeMalformedCredential)
		})
	}
}

func TestLocateResolvedFromCookie(t *testing.T) {
	t.Parallel()

	rt := cookieRuntime("session")
	hdr := http.Header{}
	hdr.Set("Cookie", "theme=dark; session=cookietoken; lang=en")

	res, err := locate([]*sourceRuntime{rt}, hdr)
	require.NoError(t, err)
	assert.Equal(t, locateResolved, res.kind)
	assert.Equal(t, "cookietoken", res.token)
}

func TestLocateIgnoresOtherCookies(t *testing.T) {
	t.Parallel()

	hdr := http.Header{}
	hdr.Set("Cookie", "theme=dark")

	res, err := locate([]*sourceRuntime{cookieRuntime("session")}, hdr)
	require.NoError(t, err)
	assert.Equal(t, locateNoCredential, res.kind)
}

func TestLocateAmbiguousWhenTwoSourcesShareLocation(t *testing.T) {
	t.Parallel()

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer sometoken")

	res, err := locate([]*sourceRuntime{headerRuntime(""), headerRuntime("")}, hdr)
	require.NoError(t, err)
	assert.Equal(t, locateAmbiguous, res.kind)
}

func TestLocateAmbiguousAcrossLocations(t *testing.T) {
	t.Parallel()

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer headertoken")
	hdr.Set("Cookie", "session=cookietoken")

	res, err := locate([]*sourceRuntime{headerRuntime(""), cookieRuntime("session")}, hdr)
	require.NoError(t, err)
	assert.Equal(t, locateAmbiguous, res.kind)
}

func TestLocateIssuerDisambiguates(t *testing.T) {
	t.Parallel()

	a := headerRuntime("https://a.example")
	b := headerRuntime("https://b.example")

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+issuedToken(t, "https://b.example"))

	res, err := locate([]*sourceRuntime{a, b}, hdr)
	require.NoError(t, err)
	require.Equal(t, locateResolved, res.kind)
	assert.Same(t, b, res.runtime)
}

func TestLocateIssuerMismatch(t *testing.T) {
	t.Parallel()

	a := headerRuntime("https://a.example")
	b := headerRuntime("https://b.example")

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+issuedToken(t, "https://c.example"))

	res, err := locate([]*sourceRuntime{a, b}, hdr)
	require.NoError(t, err)
	assert.Equal(t, locateIssuerMismatch, res.kind)
}

func TestLocateUnreadableIssuerStaysCandidate(t *testing.T) {
	t.Parallel()

	// Not a decodable JWT at all: the issuer peek cannot reject it, so the
	// pair survives to verification.
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer notajwt")

	res, err := locate([]*sourceRuntime{headerRuntime("https://a.example")}, hdr)
	require.NoError(t, err)
	assert.Equal(t, locateResolved, res.kind)
}

func TestLocateTokenWithoutIssuerStaysCandidate(t *testing.T) {
	t.Parallel()

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+issuedToken(t, ""))

	res, err := locate([]*sourceRuntime{headerRuntime("https://a.example")}, hdr)
	require.NoError(t, err)
	assert.Equal(t, locateResolved, res.kind)
}

func TestLocateIgnoresUnconfiguredLocations(t *testing.T) {
	t.Parallel()

	// Only a cookie source is configured, so a malformed Authorization
	// header is irrelevant.
	hdr := http.Header{}
	hdr.Set("Authorization", "Basic whatever")
	hdr.Set("Cookie", "session=cookietoken")

	res, err := locate([]*sourceRuntime{cookieRuntime("session")}, hdr)
	require.NoError(t, err)
	assert.Equal(t, locateResolved, res.kind)
}
