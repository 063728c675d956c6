package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/require"
)

// NewRSAKey generates a fresh 2048-bit RSA key pair for signing test
// tokens.
func NewRSAKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err, "failed to generate RSA key")
	return key
}

// NewKID returns a random key id.
func NewKID() string {
	return uuid.NewString()
}

// StandardClaims builds a claim set with issuer, a random jti, and an
// expiry ttl from now. Merge extra claims on top before signing.
func StandardClaims(issuer string, ttl time.Duration) jwt.MapClaims {
	claims := jwt.MapClaims{
		"jti": uuid.NewString(),
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(ttl).Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	return claims
}

// SignHS256 signs the claims with the shared secret.
func SignHS256(t testing.TB, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err, "failed to sign HS256 token")
	return signed
}

// SignRS256 signs the claims with the RSA private key, naming kid in the
// token header when non-empty.
func SignRS256(t testing.TB, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	require.NoError(t, err, "failed to sign RS256 token")
	return signed
}

// PublicKeyPEM renders the RSA public key as a PKIX PEM block, the form
// accepted as embedded key material for asymmetric algorithms.
func PublicKeyPEM(t testing.TB, key *rsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err, "failed to marshal public key")
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

// JWKSDocument renders a one-key JWK set document for the RSA public key
// under the given kid.
func JWKSDocument(t testing.TB, key *rsa.PrivateKey, kid string) []byte {
	t.Helper()
	jwkKey, err := jwk.FromRaw(&key.PublicKey)
	require.NoError(t, err, "failed to build JWK from public key")
	require.NoError(t, jwkKey.Set(jwk.KeyIDKey, kid))
	require.NoError(t, jwkKey.Set(jwk.AlgorithmKey, "RS256"))

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(jwkKey))

	doc, err := json.Marshal(set)
	require.NoError(t, err, "failed to marshal JWK set")
	return doc
}

// JWKSServer starts an httptest server that serves the given JWK set
// document, applying extra headers (e.g., Cache-Control) to every
// response. The server is closed when the test finishes.
func JWKSServer(t testing.TB, doc []byte, extraHeaders map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range extraHeaders {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}
