package auth

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	engerr "github.com/MarwanELAdawy/graphql-engine/pkg/errors"
)

// locateKind classifies the outcome of token location across every
// configured source.
type locateKind int

const (
	// locateNoCredential: no configured location yielded a token.
	locateNoCredential locateKind = iota

	// locateResolved: exactly one (source, token) pair is usable.
	locateResolved

	// locateAmbiguous: more than one pair is simultaneously usable. This is
	// a security-relevant ambiguity and always fails loudly; silently
	// picking one source would let a caller steer which trust domain
	// verifies it.
	locateAmbiguous

	// locateIssuerMismatch: tokens were present, but every pair failed the
	// issuer comparison. Distinct from locateNoCredential: a credential
	// existed and was provably not meant for any configured source.
	locateIssuerMismatch
)

// locateResult is the locator's outcome. runtime and token are set only
// for locateResolved.
type locateResult struct {
	kind    locateKind
	runtime *sourceRuntime
	token   string
}

// locate determines which configured source(s) the request's credentials
// apply to. It builds a multimap from configured location to sources, finds
// the tokens actually present at each such location, forms the cartesian
// product of sources and tokens sharing a location, and keeps the pairs
// whose issuer expectation is compatible with a cheap unverified peek at
// the token's issuer claim.
//
// A malformed Authorization header (wrong scheme, missing token) at a
// configured location is a hard error, distinct from "no credential".
func locate(runtimes []*sourceRuntime, hdr http.Header) (locateResult, error) {
	byLocation := make(map[string][]*sourceRuntime, len(runtimes))
	for _, rt := range runtimes {
		key := rt.cfg.Location.key()
		byLocation[key] = append(byLocation[key], rt)
	}

	var candidates []locateResult
	rejected := 0

	for key, sources := range byLocation {
		tokens, err := tokensAtLocation(key, hdr)
		if err != nil {
			return locateResult{}, err
		}
		for _, token := range tokens {
			for _, rt := range sources {
				if issuerCompatible(rt.cfg.Issuer, token) {
					candidates = append(candidates, locateResult{
						kind:    locateResolved,
						runtime: rt,
						token:   token,
					})
				} else {
					rejected++
				}
			}
		}
	}

	switch {
	case len(candidates) == 1:
		return candidates[0], nil
	case len(candidates) > 1:
		return locateResult{kind: locateAmbiguous}, nil
	case rejected > 0:
		return locateResult{kind: locateIssuerMismatch}, nil
	default:
		return locateResult{kind: locateNoCredential}, nil
	}
}

// tokensAtLocation extracts the raw tokens presented at one configured
// location. A location may yield zero, one, or several tokens (e.g.
// duplicate cookies).
func tokensAtLocation(key string, hdr http.Header) ([]string, error) {
	if name, ok := strings.CutPrefix(key, "cookie:"); ok {
		return cookieTokens(hdr, name), nil
	}

	var tokens []string
	for _, v := range hdr.Values(HeaderAuthorization) {
		token, err := bearerToken(v)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// bearerToken strips the Bearer scheme from an Authorization header value.
// Anything other than exactly "Bearer <token>" is a hard parse error.
func bearerToken(v string) (string, error) {
	parts := strings.Fields(v)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", engerr.New(engerr.CodeMalformedCredential,
			"auth: Authorization header must be of the form \"Bearer <token>\"")
	}
	return parts[1], nil
}

// cookieTokens collects every value of the named cookie. Cookie header
// lines that fail to parse contribute nothing; a broken cookie header is
// indistinguishable from an absent one.
func cookieTokens(hdr http.Header, name string) []string {
	var tokens []string
	for _, line := range hdr.Values("Cookie") {
		cookies, err := http.ParseCookie(line)
		if err != nil {
			continue
		}
		for _, c := range cookies {
			if c.Name == name && c.Value != "" {
				tokens = append(tokens, c.Value)
			}
		}
	}
	return tokens
}

// issuerCompatible reports whether a (source, token) pair is a candidate
// match. A pair is compatible when the source has no issuer expectation,
// when the token's issuer cannot be read (deliberately permissive: an
// unreadable issuer is settled later by full verification, not here), or
// when the issuers match exactly.
func issuerCompatible(expected, raw string) bool {
	if expected == "" {
		return true
	}
	issuer, ok := peekIssuer(raw)
	if !ok {
		return true
	}
	return issuer == expected
}

// peekIssuer decodes the token's issuer claim without verifying the
// signature. Returns false when the token or its issuer claim is unreadable.
func peekIssuer(raw string) (string, bool) {
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return "", false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	issuer, err := claims.GetIssuer()
	if err != nil || issuer == "" {
		return "", false
	}
	return issuer, true
}
