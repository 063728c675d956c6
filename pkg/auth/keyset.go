package auth

import (
	"sync/atomic"

	"github.com/lestrrat-go/jwx/v2/jwk"

	engerr "github.com/MarwanELAdawy/graphql-engine/pkg/errors"
)

// KeyStore is a concurrency-safe holder of the currently trusted
// verification key set for one token source.
//
// The set is replaced as a whole by a single writer (the source's
// [Refresher], or once at construction for embedded keys) and read by
// arbitrarily many concurrent requests. Replacement is a single atomic
// pointer swap: readers never block, never observe a partially built set,
// and a reader racing a refresh simply sees the immediately prior set,
// which remains valid until superseded.
type KeyStore struct {
	snap atomic.Pointer[keySnapshot]
}

// keySnapshot wraps the interface value so the store can use an atomic
// pointer swap regardless of the set's concrete type.
type keySnapshot struct {
	set jwk.Set
}

// newKeyStore creates a KeyStore holding the given set. The store is never
// observably empty once construction completes.
func newKeyStore(set jwk.Set) *KeyStore {
	s := &KeyStore{}
	s.replace(set)
	return s
}

// Current returns the most recently committed key set. It never blocks and
// never returns nil.
func (s *KeyStore) Current() jwk.Set {
	return s.snap.Load().set
}

// replace atomically commits a new key set. Only the store's single writer
// may call it.
func (s *KeyStore) replace(set jwk.Set) {
	s.snap.Store(&keySnapshot{set: set})
}

// embeddedKeySet builds the one-key set for a source configured with
// embedded key material: the raw shared secret for HMAC algorithms, or a
// PEM-encoded public key (or certificate) for asymmetric ones.
func embeddedKeySet(cfg *SourceConfig) (jwk.Set, error) {
	var (
		key jwk.Key
		err error
	)
	if isHMACAlgorithm(cfg.Algorithm) {
		key, err = jwk.FromRaw([]byte(cfg.Key.Value()))
	} else {
		key, err = jwk.ParseKey([]byte(cfg.Key.Value()), jwk.WithPEM(true))
	}
	if err != nil {
		return nil, engerr.Wrap(err, engerr.CodeConfiguration,
			"auth: failed to build verification key from embedded key material")
	}

	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		return nil, engerr.Wrap(err, engerr.CodeConfiguration,
			"auth: failed to assemble embedded key set")
	}
	return set, nil
}
