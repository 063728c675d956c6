package auth

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	engerr "github.com/MarwanELAdawy/graphql-engine/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for auth spans.
const tracerName = "github.com/MarwanELAdawy/graphql-engine/pkg/auth"

// defaultFetchTimeout bounds key set fetches when the caller supplies no
// HTTP client of their own.
const defaultFetchTimeout = 10 * time.Second

// sourceRuntime is one configured token source plus its live state: the
// current key set and, for remote sources, the refresher keeping it fresh.
type sourceRuntime struct {
	cfg          SourceConfig
	store        *KeyStore
	refresher    *Refresher
	firstDelay   time.Duration
	validMethods []string
}

// Authenticator is the engine's bearer-token authenticator. It locates a
// credential among the configured sources, verifies it, extracts session
// variables, and resolves the caller's effective role.
//
// Authenticator is safe for concurrent use by multiple goroutines.
// Authentication is a pure read of the request and the current key sets:
// calling [Authenticator.Authenticate] twice with the same request and the
// same key material yields the same result.
type Authenticator struct {
	runtimes         []*sourceRuntime
	unauthorizedRole string
	tracer           trace.Tracer
	logger           *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAuthenticator validates the configuration and prepares every source.
// Sources with embedded key material are ready immediately; sources backed
// by a remote key endpoint are fetched synchronously, and any failure to
// obtain an initial key set is fatal — the authenticator never starts in a
// state where a configured source cannot verify anything.
//
// ctx bounds the initial key set fetches only.
func NewAuthenticator(ctx context.Context, cfg Config) (*Authenticator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}

	a := &Authenticator{
		unauthorizedRole: cfg.UnauthorizedRole,
		tracer:           otel.Tracer(tracerName),
		logger:           logger,
	}

	for i := range cfg.Sources {
		src := cfg.Sources[i]
		rt := &sourceRuntime{
			cfg:          src,
			validMethods: src.validMethods(),
		}

		if src.JWKSURL != "" {
			store := newKeyStore(jwk.NewSet())
			refresher := newRefresher(src.JWKSURL, client, store, logger)
			delay, err := refresher.refreshOnce(ctx)
			if err != nil {
				return nil, engerr.Wrapf(err, engerr.CodeUnavailableDependency,
					"auth: initial key set fetch failed for source %d", i)
			}
			rt.store = store
			rt.refresher = refresher
			rt.firstDelay = delay
		} else {
			set, err := embeddedKeySet(&src)
			if err != nil {
				return nil, err
			}
			rt.store = newKeyStore(set)
		}

		a.runtimes = append(a.runtimes, rt)
	}

	return a, nil
}

// Start launches the background refresh loop for every remote source. Each
// loop runs independently; a slow or failing endpoint for one source never
// delays another. Start is a no-op when no source is remote.
func (a *Authenticator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	for _, rt := range a.runtimes {
		if rt.refresher == nil {
			continue
		}
		a.wg.Add(1)
		go func(rt *sourceRuntime) {
			defer a.wg.Done()
			rt.refresher.Run(ctx, rt.firstDelay)
		}(rt)
	}
}

// Stop cancels the refresh loops and waits for them to exit. Safe to call
// without a prior Start.
func (a *Authenticator) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

// Authenticate resolves the identity for one request from its headers.
//
// A request with no credential resolves to the configured unauthorized-role
// fallback identity when one is set, and fails otherwise. Ambiguous
// credentials and credentials matching no configured source always fail,
// fallback or not — only the genuinely credential-less path is eligible
// for anonymous access.
func (a *Authenticator) Authenticate(ctx context.Context, hdr http.Header) (*ResolvedIdentity, error) {
	_, span := a.tracer.Start(ctx, "auth.Authenticate")
	defer span.End()

	located, err := locate(a.runtimes, hdr)
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}

	switch located.kind {
	case locateNoCredential:
		if a.unauthorizedRole == "" {
			err := engerr.New(engerr.CodeMissingCredential, "auth: missing authorization credential")
			finishSpan(span, err)
			return nil, err
		}
		identity := unauthenticatedIdentity(hdr, a.unauthorizedRole)
		span.SetAttributes(
			attribute.Bool("auth.anonymous", true),
			attribute.String("auth.role", identity.Role),
		)
		return identity, nil
	case locateAmbiguous:
		err := engerr.New(engerr.CodeAmbiguousCredential,
			"auth: request credentials match multiple token sources")
		finishSpan(span, err)
		return nil, err
	case locateIssuerMismatch:
		err := engerr.New(engerr.CodeIssuerMismatch,
			"auth: credential issuer does not match any token source")
		finishSpan(span, err)
		return nil, err
	}

	claims, err := located.runtime.verify(located.token)
	if err != nil {
		a.logger.Debug("auth: token verification failed", "error", err)
		finishSpan(span, err)
		return nil, err
	}

	normalized, err := normalize(claims, located.runtime.cfg.Claims)
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}

	var expiry *time.Time
	if exp, expErr := claims.GetExpirationTime(); expErr == nil && exp != nil {
		t := exp.Time
		expiry = &t
	}

	identity, err := resolveIdentity(normalized, hdr.Get(RoleHeader), expiry)
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Bool("auth.anonymous", false),
		attribute.String("auth.role", identity.Role),
		attribute.Int("auth.session_variable_count", len(identity.SessionVariables)),
	)
	return identity, nil
}

// finishSpan records an error on the span and sets the span status to
// Error. This is a helper for consistent error recording across
// authentication paths.
func finishSpan(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
