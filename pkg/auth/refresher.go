package auth

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lestrrat-go/httpcc"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// HTTPClient abstracts the HTTP client used for fetching remote key sets.
// This allows callers to provide custom HTTP clients with specific timeouts,
// transport settings, or middleware (e.g., for mTLS, proxy configuration,
// or request tracing).
//
// The standard [http.Client] satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const (
	// defaultRefreshInterval is used when the key endpoint's response
	// carries no usable cache metadata.
	defaultRefreshInterval = time.Minute

	// refreshRetryInterval is used after a failed fetch or parse.
	refreshRetryInterval = time.Minute

	// minRefreshInterval floors every computed delay so server-supplied
	// cache metadata can never produce a tight refresh loop.
	minRefreshInterval = time.Second

	// maxKeySetResponseSize caps the key endpoint response body (1 MB)
	// to prevent resource exhaustion.
	maxKeySetResponseSize = 1 << 20
)

// Refresher keeps one remote source's [KeyStore] up to date. It re-fetches
// the JWK set on a schedule derived from the endpoint's HTTP cache metadata
// and commits each successfully parsed set atomically.
//
// Refresh is fail-open: a failed fetch or an unparseable document is logged
// and retried later while the previously trusted set stays in place.
// Verification itself is unaffected by refresher health — stale keys remain
// trusted until a successful refresh supersedes them.
type Refresher struct {
	url    string
	client HTTPClient
	store  *KeyStore
	logger *slog.Logger
}

// newRefresher creates a Refresher for the given endpoint. It does not
// fetch; callers perform the synchronous first fetch via [Refresher.refreshOnce]
// before serving traffic, then hand the loop to [Refresher.Run].
func newRefresher(url string, client HTTPClient, store *KeyStore, logger *slog.Logger) *Refresher {
	return &Refresher{
		url:    url,
		client: client,
		store:  store,
		logger: logger,
	}
}

// refreshOnce performs a single fetch-parse-commit cycle and returns the
// delay until the next attempt. On any failure the current key set is left
// untouched and the retry interval is returned alongside the error.
func (r *Refresher) refreshOnce(ctx context.Context) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return refreshRetryInterval, fmt.Errorf("auth: failed to create key set request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return refreshRetryInterval, fmt.Errorf("auth: key set request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return refreshRetryInterval, fmt.Errorf("auth: key set endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetResponseSize))
	if err != nil {
		return refreshRetryInterval, fmt.Errorf("auth: failed to read key set response: %w", err)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return refreshRetryInterval, fmt.Errorf("auth: failed to parse key set document: %w", err)
	}

	r.store.replace(set)
	return r.nextDelay(resp.Header, time.Now()), nil
}

// nextDelay computes the delay until the next refresh from the response's
// cache metadata:
//
//  1. A parseable Cache-Control header wins: no-cache, no-store, or
//     must-revalidate schedule an immediate refresh; otherwise max-age is
//     the delay in seconds, if present.
//  2. Else a parseable Expires header: that timestamp minus now (negative
//     values refresh immediately).
//  3. Else the default interval.
//
// Malformed cache metadata never blocks adoption of freshly fetched keys;
// it only drops scheduling back to the default, with an informational log.
// Every result is floored at [minRefreshInterval].
func (r *Refresher) nextDelay(hdr http.Header, now time.Time) time.Duration {
	if cc := hdr.Get("Cache-Control"); cc != "" {
		dir, err := httpcc.ParseResponse(cc)
		if err != nil {
			r.logger.Info("auth: ignoring unparseable Cache-Control header",
				"url", r.url,
				"cache_control", cc,
				"error", err,
			)
		} else {
			if dir.NoStore() || dir.MustRevalidate() {
				return minRefreshInterval
			}
			if _, ok := dir.NoCache(); ok {
				return minRefreshInterval
			}
			if maxAge, ok := dir.MaxAge(); ok {
				return floorRefreshDelay(time.Duration(maxAge) * time.Second)
			}
		}
	}

	if exp := hdr.Get("Expires"); exp != "" {
		t, err := http.ParseTime(exp)
		if err != nil {
			r.logger.Info("auth: ignoring unparseable Expires header",
				"url", r.url,
				"expires", exp,
				"error", err,
			)
		} else {
			return floorRefreshDelay(t.Sub(now))
		}
	}

	return defaultRefreshInterval
}

func floorRefreshDelay(d time.Duration) time.Duration {
	if d < minRefreshInterval {
		return minRefreshInterval
	}
	return d
}

// Run drives the refresh loop: sleep for the given delay, refresh once,
// reschedule from the result, repeat. Iterations are strictly sequential
// within one Refresher; loops for different sources run independently.
// The loop exits when ctx is cancelled.
func (r *Refresher) Run(ctx context.Context, initialDelay time.Duration) {
	timer := time.NewTimer(floorRefreshDelay(initialDelay))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		delay, err := r.refreshOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("auth: key set refresh failed, keeping current keys",
				"url", r.url,
				"retry_in", delay,
				"error", err,
			)
		}
		timer.Reset(floorRefreshDelay(delay))
	}
}
