package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"thirdwatch.dev/watch/common/metrics"
)

const userAgent = "thirdwatch/1.0 (+https://thirdwatch.dev)"

// HTTPOptions bounds outbound registry calls. Every request carries the
// timeout; the limiter smooths request bursts per provider.
type HTTPOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Metrics           *metrics.Metrics
}

// providerClient is the conditional-request plumbing shared by the raw-HTTP
// adapters: rate limit, validator header, 304 short-circuit, ETag capture.
type providerClient struct {
	http     *http.Client
	limiter  *rate.Limiter
	cache    ValidatorCache
	provider string
	metrics  *metrics.Metrics
}

func newProviderClient(provider string, cache ValidatorCache, opts HTTPOptions) *providerClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	return &providerClient{
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		cache:    cache,
		provider: provider,
		metrics:  opts.Metrics,
	}
}

type fetchResponse struct {
	Body        []byte
	ETag        string
	NotModified bool
}

// conditionalGet performs a GET with the cached validator for identifier
// attached as If-None-Match. A 304 comes back as NotModified with no body;
// the caller must not treat it as an error or re-parse anything. On 200 the
// new ETag is stored under the identifier's cache key.
func (p *providerClient) conditionalGet(ctx context.Context, rawURL, identifier string, withValidator bool, extra http.Header) (*fetchResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	for k, vs := range extra {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	key := CacheKey(p.provider, identifier)
	if withValidator {
		validator, ok, err := p.cache.Get(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "validator cache read failed", "provider", p.provider, "error", err)
		} else if ok && validator != "" {
			req.Header.Set("If-None-Match", validator)
		}
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", p.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		p.metrics.RecordNotModified(p.provider)
		return &fetchResponse{NotModified: true}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RegistryError{Provider: p.provider, Identifier: identifier, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", p.provider, err)
	}

	etag := resp.Header.Get("ETag")
	if etag != "" {
		if err := p.cache.Set(ctx, key, etag); err != nil {
			slog.WarnContext(ctx, "validator cache write failed", "provider", p.provider, "error", err)
		}
	}

	return &fetchResponse{Body: body, ETag: etag}, nil
}
