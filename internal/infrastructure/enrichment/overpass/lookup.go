// Package overpass answers whether OpenStreetMap lists a business at an
// address.
package overpass

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	goverpass "github.com/serjvanilla/go-overpass"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
	"github.com/OK-cpu-beep/Energohunt/internal/infrastructure/resilience"
)

// BusinessKeys are the OSM tags that mark a commercial object.
var BusinessKeys = []string{"shop", "office", "amenity", "craft"}

type Options struct {
	Timeout            time.Duration
	MaxParallel        int
	CacheTTL           time.Duration
	Transport          http.RoundTripper
	ResilienceExecutor *resilience.Executor
}

type BusinessLookup struct {
	endpoint    string
	timeout     time.Duration
	maxParallel int
	transport   http.RoundTripper
	executor    *resilience.Executor
	memo        *cache.Cache
}

func NewBusinessLookup(endpoint string, options Options) *BusinessLookup {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxParallel := options.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 2
	}
	ttl := options.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	transport := options.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &BusinessLookup{
		endpoint:    endpoint,
		timeout:     timeout,
		maxParallel: maxParallel,
		transport:   transport,
		executor:    options.ResilienceExecutor,
		memo:        cache.New(ttl, ttl+time.Minute),
	}
}

// HasBusiness reports whether any shop, office, amenity or craft object is
// tagged with the street and house number of address.
func (l *BusinessLookup) HasBusiness(ctx context.Context, address string) (bool, error) {
	addr, ok := ParseAddress(address)
	if !ok {
		return false, domain.WrapError(domain.ErrInvalidInput, "overpass lookup", fmt.Errorf("cannot parse address %q", address))
	}
	if cached, found := l.memo.Get(addr.Key()); found {
		return cached.(bool), nil
	}

	var found bool
	query := BuildQuery(addr, l.timeout)
	call := func(callCtx context.Context) error {
		n, err := l.query(callCtx, query)
		if err != nil {
			return err
		}
		found = n > 0
		return nil
	}

	var err error
	if l.executor != nil {
		err = l.executor.Execute(ctx, "overpass.query", call, classifyOverpassError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return false, wrapTemporaryIfNeeded("overpass lookup", err)
	}

	l.memo.Set(addr.Key(), found, cache.DefaultExpiration)
	slog.Debug("overpass_lookup", "street", addr.Street, "house", addr.HouseNumber, "has_business", found)
	return found, nil
}

func BuildQuery(addr Address, timeout time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", int(timeout.Seconds()))
	for _, key := range BusinessKeys {
		fmt.Fprintf(&b, "  nwr[\"addr:street\"~\"%s\",i][\"addr:housenumber\"=\"%s\"][\"%s\"];\n", addr.Street, addr.HouseNumber, key)
	}
	b.WriteString(");\nout ids;\n")
	return b.String()
}

// query runs one Overpass request bound to ctx and returns the number of
// matched elements. The client library has no context support, so each
// call gets a client whose transport carries ctx.
func (l *BusinessLookup) query(ctx context.Context, query string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	rt := &contextTransport{ctx: ctx, base: l.transport}
	client := goverpass.NewWithSettings(l.endpoint, l.maxParallel, &http.Client{Transport: rt, Timeout: l.timeout})
	result, err := client.Query(query)
	if rt.status >= http.StatusBadRequest {
		return 0, &HTTPStatusError{StatusCode: rt.status, Status: http.StatusText(rt.status), Cause: err}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("overpass query: %w", err)
	}
	return len(result.Nodes) + len(result.Ways) + len(result.Relations), nil
}

type contextTransport struct {
	ctx    context.Context
	base   http.RoundTripper
	status int
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req.WithContext(t.ctx))
	if err != nil {
		return nil, err
	}
	t.status = resp.StatusCode
	return resp, nil
}
