package ddns

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// PreferredTimeout bounds the first provider tried for a family.
	PreferredTimeout = 10 * time.Second
	// FallbackTimeout bounds each provider tried after the first one failed.
	FallbackTimeout = 5 * time.Second
)

// Endpoint is one IP detection service.
type Endpoint struct {
	URL     string
	Timeout time.Duration
}

// I'm not vouching for these services, but they do return the IP of the client connection.
// If possible, run your own and configure it as the preferred provider instead.
var (
	DefaultIPv4Providers = []string{
		"https://api.ipify.org",
		"https://ipv4.icanhazip.com", // operated by Cloudflare since ~2021
		"https://checkip.amazonaws.com",
		"https://ifconfig.me/ip",
	}
	DefaultIPv6Providers = []string{
		"https://api6.ipify.org",
		"https://ipv6.icanhazip.com",
		"https://v6.ident.me",
	}
)

// Attempts returns the order in which providers are queried.
//
// The preferred URL goes first with PreferredTimeout.
// An empty preferred URL means the first entry of providers.
// The rest follow in list order with FallbackTimeout, skipping the preferred one.
// A preferred URL that is not in the list is still tried first.
func Attempts(providers []string, preferred string) []Endpoint {
	if preferred == "" {
		if len(providers) == 0 {
			return nil
		}
		preferred = providers[0]
	}
	attempts := []Endpoint{{URL: preferred, Timeout: PreferredTimeout}}
	for _, u := range providers {
		if u == preferred {
			continue
		}
		attempts = append(attempts, Endpoint{URL: u, Timeout: FallbackTimeout})
	}
	return attempts
}

// FetchFunc queries a single endpoint and returns its raw answer.
type FetchFunc func(ctx context.Context, e Endpoint) (string, error)

// FirstValid tries each endpoint in order and returns the first answer that
// validates as an address of family.
// Every endpoint runs under its own timeout.
// If all of them fail, the returned error wraps ErrIPUnavailable and each endpoint's failure.
func FirstValid(ctx context.Context, family Family, endpoints []Endpoint, fetch FetchFunc) (Addr, error) {
	if len(endpoints) == 0 {
		return Addr{}, fmt.Errorf("%w: no %s providers configured", ErrIPUnavailable, family)
	}
	var errs []error
	for _, e := range endpoints {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		a, err := tryEndpoint(ctx, family, e, fetch)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.URL, err))
			continue
		}
		return a, nil
	}
	return Addr{}, fmt.Errorf("%w: all %s providers failed: %w", ErrIPUnavailable, family, errors.Join(errs...))
}

func tryEndpoint(ctx context.Context, family Family, e Endpoint, fetch FetchFunc) (Addr, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	s, err := fetch(ctx, e)
	if err != nil {
		return Addr{}, err
	}
	return ParseAddr(family, s)
}
