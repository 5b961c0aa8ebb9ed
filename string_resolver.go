package ddns

import (
	"context"
	"fmt"
	"strings"
)

// Static constructs a resolver that always reports the given addresses.
// An empty ipv6 means no IPv6 address.
func Static(ipv4, ipv6 string) (Resolver, error) {
	var s staticResolver
	var err error
	if s.v4, err = ParseAddr(IPv4, strings.TrimSpace(ipv4)); err != nil {
		return nil, fmt.Errorf("unable to parse IPv4: %w", err)
	}
	if ipv6 = strings.TrimSpace(ipv6); ipv6 != "" {
		if s.v6, err = ParseAddr(IPv6, ipv6); err != nil {
			return nil, fmt.Errorf("unable to parse IPv6: %w", err)
		}
	}
	return s, nil
}

type staticResolver struct {
	v4, v6 Addr
}

func (s staticResolver) ResolveIPv4(context.Context) (Addr, error) { return s.v4, nil }
func (s staticResolver) ResolveIPv6(context.Context) (Addr, bool)  { return s.v6, s.v6.IsValid() }
