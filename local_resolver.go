package ddns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// InterfaceResolver constructs a resolver that returns the addresses assigned to the given interfaces.
// If no interfaces are provided then all interfaces will be used.
//
// Only global unicast addresses are considered, so loopback and link-local addresses are skipped.
// The first match per family wins, in interface order.
func InterfaceResolver(iface ...string) Resolver {
	return interfaceResolver{ifaces: iface, addrs: interfaceAddrs}
}

type interfaceResolver struct {
	ifaces []string
	addrs  func(names []string) ([]net.Addr, error)
}

func (r interfaceResolver) ResolveIPv4(ctx context.Context) (Addr, error) {
	a, err := r.first(IPv4)
	if err != nil {
		return Addr{}, fmt.Errorf("%w: %w", ErrIPUnavailable, err)
	}
	return a, nil
}

func (r interfaceResolver) ResolveIPv6(ctx context.Context) (Addr, bool) {
	a, err := r.first(IPv6)
	return a, err == nil
}

func (r interfaceResolver) first(family Family) (Addr, error) {
	addrs, err := r.addrs(r.ifaces)
	var parseErrors []error
	for _, addr := range addrs {
		// addr: ip+net:192.168.86.253/24
		// addr: ip+net:fd64:9f44:fc30:0:b951:8b16:2812:a227/64
		// addr: ip+net:fe80::2cc9:801b:3551:9a43/64
		prefix, perr := netip.ParsePrefix(addr.String())
		if perr != nil {
			parseErrors = append(parseErrors, fmt.Errorf("error parsing local ip %s: %w", addr.String(), perr))
			continue
		}
		ip := prefix.Addr().Unmap()
		if !ip.IsGlobalUnicast() {
			continue
		}
		if (family == IPv4) != ip.Is4() {
			continue
		}
		if a, perr := FromNetIP(ip); perr == nil {
			return a, nil
		}
	}
	if joined := errors.Join(append([]error{err}, parseErrors...)...); joined != nil {
		return Addr{}, fmt.Errorf("no global %s address found: %w", family, joined)
	}
	return Addr{}, fmt.Errorf("no global %s address found", family)
}

func interfaceAddrs(names []string) ([]net.Addr, error) {
	if len(names) == 0 {
		addrs, err := net.InterfaceAddrs()
		if err != nil {
			return nil, fmt.Errorf("error getting addresses for interfaces: %w", err)
		}
		return addrs, nil
	}
	var all []net.Addr
	var errs []error
	for _, name := range names {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("error getting interface %s by name: %w", name, err))
			continue
		}
		a, err := iface.Addrs()
		if err != nil {
			errs = append(errs, fmt.Errorf("error looking up addresses for interface %s: %w", name, err))
			continue
		}
		all = append(all, a...)
	}
	return all, errors.Join(errs...)
}
