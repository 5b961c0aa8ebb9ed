package ddns

import (
	"context"
	"errors"
	"net"
	"testing"
)

func ipNet(s string) net.Addr {
	ip, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	n.IP = ip
	return n
}

func fixedAddrs(addrs ...net.Addr) func([]string) ([]net.Addr, error) {
	return func([]string) ([]net.Addr, error) { return addrs, nil }
}

func TestInterfaceResolver(t *testing.T) {
	r := interfaceResolver{addrs: fixedAddrs(
		ipNet("127.0.0.1/8"),
		ipNet("fe80::2cc9:801b:3551:9a43/64"),
		ipNet("fd64:9f44:fc30:0:b951:8b16:2812:a227/64"),
		ipNet("192.168.86.253/24"),
		ipNet("10.0.0.5/8"),
	)}

	a, err := r.ResolveIPv4(context.Background())
	if err != nil {
		t.Fatalf("ResolveIPv4 failed: %s", err)
	}
	if a.String() != "192.168.86.253" {
		t.Fatalf("Expected the first global IPv4 address; got %q", a)
	}

	a6, ok := r.ResolveIPv6(context.Background())
	if !ok {
		t.Fatalf("Expected an IPv6 address")
	}
	if a6.String() != "fd64:9f44:fc30:0:b951:8b16:2812:a227" {
		t.Fatalf("Expected the non link-local IPv6 address; got %q", a6)
	}
}

func TestInterfaceResolverNoAddress(t *testing.T) {
	r := interfaceResolver{addrs: fixedAddrs(ipNet("127.0.0.1/8"), ipNet("fe80::1/64"))}

	if _, err := r.ResolveIPv4(context.Background()); !errors.Is(err, ErrIPUnavailable) {
		t.Fatalf("Expected ErrIPUnavailable; got %v", err)
	}
	if _, ok := r.ResolveIPv6(context.Background()); ok {
		t.Fatalf("Expected no IPv6 address")
	}
}

func TestInterfaceResolverLookupError(t *testing.T) {
	lookupErr := errors.New("no such interface")
	r := interfaceResolver{addrs: func([]string) ([]net.Addr, error) { return nil, lookupErr }}
	_, err := r.ResolveIPv4(context.Background())
	if !errors.Is(err, ErrIPUnavailable) || !errors.Is(err, lookupErr) {
		t.Fatalf("Expected ErrIPUnavailable wrapping the lookup error; got %v", err)
	}
}

func TestStatic(t *testing.T) {
	r, err := Static(" 192.0.2.1 ", "")
	if err != nil {
		t.Fatal(err)
	}
	a, _ := r.ResolveIPv4(context.Background())
	if a.String() != "192.0.2.1" {
		t.Fatalf("Expected 192.0.2.1; got %q", a)
	}
	if _, ok := r.ResolveIPv6(context.Background()); ok {
		t.Fatalf("Expected no IPv6 address")
	}
	if _, err := Static("2001:db8::1", ""); err == nil {
		t.Fatalf("Expected an error for an IPv6 address as IPv4")
	}
}
