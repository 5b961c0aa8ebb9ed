package ddns

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
)

// Family is an IP address family.
type Family int

const (
	IPv4 Family = iota + 1
	IPv6
)

func (f Family) String() string {
	switch f {
	case IPv4:
		return "ipv4"
	case IPv6:
		return "ipv6"
	}
	return "Family(" + strconv.Itoa(int(f)) + ")"
}

// recordType returns the DNS record type that holds addresses of family f.
func (f Family) recordType() string {
	if f == IPv6 {
		return "AAAA"
	}
	return "A"
}

var dottedQuad = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})$`)

// Addr is a validated textual IP address tagged with its family.
// The zero Addr is the absent value; use IsValid to tell them apart.
type Addr struct {
	family Family
	text   string
}

// ParseAddr validates s as an address of the given family.
//
// IPv4 addresses must be exactly four dot-separated decimal octets in 0-255.
// IPv6 addresses must contain a colon and parse as an IPv6 address.
// Surrounding whitespace is rejected; callers trim provider output first.
func ParseAddr(family Family, s string) (Addr, error) {
	switch family {
	case IPv4:
		m := dottedQuad.FindStringSubmatch(s)
		if m == nil {
			return Addr{}, fmt.Errorf("%q is not a dotted-quad IPv4 address", s)
		}
		for _, octet := range m[1:] {
			if n, _ := strconv.Atoi(octet); n > 255 {
				return Addr{}, fmt.Errorf("%q has an octet out of range", s)
			}
		}
	case IPv6:
		if !strings.Contains(s, ":") {
			return Addr{}, fmt.Errorf("%q is not an IPv6 address", s)
		}
		ip, err := netip.ParseAddr(s)
		if err != nil || !ip.Is6() {
			return Addr{}, fmt.Errorf("%q is not an IPv6 address", s)
		}
	default:
		return Addr{}, fmt.Errorf("unknown address family %s", family)
	}
	return Addr{family: family, text: s}, nil
}

// MustParseAddr is like ParseAddr but panics on invalid input.
func MustParseAddr(family Family, s string) Addr {
	a, err := ParseAddr(family, s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromNetIP converts a netip.Addr, unmapping 4in6 addresses.
func FromNetIP(ip netip.Addr) (Addr, error) {
	ip = ip.Unmap()
	switch {
	case ip.Is4():
		return ParseAddr(IPv4, ip.String())
	case ip.Is6():
		return ParseAddr(IPv6, ip.String())
	}
	return Addr{}, fmt.Errorf("invalid IP %v", ip)
}

func (a Addr) Family() Family { return a.family }
func (a Addr) String() string { return a.text }
func (a Addr) IsValid() bool  { return a.family != 0 }
