package ddns

import "testing"

type memStore map[Family]Addr

func (m memStore) Load(f Family) (Addr, bool) {
	a, ok := m[f]
	return a, ok
}

func (m memStore) Save(f Family, a Addr) { m[f] = a }

func TestDecide(t *testing.T) {
	a := MustParseAddr(IPv4, "203.0.113.5")
	b := MustParseAddr(IPv4, "203.0.113.6")

	tests := []struct {
		name     string
		prior    Addr
		hasPrior bool
		current  Addr
		force    bool
		want     Decision
	}{
		{"first run", Addr{}, false, a, false, Changed},
		{"same", a, true, a, false, Unchanged},
		{"different", a, true, b, false, Changed},
		{"forced same", a, true, a, true, ForcedUpdate},
		{"forced first run", Addr{}, false, a, true, ForcedUpdate},
		{"unresolved", a, true, Addr{}, false, Unknown},
		{"unresolved forced", a, true, Addr{}, true, Unknown},
	}
	for _, tc := range tests {
		if got := Decide(tc.prior, tc.hasPrior, tc.current, tc.force); got != tc.want {
			t.Errorf("%s: expected %s; got %s", tc.name, tc.want, got)
		}
	}
}

func TestDecisionTriggers(t *testing.T) {
	for d, want := range map[Decision]bool{Unknown: false, Unchanged: false, Changed: true, ForcedUpdate: true} {
		if d.Triggers() != want {
			t.Errorf("%s.Triggers() = %v", d, !want)
		}
	}
}

func TestEvaluateAndCommit(t *testing.T) {
	store := memStore{IPv4: MustParseAddr(IPv4, "192.0.2.1")}
	r := Reconciler{Store: store}

	cur := Resolved{IPv4: MustParseAddr(IPv4, "192.0.2.1")}
	p := r.Evaluate(cur, false)
	if p.IPv4 != Unchanged || p.IPv6 != Unknown || p.NeedsUpdate() {
		t.Fatalf("Expected no update; got %+v", p)
	}

	cur.IPv6 = MustParseAddr(IPv6, "2001:db8::1")
	p = r.Evaluate(cur, false)
	if p.IPv6 != Changed || !p.NeedsUpdate() {
		t.Fatalf("Expected a new IPv6 address to need an update; got %+v", p)
	}
	if p.PriorV4.String() != "192.0.2.1" {
		t.Fatalf("Expected prior IPv4 192.0.2.1; got %q", p.PriorV4)
	}

	r.Commit(cur)
	if store[IPv6] != cur.IPv6 {
		t.Fatalf("Expected IPv6 to be committed")
	}
	if p := r.Evaluate(cur, false); p.NeedsUpdate() {
		t.Fatalf("Expected no update after commit; got %+v", p)
	}
}

func TestCommitSkipsAbsentFamilies(t *testing.T) {
	store := memStore{IPv6: MustParseAddr(IPv6, "2001:db8::1")}
	Reconciler{Store: store}.Commit(Resolved{IPv4: MustParseAddr(IPv4, "192.0.2.1")})
	if store[IPv6].String() != "2001:db8::1" {
		t.Fatalf("Absent IPv6 must not overwrite stored IPv6; got %q", store[IPv6])
	}
}
