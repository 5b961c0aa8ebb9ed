package ddns

import "fmt"

// Decision is the outcome of comparing a resolved address with the last applied one.
type Decision int

const (
	// Unknown means the family was not resolved this tick.
	Unknown Decision = iota
	Unchanged
	Changed
	ForcedUpdate
)

func (d Decision) String() string {
	switch d {
	case Unknown:
		return "unknown"
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	case ForcedUpdate:
		return "forced"
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

// Triggers reports whether d requires an update to be sent.
func (d Decision) Triggers() bool {
	return d == Changed || d == ForcedUpdate
}

// Decide compares a freshly resolved address against the stored one.
// hasPrior is false when nothing was stored for the family.
func Decide(prior Addr, hasPrior bool, current Addr, force bool) Decision {
	switch {
	case !current.IsValid():
		return Unknown
	case force:
		return ForcedUpdate
	case !hasPrior:
		return Changed
	case prior == current:
		return Unchanged
	default:
		return Changed
	}
}

// Resolved holds the addresses found in one tick. A zero Addr is absent.
type Resolved struct {
	IPv4 Addr
	IPv6 Addr
}

// Plan is the per-family outcome of reconciliation.
type Plan struct {
	IPv4, IPv6       Decision
	PriorV4, PriorV6 Addr
	Current          Resolved
}

// NeedsUpdate reports whether either family requires an update.
// Both families travel in the same request, so one trigger sends both.
func (p Plan) NeedsUpdate() bool {
	return p.IPv4.Triggers() || p.IPv6.Triggers()
}

// Reconciler decides whether resolved addresses differ from what was last applied.
// It reads state only through its StateStore.
type Reconciler struct {
	Store StateStore
}

// Evaluate builds a Plan for the resolved addresses.
func (r Reconciler) Evaluate(current Resolved, force bool) Plan {
	p := Plan{Current: current}
	var ok bool
	p.PriorV4, ok = r.Store.Load(IPv4)
	p.IPv4 = Decide(p.PriorV4, ok, current.IPv4, force)
	p.PriorV6, ok = r.Store.Load(IPv6)
	p.IPv6 = Decide(p.PriorV6, ok, current.IPv6, force)
	return p
}

// Commit records every family that was sent in a successful update.
func (r Reconciler) Commit(sent Resolved) {
	if sent.IPv4.IsValid() {
		r.Store.Save(IPv4, sent.IPv4)
	}
	if sent.IPv6.IsValid() {
		r.Store.Save(IPv6, sent.IPv6)
	}
}
