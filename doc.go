/*
Package ddns keeps a dynamic DNS record pointed at the caller's current public IP address.

Usage will always start with [ddns.New],
which takes a [Config] naming the domain, TTL and credential,
and returns a [Client] whose [Client.Tick] runs one detect-compare-update cycle:

  - a [Resolver] discovers the current IPv4 address, and optionally an IPv6 address;
  - a [Reconciler] compares them with the addresses stored by a [StateStore];
  - when something changed (or the update is forced), a [Dispatcher] sends one update;
  - on success the sent addresses are stored, so the next tick is a no-op.

[RunDaemon] and [Scheduler] repeat ticks at a fixed interval until their context is cancelled.
A Dispatcher must be registered with one of the options listed in the docs for New.
*/
package ddns
