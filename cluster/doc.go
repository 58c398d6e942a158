// Package cluster provides lease-based leader election and worker
// liveness over the shared store.
//
// # Leader Election
//
// Every process campaigns once per election interval. A campaign first
// tries to create the lease key with the worker's ID and the lease TTL; if
// the key exists, it extends the TTL only if the key still holds the same
// ID. A worker that does neither is a follower for that cycle. Because the
// acquiring branch always sets the TTL, a crashed leader's lease lapses on
// its own and a follower takes over on its next campaign; failover latency
// is bounded by the TTL.
//
// The lease TTL must exceed the election interval or a live leader would
// lose the lease between renewals. nuts.Config.Validate enforces this.
//
// # Liveness
//
// [Heartbeats] maintains one expiring key per worker. The recovery sweep
// treats a running entry whose worker key has lapsed as orphaned.
package cluster
