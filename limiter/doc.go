// Package limiter implements distributed token-bucket admission control.
//
// Each (identifier, tier) pair owns a bucket of tokens in a shared store.
// The bucket refills continuously at the tier's rate up to its capacity, and
// every admitted request is charged the tier's cost. Because the refill and
// the charge run as one atomic step inside the store, many request-handling
// workers across many machines can call Check for the same identifier
// without double-spending tokens; no in-process locks are involved.
//
// The limiter does not parse HTTP, tokens or proxy headers. Callers resolve
// an opaque identifier ("user:<id>" or "ip:<address>") and a tier name, call
// Check, and map the Decision onto their transport; the httpmw and grpcmw
// packages do exactly that for net/http and gRPC.
//
// When the store is unreachable the limiter never fails the request path:
// the configured FailurePolicy turns the outage into an allow-all (FailOpen,
// the default) or deny-all (FailClosed) verdict flagged as Degraded.
package limiter
