// Package resolve turns the configured server hostname into the Endpoint
// the client talks to for its whole lifetime.
//
// Resolution runs once at startup and is bounded by a timeout. Resolvers
// are tried in order (plain DNS first, then mDNS browsing on the local
// segment); the first usable address wins. A failed lookup, a timeout or
// an unusable answer (invalid or unspecified address) all yield the
// configured static fallback instead. That is never an error: Lookup
// always returns an Endpoint and marks whether it is the fallback.
//
// # mDNS
//
// Reference servers advertise themselves as "_bdsc._tcp" in "local.".
// The MDNS resolver matches an advertisement by instance name or by host
// name, preferring IPv4 addresses. Browse lists every advertised server,
// which backs the "resolve --browse" command.
package resolve
