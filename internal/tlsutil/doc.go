// Package tlsutil centralizes the TLS configuration used by every
// outbound HTTP client the router builds, enforcing TLS 1.2+ and
// AEAD-only cipher suites.
package tlsutil
