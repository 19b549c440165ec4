// Package types holds the request/response and error shapes shared across
// the router, selector, health store, and HTTP layer. It has no dependency
// on any other internal package, to avoid import cycles.
package types
