// Package middleware provides HTTP middleware for request tracing and
// cross-origin access.
package middleware
