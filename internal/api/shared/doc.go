// Package shared holds request decoding, response writing and trace ID
// helpers used by the api package and its middleware.
package shared
