// Package config handles configuration loading, parsing, and validation
// from defaults, an optional config.yaml and SCAFFOLD_ prefixed environment
// variables. It provides type-safe access to the settings of the HTTP server,
// the task store, the external generator and the task runner.
package config
