// Package sqlite provides a single-file task.TaskStore on top of the pure Go
// modernc.org/sqlite driver. The schema is applied with goose on Open.
package sqlite
