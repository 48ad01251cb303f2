// Package postgres provides the PostgreSQL implementation of task.TaskStore.
// It handles connection setup, query execution and the mapping of driver
// errors onto the sentinel errors of the internal/store package.
package postgres
