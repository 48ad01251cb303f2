// Package store defines the persistence vocabulary shared by every task store
// backend: sentinel errors, the DBTX abstraction over *sql.DB and *sql.Tx, and
// transaction helpers. Concrete stores live under internal/platform.
package store
