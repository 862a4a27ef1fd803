// Package queue persists conversion jobs in SQLite and provides the atomic
// claim primitive that lets multiple workers share one database safely.
package queue
