// Package store persists providers, mapping templates, plan runs, staged
// rows, brands, and the product catalog in a single SQLite database.
//
// All timestamps are stored as RFC 3339 text in UTC. Writes go through a
// small busy-retry wrapper because SQLite holds one writer at a time; readers
// use WAL snapshots and never retry. Run status transitions are enforced in
// SQL with conditional updates so concurrent actors cannot double-start or
// double-finish a run.
package store
