// Package persistence is the single storage abstraction of the client.
//
// A Gateway wraps one *sql.DB opened with either the embedded SQLite driver
// (modernc.org/sqlite) or Postgres (jackc/pgx/v5/stdlib). Queries are always
// written with "?" placeholders; the Postgres dialect rebinds them to $n.
// Schema migrations for both dialects are embedded and applied by Open.
//
// Transaction runs a function against a transactional Store and commits only
// if it returns nil. Inside the function, use the Store it receives, never
// the Gateway itself: the SQLite dialect holds a single connection.
package persistence
