// Package sqlitestore implements twogate's CredentialStore on SQLite using
// the pure-Go modernc.org/sqlite driver. It owns the users schema, upgrades
// older databases in place at open time, and keeps the lockout counters
// atomic with single-statement updates.
package sqlitestore
