// Package sqlite implements the watchlist persistence on SQLite.
//
// [SQLiteDB] stores the users and movies tables and satisfies the Database
// interfaces of the user and movie packages. Every method takes the request
// context; multi-statement operations run inside [SQLiteDB.WithTx].
//
// The schema lives in schema.sql and is applied whole by [SQLiteDB.InitSchema].
// There is no migration history.
package sqlite
