// Package movie implements the watchlist entries: validation, the CRUD
// [Service] over a [Database], and the HTTP [Handler] for the list, create,
// edit and delete routes.
package movie
