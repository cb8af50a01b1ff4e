// Package user implements authentication for the single watchlist admin.
//
// [Service] holds the credential logic: login with a bcrypt check, logout by
// bumping the admin's session version, the session check used by the route
// guard, the display-name update and the admin bootstrap. [Handler] exposes
// those operations as HTTP routes and provides the [Handler.Authenticate] and
// [Handler.RequireAuth] middleware. The authenticated user travels in the
// request context ([NewContext], [FromContext]).
package user
