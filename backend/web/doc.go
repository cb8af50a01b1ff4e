// Package web holds the HTML presentation layer: the embedded page templates,
// the [Renderer] that executes them, and the request logging and panic
// recovery middleware shared by every route.
package web
