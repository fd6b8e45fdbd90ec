// Package httpapi holds the gin plumbing shared by the JSON APIs: the router
// and its middleware chain, bearer authentication, error rendering, and page
// query parsing.
package httpapi
