// Package engine turns a request against a database route into SQL.
//
// Resolution runs in three stages: the route's rules are merged with the
// database's top-level rules, the parameter pipeline evaluates them against
// the request, and the builder composes the final statement from the route
// template and the pipeline's fragments. Nothing here touches a database.
package engine
