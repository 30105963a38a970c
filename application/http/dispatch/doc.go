// Package dispatch turns a request into a response by running middleware,
// resolving a view and mapping known errors to error responses.
//
// A request goes through these phases:
//
//	request middleware -> resolve -> view middleware -> invoke
//	  -> template response middleware -> render -> response middleware
//
// Errors from resolve, invoke and render are first offered to exception
// middleware. Errors nobody handles are mapped to 400, 403 or 404 when their
// [semantic.Kind] is known, and returned to the caller otherwise.
package dispatch
