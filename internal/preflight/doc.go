// Package preflight checks that the application under test is being served
// before a browser is launched.
//
// The probe performs a single HTTP GET against the target URL and parses the
// response with golang.org/x/net/html. It records the document title and
// whether the file input is present in the served markup. Single-page apps
// usually render that input client-side, so its absence is reported but is
// not an error; an unreachable server or a non-2xx status is.
package preflight
