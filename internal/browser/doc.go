// Package browser drives a real browser for uiprobe.
//
// A Launcher starts a browser and returns a Browser. A Browser opens Pages and
// must be closed exactly once; closing it also releases every page it opened.
// Pages expose only the operations the verification pipeline needs, expressed
// through externally visible DOM semantics: CSS selectors, ARIA role plus
// accessible name, and visible text.
//
// Two drivers implement the interfaces:
//   - playwright: github.com/playwright-community/playwright-go
//   - rod: github.com/go-rod/rod over the Chrome DevTools protocol
//
// Driver errors are wrapped with one of the sentinel errors in errors.go while
// the original error stays in the chain.
package browser
