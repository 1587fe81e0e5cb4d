// Package browser defines the capabilities the LCCN resolver needs from a
// browser session. Selectors are CSS selectors. A selector that matches
// nothing is never an error.
package browser

import (
	"context"
)

// Browser is a single page session. Only one page is current at a time and
// every Locate call reads the page loaded by the most recent Navigate.
type Browser interface {
	// Navigate loads url as the current page. Callers bound the page load
	// through ctx.
	Navigate(ctx context.Context, url string) error
	// LocateAll returns every element on the current page matching selector,
	// in document order.
	LocateAll(selector string) ([]Element, error)
	// LocateOne returns the first match. ok is false when nothing matches.
	LocateOne(selector string) (el Element, ok bool, err error)
}

// Element is a node of the current page.
type Element interface {
	Text() (string, error)
	// Attribute returns the named attribute. ok is false when it is absent.
	Attribute(name string) (value string, ok bool, err error)
	// LocateAll and LocateOne search the element's descendants only.
	LocateAll(selector string) ([]Element, error)
	LocateOne(selector string) (el Element, ok bool, err error)
}

// Snapshotter is implemented by sessions that can capture the current page
// for diagnostics.
type Snapshotter interface {
	// Snapshot returns the captured page and the file extension to store it
	// under, including the leading dot.
	Snapshot() (data []byte, ext string, err error)
}
