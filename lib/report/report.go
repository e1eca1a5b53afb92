package report

import (
	"fmt"
)

// API is an abstraction over diagnostic reporting and counters.
// Scraper packages take one of these instead of logging directly so
// callers decide where breakage reports end up (slog, a dashboard, a
// test assertion, nowhere).
//
// note: fault injection point
type API interface {
	// ReportBroken reports a component that has broken in a way that
	// should be addressed.
	//
	// The `id` identifies the **component** that broke, not the specific
	// line of the implementation that failed. If you came across the
	// report in a dashboard, the id should be enough to locate the broken
	// scraper method, e.g. `film.get-statistics` when the stats fragment
	// of the film scraper stopped parsing.
	//
	// Formatting rules:
	// 1) all lowercase
	// 2) use underscores for large components
	// 3) use dashes for methods part of a larger component
	//
	// Disambiguating detail (which selector, which url) belongs in params
	// or a wrapped error, not in the id. Scoping by package is handled by
	// ScopedAPI, so `<struct or intf>.<method>` is usually enough.
	ReportBroken(id string, params ...any)

	// ReportWarning reports a scenario that does not necessarily indicate
	// brokenness but may be subject to investigation, e.g. a layout
	// element that is allowed to be missing went missing.
	//
	// For what value to provide as `id` refer to ReportBroken.
	ReportWarning(id string, params ...any)

	// ReportDebug reports debug information that will be ignored in production.
	ReportDebug(msg string, params ...any)

	// ReportCount reports the current count of a specific event at the
	// current time. Counts are points of data over time, not values to sum.
	//
	// For what value to provide as `id` refer to ReportBroken.
	ReportCount(id string, count int64)
}

// ScopedAPI attaches a namespace to a given API, kind of like creating
// a "sub" logger with log.New() and a prefix.
type ScopedAPI struct {
	namespace string
	inner     API
}

// NewScopedAPI creates a ScopedAPI out of a given namespace and another api.
func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(fmt.Sprintf("%s: %s", s.namespace, msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(fmt.Sprintf("%s: %s", s.namespace, id), count)
}

// NoopAPI discards every report. Useful as a default when the caller
// does not care about diagnostics.
type NoopAPI struct{}

func (NoopAPI) ReportBroken(id string, params ...any)  {}
func (NoopAPI) ReportWarning(id string, params ...any) {}
func (NoopAPI) ReportDebug(msg string, params ...any)  {}
func (NoopAPI) ReportCount(id string, count int64)     {}
