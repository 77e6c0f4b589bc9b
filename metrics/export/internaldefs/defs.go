package internaldefs

import (
	sessionkit "github.com/morganforge/sessionkit"
)

// CounterDef defines a public type used by sessionkit APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   sessionkit.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by sessionkit APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   sessionkit.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the session engine.
var CounterDefs = []CounterDef{
	{ID: sessionkit.MetricSessionCreated, Name: "sessionkit_session_created_total", Help: "Created sessions."},
	{ID: sessionkit.MetricSessionStored, Name: "sessionkit_session_stored_total", Help: "Caller-constructed records stored."},
	{ID: sessionkit.MetricSessionRefreshed, Name: "sessionkit_session_refreshed_total", Help: "Successful activity refreshes."},
	{ID: sessionkit.MetricSessionExpiredObserved, Name: "sessionkit_session_expired_observed_total", Help: "Lookups that observed an expired session."},
	{ID: sessionkit.MetricSessionNotFound, Name: "sessionkit_session_not_found_total", Help: "Lookups for unknown tokens."},
	{ID: sessionkit.MetricSessionRemoved, Name: "sessionkit_session_removed_total", Help: "Explicitly removed sessions."},
	{ID: sessionkit.MetricSessionEvicted, Name: "sessionkit_session_evicted_total", Help: "Sessions evicted by the capacity policy."},
	{ID: sessionkit.MetricCleanupRuns, Name: "sessionkit_cleanup_runs_total", Help: "Cleanup sweeps executed."},
	{ID: sessionkit.MetricCleanupRemoved, Name: "sessionkit_cleanup_removed_total", Help: "Expired sessions reclaimed by cleanup sweeps."},
	{ID: sessionkit.MetricStorePoisoned, Name: "sessionkit_store_poisoned_total", Help: "Operations rejected by a poisoned store."},
	{ID: sessionkit.MetricStoreReset, Name: "sessionkit_store_reset_total", Help: "Operator store resets."},
}

// HistogramDefs is an exported constant or variable used by the session engine.
var HistogramDefs = []HistogramDef{
	{ID: sessionkit.MetricRefreshLatency, Name: "sessionkit_refresh_latency_seconds", Help: "GetAndRefresh latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the session engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the session engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
