package internaldefs

import (
	goGuard "github.com/MrEthical07/goGuard"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram.
type HistogramDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// AuditDroppedName is the series for audit events lost to backpressure.
const AuditDroppedName = "goguard_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Audit events dropped on a full queue or an expired flush."

var CounterDefs = []CounterDef{
	{ID: goGuard.MetricTickProcessed, Name: "goguard_tick_processed_total", Help: "Monitor ticks that queried the event source."},
	{ID: goGuard.MetricTickSkipped, Name: "goguard_tick_skipped_total", Help: "Monitor ticks rejected by the minimum spacing gate."},
	{ID: goGuard.MetricTickFailed, Name: "goguard_tick_failed_total", Help: "Monitor ticks abandoned on event source errors."},
	{ID: goGuard.MetricFallbackQuery, Name: "goguard_fallback_query_total", Help: "Ticks that fell back to the current foreground query."},
	{ID: goGuard.MetricTransitionForwarded, Name: "goguard_transition_forwarded_total", Help: "Foreground transitions handed to the lock decision."},
	{ID: goGuard.MetricTransitionDuplicate, Name: "goguard_transition_duplicate_total", Help: "Foreground transitions dropped as duplicate or in flight."},
	{ID: goGuard.MetricDecisionNotLocked, Name: "goguard_decision_not_locked_total", Help: "Decisions for apps outside the locked set."},
	{ID: goGuard.MetricDecisionReserved, Name: "goguard_decision_reserved_total", Help: "Decisions for reserved apps."},
	{ID: goGuard.MetricDecisionWithinGrace, Name: "goguard_decision_within_grace_total", Help: "Decisions skipped inside the grace period."},
	{ID: goGuard.MetricDecisionChallenge, Name: "goguard_decision_challenge_total", Help: "Decisions that required a challenge."},
	{ID: goGuard.MetricSessionAnnounced, Name: "goguard_session_announced_total", Help: "Authentication sessions started."},
	{ID: goGuard.MetricSessionGranted, Name: "goguard_session_granted_total", Help: "Sessions that ended granted."},
	{ID: goGuard.MetricSessionDenied, Name: "goguard_session_denied_total", Help: "Sessions that ended denied."},
	{ID: goGuard.MetricSessionExpired, Name: "goguard_session_expired_total", Help: "Sessions that timed out or ended on screen off."},
	{ID: goGuard.MetricSessionSuperseded, Name: "goguard_session_superseded_total", Help: "Sessions superseded by another app."},
	{ID: goGuard.MetricSessionInFlightRejected, Name: "goguard_session_in_flight_rejected_total", Help: "Session starts refused because one was live."},
	{ID: goGuard.MetricSuspendIssued, Name: "goguard_suspend_issued_total", Help: "Target suspensions issued."},
	{ID: goGuard.MetricSuspendFailure, Name: "goguard_suspend_failure_total", Help: "Target suspensions that failed."},
	{ID: goGuard.MetricCapabilityUnavailable, Name: "goguard_capability_unavailable_total", Help: "Sessions denied because the challenge pipeline could not run."},
	{ID: goGuard.MetricOutcomeRejected, Name: "goguard_outcome_rejected_total", Help: "Provider outcomes with unverifiable tickets."},
	{ID: goGuard.MetricOutcomeStale, Name: "goguard_outcome_stale_total", Help: "Provider outcomes for sessions no longer live."},
	{ID: goGuard.MetricGrantsCleared, Name: "goguard_grants_cleared_total", Help: "Whole grant table invalidations."},
	{ID: goGuard.MetricStoreFailure, Name: "goguard_store_failure_total", Help: "Locked set or grant table operations that failed."},
}

var HistogramDefs = []HistogramDef{
	{ID: goGuard.MetricTickLatency, Name: "goguard_tick_latency_seconds", Help: "Monitor tick latency histogram."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The last engine bucket
// is +Inf and has no entry here.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names every bucket, +Inf included, for exporters that publish one
// gauge per bucket.
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

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
