package internaldefs

import (
	goPortal "github.com/MrEthical07/goPortal"
)

// CounterDef binds a client metric to its exported name and help text.
type CounterDef struct {
	ID   goPortal.MetricID
	Name string
	Help string
}

// HistogramDef binds a client histogram to its exported name and help text.
type HistogramDef struct {
	ID   goPortal.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goPortal.MetricCallSuccess, Name: "goportal_call_success_total", Help: "Dispatched calls that completed with a 2xx response."},
	{ID: goPortal.MetricCallHardFailure, Name: "goportal_call_hard_failure_total", Help: "Dispatched calls that ended with a non-success status."},
	{ID: goPortal.MetricCallTransportFailure, Name: "goportal_call_transport_failure_total", Help: "Dispatched calls that never received a response."},
	{ID: goPortal.MetricRenewalAttempt, Name: "goportal_renewal_attempt_total", Help: "Access credential renewal attempts."},
	{ID: goPortal.MetricRenewalSuccess, Name: "goportal_renewal_success_total", Help: "Successful access credential renewals."},
	{ID: goPortal.MetricRenewalFailure, Name: "goportal_renewal_failure_total", Help: "Failed access credential renewals."},
	{ID: goPortal.MetricRenewalShared, Name: "goportal_renewal_shared_total", Help: "Renewals that joined an exchange already in flight."},
	{ID: goPortal.MetricReplayRejected, Name: "goportal_replay_rejected_total", Help: "Replayed calls rejected after a successful renewal."},
	{ID: goPortal.MetricSessionExpired, Name: "goportal_session_expired_total", Help: "Sessions ended because the credentials could not be renewed."},
	{ID: goPortal.MetricLoginSuccess, Name: "goportal_login_success_total", Help: "Successful logins."},
	{ID: goPortal.MetricLoginFailure, Name: "goportal_login_failure_total", Help: "Failed logins."},
	{ID: goPortal.MetricLoginRoleMismatch, Name: "goportal_login_role_mismatch_total", Help: "Logins rejected because the account does not belong to this portal."},
	{ID: goPortal.MetricResumeSuccess, Name: "goportal_resume_success_total", Help: "Sessions restored from stored credentials."},
	{ID: goPortal.MetricResumeNoSession, Name: "goportal_resume_no_session_total", Help: "Resume attempts with no stored credentials."},
	{ID: goPortal.MetricResumeRejected, Name: "goportal_resume_rejected_total", Help: "Resume attempts whose stored credentials were rejected."},
	{ID: goPortal.MetricResumeUnreachable, Name: "goportal_resume_unreachable_total", Help: "Resume attempts that could not reach the backend."},
	{ID: goPortal.MetricLogout, Name: "goportal_logout_total", Help: "Logouts."},
	{ID: goPortal.MetricRolesFetched, Name: "goportal_roles_fetched_total", Help: "Role catalog downloads."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goPortal.MetricCallLatency, Name: "goportal_call_latency_seconds", Help: "Dispatched call latency including renewal and replay."},
}

// HistogramBounds are the upper bounds, in seconds, of the latency buckets.
var HistogramBounds = [8]string{
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"+Inf",
}

// HistogramBoundValues are [HistogramBounds] without the +Inf bucket.
var HistogramBoundValues = [7]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// HistogramBoundSuffix is the metric-name-safe form of [HistogramBounds].
var HistogramBoundSuffix = [8]string{
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"inf",
}

// NormalizeBuckets pads or truncates raw to exactly eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	if len(raw) == 0 {
		return out
	}

	n := len(raw)
	if n > len(out) {
		n = len(out)
	}
	copy(out[:], raw[:n])
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
