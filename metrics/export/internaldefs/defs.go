package internaldefs

import (
	"github.com/kurabu/authflow"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for exporters.
type HistogramDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authflow.MetricRegisterStarted, Name: "authflow_register_started_total", Help: "Registrations that created a verif session."},
	{ID: authflow.MetricRegisterRejected, Name: "authflow_register_rejected_total", Help: "Registrations rejected by input validation."},
	{ID: authflow.MetricRegisterMailUsed, Name: "authflow_register_mail_used_total", Help: "Registrations rejected for an already registered email."},
	{ID: authflow.MetricRegisterRateLimited, Name: "authflow_register_rate_limited_total", Help: "Registrations denied by the register throttle."},
	{ID: authflow.MetricMailFailure, Name: "authflow_mail_failure_total", Help: "Verification mails that failed to send."},
	{ID: authflow.MetricRegisterCanceled, Name: "authflow_register_canceled_total", Help: "Registrations canceled during verification."},
	{ID: authflow.MetricVerifySuccess, Name: "authflow_verify_success_total", Help: "Correct verification codes."},
	{ID: authflow.MetricVerifyIncorrect, Name: "authflow_verify_incorrect_total", Help: "Incorrect verification codes with retries left."},
	{ID: authflow.MetricVerifyAttemptsExceeded, Name: "authflow_verify_attempts_exceeded_total", Help: "Sessions deleted after exhausting verification attempts."},
	{ID: authflow.MetricExchangeSuccess, Name: "authflow_exchange_success_total", Help: "Successful upstream token exchanges."},
	{ID: authflow.MetricExchangeFailure, Name: "authflow_exchange_failure_total", Help: "Failed upstream token exchanges."},
	{ID: authflow.MetricRegistrationCompleted, Name: "authflow_registration_completed_total", Help: "Registrations that reached done."},
	{ID: authflow.MetricStateLoaded, Name: "authflow_state_loaded_total", Help: "Done sessions loaded from the repository."},
	{ID: authflow.MetricTokensRefreshed, Name: "authflow_tokens_refreshed_total", Help: "Upstream token pairs replaced after a refresh."},
	{ID: authflow.MetricLoginSuccess, Name: "authflow_login_success_total", Help: "Successful logins."},
	{ID: authflow.MetricLoginFailure, Name: "authflow_login_failure_total", Help: "Failed logins."},
	{ID: authflow.MetricSessionErrored, Name: "authflow_session_errored_total", Help: "Sessions forced to errored."},
	{ID: authflow.MetricSessionExpired, Name: "authflow_session_expired_total", Help: "Sessions deleted by expiry."},
	{ID: authflow.MetricSessionTokenIssued, Name: "authflow_session_token_issued_total", Help: "Signed session tokens issued."},
}

var HistogramDefs = []HistogramDef{
	{ID: authflow.MetricExchangeLatency, Name: "authflow_exchange_latency_seconds", Help: "Upstream token exchange latency."},
}

const (
	AuditDroppedName = "authflow_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
	SessionsName     = "authflow_sessions"
	SessionsHelp     = "Sessions currently held in memory."
)

// HistogramUpperBounds are the finite bucket bounds in seconds, matching the
// engine's millisecond buckets. The eighth bucket is +Inf.
var HistogramUpperBounds = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
