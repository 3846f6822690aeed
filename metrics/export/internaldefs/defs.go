package internaldefs

import (
	"strconv"
	"time"

	"github.com/MrEthical07/authcore"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// AuditDropped is exported alongside the engine counters.
var AuditDropped = CounterDef{
	Name: "authcore_audit_dropped_total",
	Help: "Audit events dropped because the dispatcher buffer was full.",
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful password logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Password logins rejected below the lockout limit."},
	{ID: authcore.MetricLoginNotFound, Name: "authcore_login_not_found_total", Help: "Logins for unknown principals."},
	{ID: authcore.MetricLoginLockedRejected, Name: "authcore_login_locked_rejected_total", Help: "Logins rejected because the account is locked."},
	{ID: authcore.MetricAccountLocked, Name: "authcore_account_locked_total", Help: "Accounts locked after repeated login failures."},
	{ID: authcore.MetricLockoutNoticeFailed, Name: "authcore_lockout_notice_failed_total", Help: "Lockout notifications that could not be sent."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Logout operations."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refresh token exchanges."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Rejected refresh token exchanges."},
	{ID: authcore.MetricVerificationIssued, Name: "authcore_verification_issued_total", Help: "Verification codes issued and delivered."},
	{ID: authcore.MetricVerificationAlreadySent, Name: "authcore_verification_already_sent_total", Help: "Code requests rejected while a code is outstanding."},
	{ID: authcore.MetricVerificationDeliveryFailed, Name: "authcore_verification_delivery_failed_total", Help: "Verification codes that could not be delivered."},
	{ID: authcore.MetricVerificationSuccess, Name: "authcore_verification_success_total", Help: "Successful code verifications."},
	{ID: authcore.MetricVerificationMismatch, Name: "authcore_verification_mismatch_total", Help: "Code verifications with a wrong code."},
	{ID: authcore.MetricVerificationBlocked, Name: "authcore_verification_blocked_total", Help: "Code verifications rejected by an attempt block."},
	{ID: authcore.MetricRegistrationSuccess, Name: "authcore_registration_success_total", Help: "Completed registrations."},
	{ID: authcore.MetricRegistrationDuplicate, Name: "authcore_registration_duplicate_total", Help: "Registrations rejected by a uniqueness constraint."},
	{ID: authcore.MetricRegistrationCompensated, Name: "authcore_registration_compensated_total", Help: "Registrations rolled back after a provisioning failure."},
	{ID: authcore.MetricRegistrationCompensationFailed, Name: "authcore_registration_compensation_failed_total", Help: "Registrations whose rollback failed."},
	{ID: authcore.MetricSocialLogin, Name: "authcore_social_login_total", Help: "Successful social logins."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricValidateLatency, Name: "authcore_validate_latency_seconds", Help: "Access token validation latency."},
	{ID: authcore.MetricRegistrationLatency, Name: "authcore_registration_latency_seconds", Help: "Registration latency including remote provisioning."},
}

// InfLabel is the le label of the unbounded bucket.
const InfLabel = "+Inf"

// Bucket is one cumulative bucket of a histogram series.
type Bucket struct {
	Label string
	Count uint64
}

// Series is a histogram ready for export.
type Series struct {
	Buckets []Bucket
	Count   uint64
	Sum     float64
}

// BuildSeries turns the non-cumulative snapshot buckets of def into
// cumulative ones labelled by their upper bound in seconds. Missing buckets
// count as zero.
func BuildSeries(def HistogramDef, snap authcore.MetricsSnapshot) Series {
	bounds := authcore.HistogramBounds(def.ID)
	raw := snap.Histograms[def.ID]

	s := Series{
		Buckets: make([]Bucket, len(bounds)+1),
		Sum:     snap.HistogramSums[def.ID].Seconds(),
	}
	for i := range s.Buckets {
		if i < len(raw) {
			s.Count += raw[i]
		}
		label := InfLabel
		if i < len(bounds) {
			label = FormatBound(bounds[i])
		}
		s.Buckets[i] = Bucket{Label: label, Count: s.Count}
	}
	return s
}

// FormatBound renders d in seconds without exponent notation.
func FormatBound(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
