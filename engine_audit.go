package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/internal/flows"
)

var eventMetrics = map[string]MetricID{
	flows.EventLoginSuccess:              MetricLoginSuccess,
	flows.EventLoginFailure:              MetricLoginFailure,
	flows.EventLoginNotFound:             MetricLoginNotFound,
	flows.EventLoginLockedRejected:       MetricLoginLockedRejected,
	flows.EventAccountLocked:             MetricAccountLocked,
	flows.EventLockoutNoticeFailed:       MetricLockoutNoticeFailed,
	flows.EventLogout:                    MetricLogout,
	flows.EventRefreshSuccess:            MetricRefreshSuccess,
	flows.EventRefreshFailure:            MetricRefreshFailure,
	flows.EventVerificationIssued:        MetricVerificationIssued,
	flows.EventVerificationAlreadySent:   MetricVerificationAlreadySent,
	flows.EventVerificationDeliveryFail:  MetricVerificationDeliveryFailed,
	flows.EventVerificationConfirmed:     MetricVerificationSuccess,
	flows.EventVerificationMismatch:      MetricVerificationMismatch,
	flows.EventVerificationBlocked:       MetricVerificationBlocked,
	flows.EventRegistrationCreated:       MetricRegistrationSuccess,
	flows.EventRegistrationDuplicate:     MetricRegistrationDuplicate,
	flows.EventRegistrationCompensated:   MetricRegistrationCompensated,
	flows.EventRegistrationCompensateErr: MetricRegistrationCompensationFailed,
	flows.EventSocialLogin:               MetricSocialLogin,
}

func (e *Engine) observer() flows.Observer {
	return flows.Observer{Emit: e.emit}
}

// emit counts ev and forwards it to the audit dispatcher. Events carry the
// external UUID only; flows never put emails or secrets into them.
func (e *Engine) emit(ctx context.Context, ev flows.Event) {
	if id, ok := eventMetrics[ev.Type]; ok {
		e.metricInc(id)
	}
	if e == nil || e.audit == nil {
		return
	}

	event := newAuditEvent(time.Now(), ev.Type)
	event.Role = Role(ev.Role)
	event.Subject = ev.Subject
	event.Success = ev.Success
	if ev.Err != nil {
		kind := KindOf(ev.Err)
		event.Kind = kind.String()
		event.Error = auditErrorCode(ev.Err)
	}
	if len(ev.Metadata) > 0 {
		event.Metadata = make(map[string]string, len(ev.Metadata))
		for k, v := range ev.Metadata {
			event.Metadata[k] = v
		}
	}

	e.audit.Emit(ctx, event)
}

// auditErrorCode returns a stable, secret-free code for err. Unknown errors
// are reported by kind only.
func auditErrorCode(err error) string {
	for _, c := range auditErrorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal_error"
}

var auditErrorCodes = []struct {
	err  error
	code string
}{
	{ErrCompensationFailed, "compensation_failed"},
	{ErrRemoteProvisioningFailed, "remote_provisioning_failed"},
	{ErrAccountLocked, "account_locked"},
	{ErrVerificationBlocked, "verification_blocked"},
	{ErrVerificationAlreadySent, "verification_already_sent"},
	{ErrVerificationDeliveryFailed, "verification_delivery_failed"},
	{ErrExternalVerificationFailed, "external_verification_failed"},
	{ErrBusinessNumberInvalid, "business_number_invalid"},
	{ErrInvalidSettlementCycle, "invalid_settlement_cycle"},
	{ErrUnsupportedProvider, "unsupported_provider"},
	{ErrInvalidVerificationCode, "invalid_verification_code"},
	{ErrInvalidPassword, "invalid_password"},
	{ErrPasswordLoginUnavailable, "password_login_unavailable"},
	{ErrVerificationMismatch, "verification_mismatch"},
	{ErrVerificationCodeNotFound, "verification_code_not_found"},
	{ErrPrincipalNotFound, "principal_not_found"},
	{ErrEmailAlreadyExists, "email_already_exists"},
	{ErrPrincipalConflict, "principal_conflict"},
	{ErrTokenExpired, "token_expired"},
	{ErrRefreshInvalid, "refresh_invalid"},
	{ErrTokenInvalid, "token_invalid"},
	{ErrStoreUnavailable, "store_unavailable"},
}
