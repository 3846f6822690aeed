package authcore

import (
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/rate"
)

// rolePolicy is the per-role limiter table.
type rolePolicy struct {
	login        *limiters.AttemptLimiter
	verification *limiters.AttemptLimiter
}

func roleScoped(prefix string, role Role) string {
	return prefix + string(role) + ":"
}

func buildRolePolicies(counter *rate.Counter, cfg Config) (map[Role]rolePolicy, error) {
	out := make(map[Role]rolePolicy, 2)
	for _, role := range []Role{RoleUser, RoleHost} {
		loginLimit := cfg.Login.MaxFailures
		verifyLimit := cfg.Verification.MaxFailures
		if o, ok := cfg.RoleOverrides[role]; ok {
			if o.LoginMaxFailures > 0 {
				loginLimit = o.LoginMaxFailures
			}
			if o.VerificationMaxFailures > 0 {
				verifyLimit = o.VerificationMaxFailures
			}
		}

		login, err := limiters.NewAttemptLimiter(counter, limiters.Policy{
			FailurePrefix: roleScoped(cfg.Keys.LoginFailurePrefix, role),
			Limit:         loginLimit,
			Window:        cfg.Login.FailureWindow,
		})
		if err != nil {
			return nil, err
		}

		verification, err := limiters.NewAttemptLimiter(counter, limiters.Policy{
			FailurePrefix: roleScoped(cfg.Keys.VerifyFailurePrefix, role),
			BlockPrefix:   roleScoped(cfg.Keys.VerifyBlockPrefix, role),
			Limit:         verifyLimit,
			Window:        cfg.Verification.FailureWindow,
			BlockDuration: cfg.Verification.BlockDuration,
		})
		if err != nil {
			return nil, err
		}

		out[role] = rolePolicy{login: login, verification: verification}
	}
	return out, nil
}
