package middleware

import (
	"net/http"

	"github.com/MrEthical07/authcore"
)

// RequireRole is [Guard] restricted to tokens issued for role. Tokens of
// another role get 403.
func RequireRole(v Validator, role authcore.Role, next Handler) http.Handler {
	return Guard(v, func(w http.ResponseWriter, r *http.Request, claims *authcore.Claims) {
		if claims.Role != role {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next(w, r, claims)
	})
}
