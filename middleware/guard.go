package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
)

// Validator verifies access tokens. *authcore.Engine implements it.
type Validator interface {
	ValidateAccess(token string) (*authcore.Claims, error)
}

// Handler is an http handler that receives the verified claims.
type Handler func(w http.ResponseWriter, r *http.Request, claims *authcore.Claims)

// Guard rejects requests without a valid bearer access token and calls next
// with the token's claims.
func Guard(v Validator, next Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v == nil {
			unauthorized(w, "unauthorized")
			return
		}

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			unauthorized(w, "unauthorized")
			return
		}

		claims, err := v.ValidateAccess(token)
		if err != nil {
			if errors.Is(err, authcore.ErrTokenExpired) {
				unauthorized(w, "token expired")
				return
			}
			unauthorized(w, "unauthorized")
			return
		}

		next(w, r, claims)
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="authcore"`)
	http.Error(w, msg, http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
