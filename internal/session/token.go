package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Expired reports whether token is a JWT whose expiry has passed. The token
// is treated as opaque if it does not parse as a JWT or carries no exp claim;
// opaque tokens never expire locally and the server remains the judge.
//
// The signature is deliberately not verified: the client does not hold the
// server's secret, it only wants to skip a connection attempt that is certain
// to be rejected.
func Expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
