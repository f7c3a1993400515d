package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiresAt decodes the exp claim from the token's middle segment without
// verifying the signature. The client never enforces expiry itself; the value
// is only shown to the operator.
func ExpiresAt(tokenStr string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
