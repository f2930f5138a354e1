package studioapi

import (
	"time"

	"github.com/go-jose/go-jose/v3/jwt"

	"github.com/kuitang/plextera-e2e/internal/errs"
)

// TokenExpiry returns the exp claim of a JWT access token. The signature is
// not checked: the suite only holds tokens it just received from the
// backend.
func TokenExpiry(token string) (time.Time, error) {
	parsed, err := jwt.ParseSigned(token)
	if err != nil {
		return time.Time{}, errs.Wrap(errs.InvalidArgument, "studioapi: access token is not a JWT", err)
	}
	var claims jwt.Claims
	if err := parsed.UnsafeClaimsWithoutVerification(&claims); err != nil {
		return time.Time{}, errs.Wrap(errs.InvalidArgument, "studioapi: access token claims", err)
	}
	if claims.Expiry == nil {
		return time.Time{}, errs.New(errs.NotFound, "studioapi: access token has no exp claim")
	}
	return claims.Expiry.Time(), nil
}

// TokenExpired reports whether a JWT access token is past its exp claim.
// Tokens that are not JWTs or carry no exp are treated as live.
func TokenExpired(token string, now time.Time) bool {
	exp, err := TokenExpiry(token)
	if err != nil {
		return false
	}
	return !now.Before(exp)
}
