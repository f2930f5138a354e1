package studiofake

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"

	"github.com/kuitang/plextera-e2e/internal/errs"
)

// DefaultTokenTTL is the lifetime of an access token.
const DefaultTokenTTL = time.Hour

// accessClaims are the custom claims of an access token.
type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// issuer signs and verifies HS256 access tokens. Logged-out tokens are
// remembered until they expire.
type issuer struct {
	key    []byte
	signer jose.Signer
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> expiry
}

func newIssuer(ttl time.Duration) (*issuer, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &issuer{key: key, signer: signer, ttl: ttl, now: time.Now, revoked: make(map[string]time.Time)}, nil
}

// Issue returns a signed token for a.
func (i *issuer) Issue(a *Account) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	token, err := jwt.Signed(i.signer).
		Claims(jwt.Claims{
			ID:       newID(),
			Subject:  a.ID,
			Issuer:   "plextera-studio-fake",
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(exp),
		}).
		Claims(accessClaims{Email: a.Email, Role: a.Role}).
		CompactSerialize()
	if err != nil {
		return "", time.Time{}, errs.Wrap(errs.Internal, "sign access token", err)
	}
	return token, exp, nil
}

// Verify checks the signature, expiry and revocation of token and returns
// the account id it was issued to.
func (i *issuer) Verify(token string) (string, error) {
	claims, err := i.parse(token)
	if err != nil {
		return "", err
	}
	i.mu.Lock()
	_, revoked := i.revoked[claims.ID]
	i.mu.Unlock()
	if revoked {
		return "", errs.New(errs.PermissionDenied, "token has been revoked")
	}
	return claims.Subject, nil
}

// Revoke invalidates token until its expiry. Invalid tokens are ignored.
func (i *issuer) Revoke(token string) {
	claims, err := i.parse(token)
	if err != nil {
		return
	}
	now := i.now()
	i.mu.Lock()
	defer i.mu.Unlock()
	for jti, exp := range i.revoked {
		if now.After(exp) {
			delete(i.revoked, jti)
		}
	}
	i.revoked[claims.ID] = claims.Expiry.Time()
}

func (i *issuer) parse(token string) (*jwt.Claims, error) {
	parsed, err := jwt.ParseSigned(token)
	if err != nil {
		return nil, errs.Wrap(errs.PermissionDenied, "malformed token", err)
	}
	var claims jwt.Claims
	if err := parsed.Claims(i.key, &claims); err != nil {
		return nil, errs.Wrap(errs.PermissionDenied, "invalid token signature", err)
	}
	if err := claims.ValidateWithLeeway(jwt.Expected{Time: i.now()}, 0); err != nil {
		return nil, errs.Wrap(errs.PermissionDenied, "token is not valid", err)
	}
	if claims.Expiry == nil {
		return nil, errs.New(errs.PermissionDenied, "token has no expiry")
	}
	return &claims, nil
}

// generateSecureToken returns 32 random bytes, URL-safe encoded.
func generateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errs.Wrap(errs.Internal, "generate token", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
