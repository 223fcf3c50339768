package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrTokenInvalid covers malformed, badly signed or expired tokens.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrTokenWrongType is returned when an access token is presented where a
	// refresh token is required, or vice versa.
	ErrTokenWrongType = errors.New("wrong token type")
)

// Claims is the signed payload of both access and refresh tokens. Access
// tokens carry the permission list so peers may short-circuit locally, but
// the authoritative check stays with GET /profile.
type Claims struct {
	Username    string   `json:"username"`
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	TokenType   string   `json:"type"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HS256 tokens for the auth service.
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenIssuer builds an issuer. Zero TTLs fall back to 30m access / 7d refresh.
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	if accessTTL <= 0 {
		accessTTL = 30 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// AccessTTL reports the configured access token lifetime.
func (ti *TokenIssuer) AccessTTL() time.Duration { return ti.accessTTL }

// RefreshTTL reports the configured refresh token lifetime.
func (ti *TokenIssuer) RefreshTTL() time.Duration { return ti.refreshTTL }

// MintAccess signs an access token for the user.
func (ti *TokenIssuer) MintAccess(u User, now time.Time) (string, error) {
	return ti.mint(u, now, TokenTypeAccess, ti.accessTTL, u.EffectivePermissions())
}

// MintRefresh signs a refresh token for the user. Refresh tokens do not carry
// permissions; they are only good for minting new access tokens.
func (ti *TokenIssuer) MintRefresh(u User, now time.Time) (string, error) {
	return ti.mint(u, now, TokenTypeRefresh, ti.refreshTTL, nil)
}

func (ti *TokenIssuer) mint(u User, now time.Time, typ string, ttl time.Duration, perms []string) (string, error) {
	claims := Claims{
		Username:    u.Username,
		Role:        u.Role.Name,
		Permissions: perms,
		TokenType:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
}

// Verify parses and validates a token, requiring the given type claim.
// It returns the user id from the subject claim alongside the full claims.
func (ti *TokenIssuer) Verify(token, wantType string) (uuid.UUID, *Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return ti.secret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, nil, ErrTokenInvalid
	}
	if claims.TokenType != wantType {
		return uuid.Nil, nil, ErrTokenWrongType
	}
	sub, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, nil, ErrTokenInvalid
	}
	return sub, claims, nil
}
