package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin is the role claim value that grants admin routes.
const RoleAdmin = "admin"

// context keys used by the middleware
const (
	userKey = "auth.user"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// User is the authenticated principal extracted from a token.
type User struct {
	ID   string
	Role string
}

// IsAdmin reports whether u carries the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// Claims is the token payload: the standard subject plus a role.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 bearer tokens. Tokens are issued elsewhere; this
// service only verifies them.
type Verifier struct {
	secret  []byte
	nowFunc func() time.Time
}

// NewVerifier returns a Verifier for the shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), nowFunc: time.Now}
}

// Verify parses and validates token and returns its principal.
func (v *Verifier) Verify(token string) (User, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.nowFunc),
	)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return User{}, ErrInvalidToken
	}
	return User{ID: claims.Subject, Role: claims.Role}, nil
}

// Sign issues a token for u valid for ttl. Used by tooling and tests.
func (v *Verifier) Sign(u User, ttl time.Duration) (string, error) {
	now := v.nowFunc()
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func bearerToken(c *gin.Context) (string, error) {
	h := c.GetHeader("Authorization")
	if h == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

func abort(c *gin.Context, status int, message, code string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message, "error": code})
}

// RequireAuth rejects requests without a valid bearer token.
func (v *Verifier) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Access token required", "Unauthorized")
			return
		}
		u, err := v.Verify(token)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Invalid or expired token", "Unauthorized")
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

// OptionalAuth attaches the principal when a valid token is present and
// lets the request through either way.
func (v *Verifier) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, err := bearerToken(c); err == nil {
			if u, err := v.Verify(token); err == nil {
				c.Set(userKey, u)
			}
		}
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "Access token required", "Unauthorized")
			return
		}
		if !u.IsAdmin() {
			abort(c, http.StatusForbidden, "Admin access required", "Forbidden")
			return
		}
		c.Next()
	}
}

// CurrentUser returns the principal set by the middleware.
func CurrentUser(c *gin.Context) (User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return User{}, false
	}
	u, ok := v.(User)
	return u, ok
}

// WithUser stores u on the context. Handler tests use it to skip token parsing.
func WithUser(c *gin.Context, u User) { c.Set(userKey, u) }
