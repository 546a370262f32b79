package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// RoleClient is the role carried by tokens issued for API clients
const RoleClient = "client"

// claimsContextKey is where the middleware stores validated claims on the echo context
const claimsContextKey = "auth_claims"

var (
	// ErrMissingToken is returned when a request carries no bearer token
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidRole is returned for tokens that are not client tokens
	ErrInvalidRole = errors.New("invalid token role")
)

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates client tokens with a shared secret
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer creates a token issuer
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// GenerateClientToken generates a JWT token for an API client
func (i *TokenIssuer) GenerateClientToken(clientID string) (string, time.Time, error) {
	issuedAt := i.now()
	expiresAt := issuedAt.Add(i.ttl)

	claims := &JWTClaims{
		ClientID: clientID,
		Role:     RoleClient,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a JWT token and returns the claims
func (i *TokenIssuer) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Role != RoleClient {
		return nil, ErrInvalidRole
	}

	return claims, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header value
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// Middleware rejects requests without a valid client token.
// Browsers cannot set headers on websocket upgrades, so a token query parameter is accepted as well.
func (i *TokenIssuer) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if token == "" {
				token = c.QueryParam("token")
			}
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, ErrMissingToken.Error())
			}

			claims, err := i.ValidateToken(token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token").SetInternal(err)
			}

			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}

// ClaimsFrom returns the claims stored by Middleware, if any
func ClaimsFrom(c echo.Context) (*JWTClaims, bool) {
	claims, ok := c.Get(claimsContextKey).(*JWTClaims)
	return claims, ok
}
