package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const userContextKey = "user_id"

var errUnauthenticated = errors.New("api: missing or invalid bearer token")

// NewToken signs an HS256 token whose subject is userID. A ttl of 0 issues a
// token without expiry.
func NewToken(secret, issuer, userID string, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  userID,
		Issuer:   issuer,
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// authenticate verifies tokenString and returns its subject.
func authenticate(secret, issuer, tokenString string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errUnauthenticated, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", errUnauthenticated)
	}
	return claims.Subject, nil
}

// requireUser authenticates the bearer token. WebSocket clients that cannot
// set headers may pass the token in the "token" query parameter.
func requireUser(secret, issuer string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.QueryParam("token")
			if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
				scheme, token, ok := strings.Cut(h, " ")
				if !ok || !strings.EqualFold(scheme, "Bearer") {
					return echo.NewHTTPError(http.StatusUnauthorized, errUnauthenticated.Error())
				}
				raw = token
			}
			if raw == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, errUnauthenticated.Error())
			}
			userID, err := authenticate(secret, issuer, raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, errUnauthenticated.Error()).SetInternal(err)
			}
			c.Set(userContextKey, userID)
			return next(c)
		}
	}
}

func userOf(c echo.Context) string {
	id, _ := c.Get(userContextKey).(string)
	return id
}
