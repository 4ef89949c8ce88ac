package webserver

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/estmator/estmator/internal/domain"
	"github.com/golang-jwt/jwt/v4"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// UserContextKey is where the parsed token is stored on the echo context
const UserContextKey = "user"

// Claims carried by operator tokens. Subject is the operator ID.
type Claims struct {
	Username string `json:"username"`
	Level    string `json:"level"`
	jwt.RegisteredClaims
}

// OprID returns the operator ID from the subject
func (c *Claims) OprID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

// IssueToken signs an HS256 token for the operator
func IssueToken(secret string, opr *domain.SysOpr, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expire := now.Add(ttl)
	claims := &Claims{
		Username: opr.Username,
		Level:    opr.Level,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(opr.ID, 10),
			Issuer:    "estmator",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expire),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expire, nil
}

// ParseToken validates a token string and returns it with *Claims
func ParseToken(secret, tokenString string) (*jwt.Token, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return token, nil
}

// JWTMiddleware requires a valid bearer token
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey: UserContextKey,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return ParseToken(secret, auth)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, map[string]interface{}{
				"code":    "UNAUTHORIZED",
				"message": "Missing or invalid token",
			})
		},
	})
}

// CurrentClaims returns the claims of the authenticated operator
func CurrentClaims(c echo.Context) (*Claims, bool) {
	token, ok := c.Get(UserContextKey).(*jwt.Token)
	if !ok {
		return nil, false
	}
	claims, ok := token.Claims.(*Claims)
	return claims, ok
}

// RequireSuper rejects operators below the super level
func RequireSuper(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := CurrentClaims(c)
		if !ok || claims.Level != domain.OprLevelSuper {
			return c.JSON(http.StatusForbidden, map[string]interface{}{
				"code":    "FORBIDDEN",
				"message": "Super operator required",
			})
		}
		return next(c)
	}
}
