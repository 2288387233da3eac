// Package auth guards the API with HS256 bearer tokens. The token's subject
// claim identifies the clinician or integration making the request and is
// stamped onto every clinical record written on their behalf.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const requesterKey = "requester"

// Middleware rejects requests without a valid bearer token and exposes the
// token subject to downstream handlers via Requester.
func Middleware(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		raw := bearerToken(c.Request)
		if raw == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			unauthorized(c, "invalid or expired token")
			return
		}

		subject, err := claims.GetSubject()
		if err != nil || subject == "" {
			unauthorized(c, "token carries no subject")
			return
		}

		c.Set(requesterKey, subject)
		c.Next()
	}
}

// Requester returns the authenticated identity set by Middleware, or "" on
// routes outside its reach.
func Requester(c *gin.Context) string {
	v, _ := c.Get(requesterKey)
	s, _ := v.(string)
	return s
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"message": msg,
	})
}
