package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/d60-Lab/activity-feed/pkg/response"
)

const userIDKey = "user_id"

var errNoSecret = errors.New("jwt secret is not configured")

// JWTAuth 校验 HS256 Bearer token，sub 作为当前用户 ID。secret 为空时拒绝所有请求
func JWTAuth(secret string) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			response.Unauthorized(c, "missing bearer token")
			return
		}

		sub, err := subject(parser, token, secret)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		c.Set(userIDKey, sub)
		c.Next()
	}
}

func subject(parser *jwt.Parser, token, secret string) (string, error) {
	claims := jwt.RegisteredClaims{}
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		if secret == "" {
			return nil, errNoSecret
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// UserID 返回 JWTAuth 写入的用户 ID
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// SignToken issues a token for userID; used by tests and local tooling.
func SignToken(secret, userID string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: userID}).SignedString([]byte(secret))
}
