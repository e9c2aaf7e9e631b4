package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/capturecabinet/cabinet/internal/auth"
	"github.com/capturecabinet/cabinet/pkg/errors"
	"github.com/capturecabinet/cabinet/pkg/response"
)

const (
	CtxClaimsKey     = "authClaims"
	CtxDeviceIDKey   = "deviceID"
	CtxDeviceNameKey = "deviceName"
)

// Auth enforces device token authentication using the supplied token service.
// Tokens arrive as a Bearer header, or as a "token" query parameter for
// WebSocket upgrades where custom headers are unavailable.
func Auth(tokens *iauth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := tokens.Validate(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxDeviceIDKey, claims.DeviceID)
		if claims.DeviceName != "" {
			c.Set(CtxDeviceNameKey, claims.DeviceName)
		}

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[7:])
}
