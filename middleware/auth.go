package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/branchpulse/notifier/authmanager"
	"github.com/branchpulse/notifier/config"
)

// CheckAuth - Token Validator for api requests
//
// The raw token is taken from the Authorization header, the session
// cookie, or (development only) the "token" query parameter, in that
// order. The query parameter exists for EventSource, which cannot set
// headers.
func CheckAuth(authManager authmanager.AuthManager, configuration *config.Configuration) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken := extractToken(c, configuration)
		if rawToken == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, InvalidTokenResponse)
			return
		}

		jwks, err := authManager.GetJWKS()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrOpenIDConfiguration)
			return
		}

		userToken := UserToken{}
		_, err = jwt.ParseWithClaims(rawToken, &userToken, jwks.Keyfunc)

		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, InvalidTokenResponse)
			return
		}

		if !userToken.VerifyExpiresAt(time.Now(), true) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, TokenExpiredResponse)
			return
		}

		c.Set("User", userToken)
		c.Next()
	}
}

func extractToken(c *gin.Context, configuration *config.Configuration) string {
	authHeader := c.Request.Header.Get("Authorization")
	if authHeader != "" {
		token := strings.Split(authHeader, "Bearer ")
		if len(token) == 2 && token[1] != "" {
			return token[1]
		}
		return ""
	}

	if cookie, err := c.Cookie(configuration.SessionCookieName); err == nil && cookie != "" {
		return cookie
	}

	if configuration.Development {
		if token, ok := c.GetQuery("token"); ok {
			return token
		}
	}

	return ""
}
