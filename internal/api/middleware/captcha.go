package middleware

import (
	"log"

	"github.com/gin-gonic/gin"

	"kanzlei/insolvenzpanel/internal/captcha"
)

const (
	// ContextKeyIsHumanVerified holds the key for captcha status in Gin context.
	ContextKeyIsHumanVerified = "isHumanVerified"
)

// CaptchaMiddleware verifies the Cloudflare Turnstile token presented on
// public submissions. It never aborts; the result feeds the rate limiter,
// which blocks unverified clients past the soft limit.
func CaptchaMiddleware(verifier captcha.ITurnstileVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("X-Turnstile-Token")

		isHuman := false
		if token != "" {
			verified, err := verifier.Verify(c.Request.Context(), token, c.ClientIP())
			if err != nil {
				log.Printf("Error verifying Turnstile token: %v", err)
			} else {
				isHuman = verified
			}
		}

		c.Set(ContextKeyIsHumanVerified, isHuman)
		c.Next()
	}
}
