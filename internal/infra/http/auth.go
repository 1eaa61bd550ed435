package http

import (
	"crypto/subtle"
	"io"
	"net/http"

	"tollgate/internal/domain"

	"github.com/gin-gonic/gin"
)

const maxGovernanceBodyBytes = 256 * 1024

// requireApproverSignature authenticates a governance call. The caller
// names itself in X-Approver (its base64 ed25519 public key) and signs
// the raw request body with X-Signature; body-less calls (confirm,
// revoke) sign the request path instead. Membership in the authority
// set is the registry's check, not this one's.
func (s *Server) requireApproverSignature(c *gin.Context) (domain.Identity, []byte, bool) {
	approver := domain.Identity(c.GetHeader("X-Approver"))
	signature := c.GetHeader("X-Signature")
	if approver == "" || signature == "" {
		c.JSON(http.StatusUnauthorized, errorResponse{
			Code:    "signature_required",
			Message: "X-Approver and X-Signature headers are required",
		})
		return "", nil, false
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxGovernanceBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "invalid_body", Message: "failed to read request body"})
		return "", nil, false
	}

	message := body
	if len(message) == 0 {
		message = []byte(c.Request.URL.Path)
	}
	if err := s.signatures.VerifyBase64(approver, message, signature); err != nil {
		c.JSON(http.StatusUnauthorized, errorResponse{
			Code:    "signature_invalid",
			Message: "signature does not verify against the claimed approver identity",
		})
		return "", nil, false
	}
	return approver, body, true
}

func (s *Server) requireAdminKey(c *gin.Context) bool {
	if s.adminAPIKey == "" {
		c.JSON(http.StatusForbidden, errorResponse{Code: "admin_disabled", Message: "admin API is not configured"})
		return false
	}
	provided := c.GetHeader("X-Admin-API-Key")
	if subtle.ConstantTimeCompare([]byte(provided), []byte(s.adminAPIKey)) != 1 {
		c.JSON(http.StatusForbidden, errorResponse{Code: "forbidden", Message: "invalid admin API key"})
		return false
	}
	return true
}

// rateLimitMiddleware throttles the content route per requester. Limit
// failures fail open unless configured closed; payment verification is
// the security boundary, rate limiting is load protection.
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
			c.Next()
			return
		}
		key := c.ClientIP() + "|" + c.GetHeader("User-Agent")
		decision, err := s.rateLimiter.Allow(c.Request.Context(), key, s.rateLimitRequests, s.rateLimitWindow)
		if err != nil {
			if s.rateLimitClosed {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponse{
					Code:    "rate_limit_unavailable",
					Message: "rate limiter unavailable",
				})
				return
			}
			c.Next()
			return
		}
		if !decision.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
				Code:    "rate_limited",
				Message: "too many requests",
			})
			return
		}
		c.Next()
	}
}
