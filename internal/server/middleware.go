package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chartschool/chartschool/internal/actorcontext"
)

const (
	actorHeader     = "X-Actor-ID"
	requestIDHeader = "X-Request-ID"
)

// Pace on the per-actor bucket: an operator clicking through the back
// office, not a programmatic integration.
const (
	provisionRatePerSecond = 2.0
	provisionBurst         = 10
)

// RequestID accepts the upstream proxy's request ID or mints one, and
// echoes it back on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(actorcontext.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		log.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(started)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", actorcontext.RequestIDFromContext(c.Request.Context())),
		)
	}
}

// ActorContext propagates the authenticated operator identity from the
// upstream auth proxy into the request context for audit attribution.
func (s *Server) ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if actor := c.GetHeader(actorHeader); actor != "" {
			ctx = actorcontext.WithActor(ctx, actor)
		}
		ctx = actorcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = actorcontext.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ProvisionRateLimit throttles live provisioning endpoints. Nil limiter
// (no redis configured) allows everything.
func (s *Server) ProvisionRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		actor := actorcontext.ActorFromContext(ctx)
		if actor == "" {
			// No identity from the auth proxy; bucket by client instead.
			actor = actorcontext.IPAddressFromContext(ctx)
			s.log.Debug("provisioning request without actor header",
				zap.String("client_ip", actor),
				zap.String("user_agent", actorcontext.UserAgentFromContext(ctx)),
			)
		}

		res, err := s.limiter.Allow(c.Request.Context(), "provision:"+actor, provisionRatePerSecond, provisionBurst)
		if err != nil {
			// Limiter trouble never blocks provisioning.
			s.log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			c.Header("Retry-After", res.RetryAfter.String())
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
