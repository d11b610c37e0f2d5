package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/coverdesk/internal/observability/context"
	obslogger "github.com/smallbiznis/coverdesk/internal/observability/logger"
	"github.com/smallbiznis/coverdesk/internal/permission"
	userdomain "github.com/smallbiznis/coverdesk/internal/user/domain"
	"go.uber.org/zap"
)

const (
	userIDHeader    = "X-User-ID"
	contextActorKey = "actor"
)

// ActorRequired resolves the calling user. Session handling lives in front of
// this service; the gateway forwards the authenticated user id in a header.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(userIDHeader))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.userSvc.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, userdomain.ErrNotFound) {
				err = ErrUnauthorized
			}
			AbortWithError(c, err)
			return
		}
		if !user.IsActive {
			AbortWithError(c, userdomain.ErrInactive)
			return
		}

		c.Set(contextActorKey, user.Actor())
		c.Request = c.Request.WithContext(obscontext.WithActorID(c.Request.Context(), user.ID.String()))
		c.Next()
	}
}

// Require rejects actors whose role lacks capability.
func (s *Server) Require(capability permission.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authorizer.Authorize(c.Request.Context(), actor, capability); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) (permission.Actor, bool) {
	value, ok := c.Get(contextActorKey)
	if !ok {
		return permission.Actor{}, false
	}
	actor, ok := value.(permission.Actor)
	return actor, ok && actor.Valid()
}

// mustActor is only called behind ActorRequired.
func mustActor(c *gin.Context) permission.Actor {
	actor, _ := actorFrom(c)
	return actor
}

// WriteRateLimit throttles mutating calls per actor. Reads are never limited
// and a redis failure lets the request through.
func (s *Server) WriteRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.writeLimiter.Enabled() || isReadMethod(c.Request.Method) {
			c.Next()
			return
		}
		actor, ok := actorFrom(c)
		if !ok {
			c.Next()
			return
		}

		res, err := s.writeLimiter.AllowActor(c.Request.Context(), actor.UserID.String())
		if err != nil {
			obslogger.FromContext(c.Request.Context()).Warn("write rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func isReadMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}
