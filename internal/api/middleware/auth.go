package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/cityride/dispatch/internal/api/dto"
	"github.com/cityride/dispatch/internal/domain/user"
	"github.com/cityride/dispatch/internal/identity"
	apperrors "github.com/cityride/dispatch/pkg/errors"
	"github.com/cityride/dispatch/pkg/logger"
)

const actorKey = "actor"

// Auth verifies the bearer token, rejects blocked accounts and stores
// the resulting Actor in the request context. The blocked flag is read
// through a short-lived redis cache so moderation does not cost a
// database hit on every request; cache may be nil.
type Auth struct {
	tokens     *identity.TokenManager
	users      user.Repository
	cache      *redis.Client
	blockedTTL time.Duration
	log        *logger.Logger
}

func NewAuth(tokens *identity.TokenManager, users user.Repository, cache *redis.Client, blockedTTL time.Duration, log *logger.Logger) *Auth {
	return &Auth{tokens: tokens, users: users, cache: cache, blockedTTL: blockedTTL, log: log}
}

// Handler is the gin middleware entry point.
func (a *Auth) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			abortWith(c, apperrors.Unauthenticated("missing or malformed authorization header", nil))
			return
		}

		actor, err := a.tokens.Verify(parts[1])
		if err != nil {
			a.log.Warn("token rejected", logger.Err(err))
			abortWith(c, apperrors.Unauthenticated("invalid or expired token", err))
			return
		}

		blocked, err := a.isBlocked(c.Request.Context(), actor)
		if err != nil {
			abortWith(c, apperrors.GetAppError(err))
			return
		}
		if blocked {
			a.log.Warn("blocked account rejected", logger.String("account_id", actor.ID.String()))
			abortWith(c, apperrors.AccountBlocked("account is blocked"))
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

func (a *Auth) isBlocked(ctx context.Context, actor identity.Actor) (bool, error) {
	key := "accounts:blocked:" + actor.ID.String()
	if a.cache != nil {
		if raw, err := a.cache.Get(ctx, key).Result(); err == nil {
			if v, err := strconv.ParseBool(raw); err == nil {
				return v, nil
			}
		}
	}

	account, err := a.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// token subject no longer exists
			return false, apperrors.Unauthenticated("account no longer exists", err)
		}
		a.log.Error("blocked flag lookup failed", logger.String("account_id", actor.ID.String()), logger.Err(err))
		return false, apperrors.Internal("failed to verify account", err)
	}

	if a.cache != nil {
		a.cache.Set(ctx, key, strconv.FormatBool(account.Blocked), a.blockedTTL)
	}
	return account.Blocked, nil
}

// InvalidateBlockedFlag drops the cached moderation flag so a fresh
// block takes effect without waiting out the TTL.
func InvalidateBlockedFlag(ctx context.Context, cache *redis.Client, accountID string) {
	if cache == nil {
		return
	}
	cache.Del(ctx, "accounts:blocked:"+accountID)
}

// ActorFrom retrieves the verified actor stored by the middleware.
func ActorFrom(c *gin.Context) (identity.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return identity.Actor{}, false
	}
	actor, ok := v.(identity.Actor)
	return actor, ok
}

func abortWith(c *gin.Context, err *apperrors.AppError) {
	c.AbortWithStatusJSON(err.Status, dto.ErrorResponse{Code: err.Code, Message: err.Message})
}
