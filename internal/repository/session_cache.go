package repository

import (
	"context"
	"time"

	"github.com/futig/docchat/internal/config"
	"github.com/futig/docchat/internal/entity"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SessionRepository defines the interface for chat session storage
type SessionRepository interface {
	Get(id string) (*entity.ChatState, bool)
	GetOrCreate(
		ctx context.Context,
		id string,
		create func(ctx context.Context) (*entity.ChatState, error),
	) (*entity.ChatState, error)
	Delete(id string)
	Count() int
}

var _ SessionRepository = &SessionCache{}

// SessionCache keeps chat sessions in memory with a sliding expiration.
// Every read pushes the expiration forward by the configured TTL.
type SessionCache struct {
	cache  *cache.Cache
	group  singleflight.Group
	logger *zap.Logger
}

func NewSessionCache(cfg config.SessionConfig, logger *zap.Logger) *SessionCache {
	return &SessionCache{
		cache:  cache.New(cfg.TTL, cfg.CleanupInterval),
		logger: logger,
	}
}

// OnEvicted registers fn to run when a session expires or is deleted.
func (r *SessionCache) OnEvicted(fn func(state *entity.ChatState)) {
	r.cache.OnEvicted(func(id string, item any) {
		state, ok := item.(*entity.ChatState)
		if !ok {
			return
		}
		r.logger.Info("chat session evicted",
			zap.String("session_id", id),
			zap.Duration("age", time.Since(state.CreatedAt)),
		)
		fn(state)
	})
}

func (r *SessionCache) Get(id string) (*entity.ChatState, bool) {
	x, found := r.cache.Get(id)
	if !found {
		return nil, false
	}

	state := x.(*entity.ChatState)
	r.cache.Set(id, state, cache.DefaultExpiration)
	return state, true
}

// GetOrCreate returns the session stored under id or builds it with create.
// Concurrent callers for the same id share one create call, which is not
// canceled with the first caller's context. A failed create stores nothing,
// so the next call retries.
func (r *SessionCache) GetOrCreate(
	ctx context.Context,
	id string,
	create func(ctx context.Context) (*entity.ChatState, error),
) (*entity.ChatState, error) {
	if state, ok := r.Get(id); ok {
		return state, nil
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		if state, ok := r.Get(id); ok {
			return state, nil
		}
		// An expired entry the janitor has not removed yet is deleted here
		// so the eviction callback still runs before it is replaced.
		r.cache.Delete(id)

		state, err := create(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		r.cache.Set(id, state, cache.DefaultExpiration)
		return state, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*entity.ChatState), nil
}

func (r *SessionCache) Delete(id string) {
	r.cache.Delete(id)
}

func (r *SessionCache) Count() int {
	return r.cache.ItemCount()
}
