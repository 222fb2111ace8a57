package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marketing-analytics-team/server/internal/agent/model"
	errx "github.com/marketing-analytics-team/server/internal/core/error"
	logx "github.com/marketing-analytics-team/server/pkg/logger"
)

// RedisSessionRepository keeps the per-turn state snapshot as one JSON value
// and the history as an append-only list, both expiring after ttl.
type RedisSessionRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisSessionRepository(rdb redis.Cmdable, ttl time.Duration) *RedisSessionRepository {
	return &RedisSessionRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisSessionRepository) stateKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:state", conversationID)
}

func (r *RedisSessionRepository) messagesKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:messages", conversationID)
}

func (r *RedisSessionRepository) Load(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	key := r.stateKey(conversationID)
	st := model.NewConversationState(conversationID)

	raw, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation state from redis")
		return nil, errx.WrapRedis(err)
	default:
		if err := json.Unmarshal(raw, st); err != nil {
			logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to unmarshal conversation state")
			return nil, fmt.Errorf("unmarshal conversation state: %w", err)
		}
	}

	mkey := r.messagesKey(conversationID)
	rows, err := r.rdb.LRange(ctx, mkey, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logx.Error().Err(err).Str("key", mkey).Msg("failed to load conversation history from redis")
		return nil, errx.WrapRedis(err)
	}
	st.History = make([]model.Message, 0, len(rows))
	for i, s := range rows {
		var m model.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			logx.Error().Err(err).Str("conversation_id", conversationID).Int("index", i).Msg("failed to unmarshal message")
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		st.History = append(st.History, m)
	}
	st.ConversationID = conversationID
	return st, nil
}

// Save writes the snapshot and appends history entries the list does not
// hold yet. A list longer than the history (the conversation was reset
// elsewhere) is rewritten.
func (r *RedisSessionRepository) Save(ctx context.Context, st *model.ConversationState) error {
	if st == nil || st.ConversationID == "" {
		return fmt.Errorf("save session: missing conversation id")
	}
	key := r.stateKey(st.ConversationID)
	mkey := r.messagesKey(st.ConversationID)

	snapshot := *st
	snapshot.History = nil
	b, err := json.Marshal(&snapshot)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", st.ConversationID).Msg("failed to marshal conversation state")
		return fmt.Errorf("marshal conversation state: %w", err)
	}

	stored, err := r.rdb.LLen(ctx, mkey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logx.Error().Err(err).Str("key", mkey).Msg("failed to get message count from redis")
		return errx.WrapRedis(err)
	}
	rewrite := int(stored) > len(st.History)
	from := int(stored)
	if rewrite {
		from = 0
	}
	pending := make([]any, 0, len(st.History)-from)
	for _, m := range st.History[from:] {
		mb, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		pending = append(pending, mb)
	}

	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, b, r.ttl)
		if rewrite {
			p.Del(ctx, mkey)
		}
		if len(pending) > 0 {
			p.RPush(ctx, mkey, pending...)
		}
		// extend TTL on touch
		if r.ttl > 0 {
			p.Expire(ctx, mkey, r.ttl)
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save conversation to redis")
		return errx.WrapRedis(err)
	}
	logx.Debug().
		Str("conversation_id", st.ConversationID).
		Int("appended", len(pending)).
		Bool("rewrite", rewrite).
		Msg("conversation saved")
	return nil
}

func (r *RedisSessionRepository) Clear(ctx context.Context, conversationID string) error {
	if err := r.rdb.Del(ctx, r.stateKey(conversationID), r.messagesKey(conversationID)).Err(); err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to delete conversation from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.SessionRepository = (*RedisSessionRepository)(nil)
