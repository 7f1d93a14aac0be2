package dialog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSessionTTL = 30 * 24 * time.Hour

// RedisStore keeps sessions in Redis so conversations survive restarts.
// Frame data is serialized as JSON and decoded back through the registry's
// per-flow data factories.
type RedisStore struct {
	client *redis.Client
	reg    *Registry
	prefix string
	ttl    time.Duration
}

// RedisOption customises a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides the default "dialog:session:" key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithSessionTTL overrides the default session expiry. Zero disables expiry.
func WithSessionTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// NewRedisStore constructs a Redis-backed Store. The registry is required to
// rebuild typed frame data on load.
func NewRedisStore(client *redis.Client, reg *Registry, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client: client,
		reg:    reg,
		prefix: "dialog:session:",
		ttl:    defaultSessionTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type frameRecord struct {
	Flow  FlowID          `json:"flow"`
	State StateID         `json:"state"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type sessionRecord struct {
	Stack []frameRecord `json:"stack"`
}

func (s *RedisStore) key(userID int64) string {
	return fmt.Sprintf("%s%d", s.prefix, userID)
}

// Get loads and decodes the session for a user, or returns nil when absent.
func (s *RedisStore) Get(ctx context.Context, userID int64) (*Session, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dialog: redis get: %w", err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("dialog: decode session: %w", err)
	}

	sess := &Session{UserID: userID, Stack: make([]*Frame, 0, len(rec.Stack))}
	for _, fr := range rec.Stack {
		data, err := s.decodeData(fr)
		if err != nil {
			return nil, err
		}
		sess.Stack = append(sess.Stack, &Frame{Flow: fr.Flow, State: fr.State, Data: data})
	}
	return sess, nil
}

func (s *RedisStore) decodeData(fr frameRecord) (Data, error) {
	if len(fr.Data) == 0 {
		if fl, ok := s.reg.Flow(fr.Flow); ok && fl.NewData != nil {
			return fl.NewData(), nil
		}
		return nil, nil
	}

	var target Data
	if fl, ok := s.reg.Flow(fr.Flow); ok && fl.NewData != nil {
		target = fl.NewData()
	} else {
		target = &map[string]any{}
	}
	if err := json.Unmarshal(fr.Data, target); err != nil {
		return nil, fmt.Errorf("dialog: decode frame data for flow %s: %w", fr.Flow, err)
	}
	return target, nil
}

// Put encodes and stores the session.
func (s *RedisStore) Put(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	rec := sessionRecord{Stack: make([]frameRecord, 0, len(sess.Stack))}
	for _, fr := range sess.Stack {
		var raw json.RawMessage
		if fr.Data != nil {
			b, err := json.Marshal(fr.Data)
			if err != nil {
				return fmt.Errorf("dialog: encode frame data for flow %s: %w", fr.Flow, err)
			}
			raw = b
		}
		rec.Stack = append(rec.Stack, frameRecord{Flow: fr.Flow, State: fr.State, Data: raw})
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("dialog: encode session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sess.UserID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("dialog: redis set: %w", err)
	}
	return nil
}
