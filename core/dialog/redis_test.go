package dialog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, reg *Registry, opts ...RedisOption) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, reg, opts...)
}

func TestRedisStoreMissingSession(t *testing.T) {
	store := newRedisStore(t, testRegistry(t))

	sess, err := store.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	reg := testRegistry(t)
	store := newRedisStore(t, reg)
	ctx := context.Background()

	in := &Session{
		UserID: 7,
		Stack: []*Frame{
			{Flow: flowHome, State: stHomeOther},
			{Flow: flowWizard, State: stWizStep2, Data: &wizardData{Count: 3}},
		},
	}
	require.NoError(t, store.Put(ctx, in))

	out, err := store.Get(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, out)
	require.Equal(t, 2, out.Depth())

	assert.Equal(t, flowHome, out.Stack[0].Flow)
	assert.Equal(t, stHomeOther, out.Stack[0].State)

	top := out.Top()
	assert.Equal(t, flowWizard, top.Flow)
	assert.Equal(t, stWizStep2, top.State)

	// Typed frame data survives the round trip via the flow's factory.
	data, ok := top.Data.(*wizardData)
	require.True(t, ok)
	assert.Equal(t, 3, data.Count)
}

func TestRedisStoreDrivesEngine(t *testing.T) {
	reg := testRegistry(t)
	store := newRedisStore(t, reg)
	engine := NewEngine(reg, store)
	ctx := context.Background()

	_, err := engine.Start(ctx, 8, flowHome, nil)
	require.NoError(t, err)
	_, err = engine.Dispatch(ctx, 8, ActionEvent("wizard", ""))
	require.NoError(t, err)
	_, err = engine.Dispatch(ctx, 8, TextEvent("step"))
	require.NoError(t, err)

	sess, err := store.Get(ctx, 8)
	require.NoError(t, err)
	require.Equal(t, 2, sess.Depth())
	assert.Equal(t, stWizStep2, sess.Top().State)
}

func TestRedisStoreAppliesTTL(t *testing.T) {
	reg := testRegistry(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, reg, WithSessionTTL(time.Minute), WithKeyPrefix("s:"))

	require.NoError(t, store.Put(context.Background(), &Session{UserID: 9}))
	assert.Equal(t, time.Minute, mr.TTL("s:9"))
}
