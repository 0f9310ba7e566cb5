package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusmosca/retail-pos/internal/apperrors"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func testStores(t *testing.T) map[string]Store {
	_, client := setupTestRedis(t)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client, time.Hour),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			// Unknown session
			empty, err := store.Load(ctx, "missing")
			require.NoError(t, err)
			assert.Equal(t, "missing", empty.SessionID)
			assert.Empty(t, empty.Items)

			// Save and load
			c := New("s1").WithItem(NewItem(1, "Apples", d("2.00"), d("3.0")))
			require.NoError(t, store.Save(ctx, c))

			loaded, err := store.Load(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, loaded.Items, 1)
			assert.True(t, loaded.Total().Equal(d("6")))
			assert.Equal(t, "Apples", loaded.Items[0].ProductName)

			// Delete
			require.NoError(t, store.Delete(ctx, "s1"))
			gone, err := store.Load(ctx, "s1")
			require.NoError(t, err)
			assert.Empty(t, gone.Items)
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, New("s1").WithItem(NewItem(1, "A", d("1"), d("1")))))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	loaded.Items[0].ProductName = "changed"

	again, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "A", again.Items[0].ProductName)
}

func TestRedisStore_SlidingTTL(t *testing.T) {
	// Arrange
	mr, client := setupTestRedis(t)
	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, New("s1").WithItem(NewItem(1, "A", d("1"), d("1")))))

	// Act
	mr.FastForward(40 * time.Second)
	_, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	mr.FastForward(40 * time.Second)

	// Assert
	assert.True(t, mr.Exists("pos:cart:s1"))
	mr.FastForward(time.Minute)
	assert.False(t, mr.Exists("pos:cart:s1"))
}

func TestRedisStore_Failures(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	store := NewRedisStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, mr.Set("pos:cart:bad", "{not json"))
	_, err = store.Load(ctx, "bad")
	assert.ErrorIs(t, err, apperrors.ErrStorage)

	mr.Close()
	err = store.Save(ctx, New("s1"))
	assert.ErrorIs(t, err, apperrors.ErrStorage)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	_ = client.Close()

	_, err = NewRedisClient(context.Background(), "not-a-url")
	assert.Error(t, err)
}
