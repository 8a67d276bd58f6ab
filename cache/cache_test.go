package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestKey(t *testing.T) {
	assert := assert.New(t)

	key := Key("text-embedding-3-small", []string{"who discovered penicillin"})

	assert.Len(key, 32)
	assert.Equal(key, Key("text-embedding-3-small", []string{"who discovered penicillin"}))

	assert.NotEqual(key, Key("nomic-embed-text", []string{"who discovered penicillin"}))
	assert.NotEqual(key, Key("text-embedding-3-small", []string{"who discovered", "penicillin"}))

	// Length prefixes keep shifted batch boundaries apart.
	assert.NotEqual(
		Key("m", []string{"ab", "c"}),
		Key("m", []string{"a", "bc"}),
	)
}

func TestMemoryCache(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()
	c := NewMemoryCache(0, 0)

	_, ok, err := c.Get(ctx, "missing")
	assert.NoError(err)
	assert.False(ok)

	embeddings := [][]float32{{0.1, 0.2}, {0.3, 0.4}}
	assert.NoError(c.Put(ctx, "batch", embeddings))

	got, ok, err := c.Get(ctx, "batch")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(embeddings, got)
	assert.Equal(1, c.Size())
}

func TestMemoryCacheTTL(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()
	c := NewMemoryCache(0, 10*time.Millisecond)

	assert.NoError(c.Put(ctx, "batch", [][]float32{{1}}))

	_, ok, err := c.Get(ctx, "batch")
	assert.NoError(err)
	assert.True(ok)

	time.Sleep(20 * time.Millisecond)

	_, ok, err = c.Get(ctx, "batch")
	assert.NoError(err)
	assert.False(ok)
	assert.Equal(0, c.Size())
}

func TestMemoryCacheEviction(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()
	c := NewMemoryCache(2, 0)

	assert.NoError(c.Put(ctx, "a", [][]float32{{1}}))
	assert.NoError(c.Put(ctx, "b", [][]float32{{2}}))

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok, _ := c.Get(ctx, "a")
	assert.True(ok)

	assert.NoError(c.Put(ctx, "c", [][]float32{{3}}))
	assert.Equal(2, c.Size())

	_, ok, _ = c.Get(ctx, "b")
	assert.False(ok)

	_, ok, _ = c.Get(ctx, "a")
	assert.True(ok)

	_, ok, _ = c.Get(ctx, "c")
	assert.True(ok)
}

func TestBoltCache(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "embeddings.db")

	c, err := NewBoltCache(path)
	assert.NoError(err)

	_, ok, err := c.Get(ctx, "missing")
	assert.NoError(err)
	assert.False(ok)

	embeddings := [][]float32{{0.5, -0.5, 1}}
	assert.NoError(c.Put(ctx, "batch", embeddings))
	assert.NoError(c.Close())

	// Entries survive a reopen.
	c, err = NewBoltCache(path)
	assert.NoError(err)
	defer c.Close()

	got, ok, err := c.Get(ctx, "batch")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(embeddings, got)
}

type fakeRedisEntry struct {
	value      string
	expiration time.Duration
}

// fakeRedisClient stubs the commands RedisCache issues. Anything else
// panics through the embedded nil interface.
type fakeRedisClient struct {
	redis.UniversalClient

	values map[string]fakeRedisEntry
	closed bool
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{values: make(map[string]fakeRedisEntry)}
}

func (c *fakeRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	entry, ok := c.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}

	return redis.NewStringResult(entry.value, nil)
}

func (c *fakeRedisClient) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	data, ok := value.([]byte)
	if !ok {
		return redis.NewStatusResult("", fmt.Errorf("unexpected value type %T", value))
	}

	c.values[key] = fakeRedisEntry{
		value:      string(data),
		expiration: expiration,
	}

	return redis.NewStatusResult("OK", nil)
}

func (c *fakeRedisClient) Close() error {
	c.closed = true
	return nil
}

func TestRedisCache(t *testing.T) {
	assert := assert.New(t)

	ctx := context.Background()
	client := newFakeRedisClient()
	c := NewRedisCache(client, time.Minute)

	// redis.Nil is a miss, not an error.
	_, ok, err := c.Get(ctx, "missing")
	assert.NoError(err)
	assert.False(ok)

	embeddings := [][]float32{{0.1, 0.2}, {0.3, 0.4}}
	assert.NoError(c.Put(ctx, "batch", embeddings))

	entry, ok := client.values["passageway:embeddings:batch"]
	assert.True(ok, "entries should land under the shared key prefix")
	assert.Equal(time.Minute, entry.expiration)

	got, ok, err := c.Get(ctx, "batch")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(embeddings, got)

	assert.NoError(c.Close())
	assert.True(client.closed)
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	c, err := New(Config{})
	assert.NoError(err)
	assert.IsType(&MemoryCache{}, c)

	_, err = New(Config{Backend: BackendType("etcd")})
	assert.ErrorIs(err, ErrUnsupportedBackendType)
}

func TestDurationYAML(t *testing.T) {
	assert := assert.New(t)

	out, err := yaml.Marshal(map[string]Duration{"ttl": Duration(30 * time.Second)})
	assert.NoError(err)
	assert.Equal("ttl: 30s\n", string(out))

	var decoded struct {
		TTL Duration `yaml:"ttl"`
	}
	assert.NoError(yaml.Unmarshal(out, &decoded))
	assert.Equal(30*time.Second, decoded.TTL.Duration())
}
