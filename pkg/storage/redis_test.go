package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisProvider(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	r := &RedisProvider{
		url: "redis://" + addr + "/0",
		// isolate each run
		prefix: fmt.Sprintf("pricewatch-test-%d:", time.Now().UnixNano()),
	}
	require.NoError(t, r.Validate())

	ctx := context.Background()
	require.NoError(t, r.Init(ctx))
	defer r.Close()
	defer r.client.Del(ctx, r.prefix+"state", r.prefix+"settings")

	testDatabase(t, r)
}

func TestRedisProviderValidate(t *testing.T) {
	assert.ErrorContains(t, (&RedisProvider{}).Validate(), "redis-url is required")
	assert.ErrorContains(t, (&RedisProvider{url: "http://localhost"}).Validate(), "invalid redis-url")
	assert.NoError(t, (&RedisProvider{url: "redis://localhost:6379/0"}).Validate())
}
