package cache

import (
	"context"
	"testing"

	"github.com/raywall/docstore-toolkit/pkg/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestKey_IsStable(t *testing.T) {
	a := Key("count", map[string]interface{}{"status": "active"})
	b := Key("count", map[string]interface{}{"status": "active"})
	assert.Equal(t, a, b)
}

func TestKey_DiffersByOperationAndParams(t *testing.T) {
	base := Key("count", map[string]interface{}{"status": "active"})

	assert.NotEqual(t, base, Key("statistics", map[string]interface{}{"status": "active"}))
	assert.NotEqual(t, base, Key("count", map[string]interface{}{"status": "archived"}))
	assert.NotEqual(t, base, Key("count", nil))
}

func TestKey_Shape(t *testing.T) {
	key := Key("schema", nil)
	assert.Regexp(t, `^docstore:schema:[0-9a-f]{40}$`, key)
}

func TestDisabledCacheIsNoop(t *testing.T) {
	c := New(config.RedisConfig{}, zerolog.Nop())
	ctx := context.Background()

	assert.False(t, c.Enabled())

	var out map[string]interface{}
	assert.False(t, c.Get(ctx, "any", &out))

	// none of these should touch a network or panic
	c.Set(ctx, "any", map[string]interface{}{"x": 1})
	c.Invalidate(ctx, "count", "statistics")
	assert.NoError(t, c.Close())
}

func TestEnabledFlag(t *testing.T) {
	c := New(config.RedisConfig{Addr: "localhost:6379"}, zerolog.Nop())
	assert.True(t, c.Enabled())
	_ = c.Close()
}
