package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGet(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemory_Miss(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	_, err := m.Get(context.Background(), "absent")
	require.Error(t, err)
	assert.True(t, IsMiss(err))
}

func TestMemory_Expiration(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := m.Get(ctx, "k")
	assert.True(t, IsMiss(err))
}

func TestMemory_NegativeTTLNeverExpires(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), -1))
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemory_DeleteAndClear(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, m.Set(ctx, "b", []byte("2"), time.Minute))

	require.NoError(t, m.Delete(ctx, "a"))
	_, err := m.Get(ctx, "a")
	assert.True(t, IsMiss(err))

	require.NoError(t, m.Clear(ctx))
	_, err = m.Get(ctx, "b")
	assert.True(t, IsMiss(err))
}

func TestMemory_CanceledContext(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	_, err := m.Get(ctx, "k")
	assert.Error(t, err)
	assert.False(t, IsMiss(err))
}
