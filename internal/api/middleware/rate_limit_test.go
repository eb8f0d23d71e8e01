package middleware

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		require.True(t, rl.Allow())
	}
	require.False(t, rl.Allow())
}

func TestRateLimiterRefill(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	require.True(t, rl.Allow())
	require.True(t, rl.Allow())
	require.False(t, rl.Allow())

	// 模擬經過一個完整時間窗口
	rl.mu.Lock()
	rl.lastTime = rl.lastTime.Add(-time.Second)
	rl.mu.Unlock()

	require.True(t, rl.Allow())
	require.True(t, rl.Allow())
	require.False(t, rl.Allow())
}

func TestLimiterStoreSweepsIdleClients(t *testing.T) {
	store := newLimiterStore(5, 10*time.Millisecond)

	for i := 0; i < 100; i++ {
		store.get(fmt.Sprintf("10.0.0.%d", i)).Allow()
	}
	require.Equal(t, 100, store.size())

	time.Sleep(20 * time.Millisecond)

	// 下一次取得時清理閒置超過一個窗口的客戶端
	store.get("10.0.1.1").Allow()
	require.Equal(t, 1, store.size())
}

func TestLimiterStoreKeepsActiveClients(t *testing.T) {
	store := newLimiterStore(1, time.Hour)

	first := store.get("192.0.2.1")
	require.True(t, first.Allow())
	store.get("192.0.2.2").Allow()

	require.Same(t, first, store.get("192.0.2.1"))
	require.False(t, store.get("192.0.2.1").Allow())
	require.Equal(t, 2, store.size())
}
