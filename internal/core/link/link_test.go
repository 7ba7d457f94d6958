package link

import (
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLink_Unlimited 测试不限速链路
func TestLink_Unlimited(t *testing.T) {
	l := New("alice-down", 0)

	for i := 0; i < 100; i++ {
		require.True(t, l.Admit(1200))
	}

	stats := l.Stats()
	assert.Equal(t, "alice-down", stats.Name)
	assert.Equal(t, uint64(100), stats.Packets)
	assert.Equal(t, uint64(120000), stats.Bytes)
	assert.Zero(t, stats.Dropped)
}

// TestLink_GeneratedName 测试自动命名
func TestLink_GeneratedName(t *testing.T) {
	a := New("", 0)
	b := New("", 0)

	assert.True(t, strings.HasPrefix(a.Name(), "link-"))
	assert.NotEqual(t, a.Name(), b.Name())
}

// TestLink_RateLimited 测试带宽上限
func TestLink_RateLimited(t *testing.T) {
	mock := clock.NewMock()
	l := New("capped", 1000, WithClock(mock))

	// burst 为 MaxPacketSize，先耗尽令牌桶
	require.True(t, l.Admit(MaxPacketSize))
	assert.False(t, l.Admit(500))

	// 1 秒后补充 1000 字节
	mock.Add(time.Second)
	assert.True(t, l.Admit(500))

	stats := l.Stats()
	assert.Equal(t, uint64(2), stats.Packets)
	assert.Equal(t, uint64(1), stats.Dropped)
}

// TestMeter_Rate 测试 EWMA 速率
func TestMeter_Rate(t *testing.T) {
	mock := clock.NewMock()
	m := NewMeter(mock)

	m.Mark(1000)
	assert.Zero(t, m.Rate())

	mock.Add(time.Second)
	assert.InDelta(t, 1000.0, m.Rate(), 0.001)

	m.Mark(3000)
	mock.Add(time.Second)
	// 0.25*3000 + 0.75*1000
	assert.InDelta(t, 1500.0, m.Rate(), 0.001)
	assert.Equal(t, uint64(4000), m.Total())
}
