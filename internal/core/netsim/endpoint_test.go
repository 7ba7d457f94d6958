package netsim

import (
	"context"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netsim/internal/core/link"
)

func TestNewEndpoint_Invalid(t *testing.T) {
	internet, err := NewInternet(testConfig(t))
	require.NoError(t, err)

	_, err = NewEndpoint(addr("10.0.0.1:1"), nil)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = NewEndpoint(netip.AddrPort{}, internet)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	ep, err := NewEndpoint(addr("10.0.0.1:1"), internet)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ep.Name(), "endpoint-"))
	assert.Equal(t, ep.Name(), ep.Downlink().Name())
}

// TestEndpoint_HasIPExact 测试端点只匹配完整的 ip:port
func TestEndpoint_HasIPExact(t *testing.T) {
	internet, err := NewInternet(testConfig(t))
	require.NoError(t, err)
	ep := newEndpoint(t, "10.0.0.1:1", internet, "ep")

	assert.True(t, ep.HasIP(addr("10.0.0.1:1")))
	assert.True(t, ep.HasIP(addr("[::ffff:10.0.0.1]:1")), "v4-mapped form is the same address")
	assert.False(t, ep.HasIP(addr("10.0.0.1:2")))
}

// TestEndpoint_HandlerAndInbox 测试回调与收件箱都能拿到包
func TestEndpoint_HandlerAndInbox(t *testing.T) {
	internet, err := NewInternet(testConfig(t))
	require.NoError(t, err)

	var seen []string
	ep, err := NewEndpoint(addr("10.0.0.1:1"), internet, WithName("ep"),
		WithHandler(func(_ *Endpoint, p *Packet) { seen = append(seen, string(p.Data())) }))
	require.NoError(t, err)

	ep.SendTo(addr("10.0.0.9:9"), ep.Addr(), []byte("a"), 1)
	ep.SendTo(addr("10.0.0.9:9"), ep.Addr(), []byte("b"), 2)

	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, uint64(2), ep.Received())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	p, err := ep.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", string(p.Data()))
}

// TestEndpoint_ReceiveCanceled 测试 Receive 响应 ctx 取消
func TestEndpoint_ReceiveCanceled(t *testing.T) {
	internet, err := NewInternet(testConfig(t))
	require.NoError(t, err)
	ep := newEndpoint(t, "10.0.0.1:1", internet, "ep")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = ep.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestEndpoint_InboxFull 测试收件箱满时丢弃
func TestEndpoint_InboxFull(t *testing.T) {
	internet, err := NewInternet(testConfig(t))
	require.NoError(t, err)
	ep, err := NewEndpoint(addr("10.0.0.1:1"), internet, WithInboxCapacity(2))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		ep.SendTo(addr("10.0.0.9:9"), ep.Addr(), []byte{byte(i)}, 0)
	}
	assert.Len(t, drainInbox(ep), 2)
	assert.Equal(t, uint64(3), ep.Dropped())
}

// TestEndpoint_BandwidthLimit 测试 downlink 限速丢包
func TestEndpoint_BandwidthLimit(t *testing.T) {
	internet, err := NewInternet(testConfig(t))
	require.NoError(t, err)

	l := link.New("slow", 1)
	ep, err := NewEndpoint(addr("10.0.0.1:1"), internet, WithDownlink(l))
	require.NoError(t, err)

	big := make([]byte, link.MaxPacketSize)
	ep.SendTo(addr("10.0.0.9:9"), ep.Addr(), big, 0)
	ep.SendTo(addr("10.0.0.9:9"), ep.Addr(), big, 0)

	assert.Equal(t, uint64(1), ep.Received())
	assert.Equal(t, uint64(1), ep.Dropped())
	assert.Equal(t, uint64(1), l.Stats().Dropped)
}

// TestEndpoint_FamilyMismatchPanics 测试端点同样拒绝混合地址族
func TestEndpoint_FamilyMismatchPanics(t *testing.T) {
	internet, err := NewInternet(testConfig(t))
	require.NoError(t, err)
	ep := newEndpoint(t, "10.0.0.1:1", internet, "ep")

	assert.Panics(t, func() {
		ep.SendTo(addr("[2001:db8::1]:1"), ep.Addr(), nil, 0)
	})
}
