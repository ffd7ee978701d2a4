package ssh

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool() *Pool {
	return NewPool(&PoolConfig{
		MaxIdle:     4,
		MaxActive:   8,
		IdleTimeout: time.Minute,
		SSHConfig:   &Config{ConnectTimeout: 100 * time.Millisecond},
	})
}

func testInfo() *ConnectionInfo {
	return &ConnectionInfo{Host: "192.0.2.1", Port: 22, Username: "admin", Password: "secret"}
}

func TestGetConnectionRejectsBusyKey(t *testing.T) {
	p := newTestPool()
	defer func() { _ = p.Close() }()

	info := testInfo()
	holder := NewClient(p.cfg)
	p.mu.Lock()
	p.conns[connKey(info)] = &pooledConn{client: holder, info: info, inUse: true, lastUsed: time.Now()}
	p.mu.Unlock()

	_, err := p.GetConnection(context.Background(), info)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in use")

	// 现持有者的记录不能被顶掉
	p.mu.Lock()
	pc := p.conns[connKey(info)]
	p.mu.Unlock()
	require.NotNil(t, pc)
	assert.Same(t, holder, pc.client)
	assert.True(t, pc.inUse)
}

func TestGetConnectionEvictsDisconnectedEntry(t *testing.T) {
	p := newTestPool()
	defer func() { _ = p.Close() }()

	info := testInfo()
	// connection 为 nil 即已断开
	dead := NewClient(p.cfg)
	p.mu.Lock()
	p.conns[connKey(info)] = &pooledConn{client: dead, info: info, lastUsed: time.Now()}
	p.mu.Unlock()

	// 192.0.2.0/24 不可达，拨号必然失败；淘汰逻辑仍应先移除旧记录
	_, err := p.GetConnection(context.Background(), info)
	require.Error(t, err)

	p.mu.Lock()
	_, exists := p.conns[connKey(info)]
	p.mu.Unlock()
	assert.False(t, exists, "断开的旧记录应被淘汰且拨号失败后不留占位")
}

func TestReleaseConnectionMarksIdle(t *testing.T) {
	p := newTestPool()
	defer func() { _ = p.Close() }()

	info := testInfo()
	p.mu.Lock()
	p.conns[connKey(info)] = &pooledConn{client: NewClient(p.cfg), info: info, inUse: true, lastUsed: time.Now()}
	p.mu.Unlock()

	assert.Equal(t, 1, p.Stats()["active_connections"])
	p.ReleaseConnection(info)
	assert.Equal(t, 0, p.Stats()["active_connections"])
	assert.Equal(t, 1, p.Stats()["idle_connections"])
}

func TestGetConnectionAfterClose(t *testing.T) {
	p := newTestPool()
	require.NoError(t, p.Close())

	_, err := p.GetConnection(context.Background(), testInfo())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
}
