package ssh

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// cleanupInterval 后台清理扫描周期
const cleanupInterval = 30 * time.Second

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdle     int           `yaml:"max_idle"`
	MaxActive   int           `yaml:"max_active"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	SSHConfig   *Config       `yaml:"ssh"`
}

// Pool 按 host:port@user 复用 SSH 连接
// 同一键同一时刻只有一个持有者，释放后在 IdleTimeout 内可被复用
type Pool struct {
	cfg         *Config
	maxIdle     int
	maxActive   int
	idleTimeout time.Duration

	mu     sync.Mutex
	conns  map[string]*pooledConn
	closed bool
	stop   chan struct{}
}

type pooledConn struct {
	client   *Client
	info     *ConnectionInfo
	lastUsed time.Time
	inUse    bool
}

// NewPool 创建连接池并启动后台清理
func NewPool(config *PoolConfig) *Pool {
	p := &Pool{
		cfg:         config.SSHConfig,
		maxIdle:     config.MaxIdle,
		maxActive:   config.MaxActive,
		idleTimeout: config.IdleTimeout,
		conns:       make(map[string]*pooledConn),
		stop:        make(chan struct{}),
	}
	go p.cleanupLoop()
	return p
}

func connKey(info *ConnectionInfo) string {
	return fmt.Sprintf("%s:%d@%s", info.Host, info.Port, info.Username)
}

// GetConnection 取出或建立一条连接，调用方用完必须 ReleaseConnection
// 同键连接被占用时直接报错，不会顶掉现持有者
func (p *Pool) GetConnection(ctx context.Context, info *ConnectionInfo) (*Client, error) {
	key := connKey(info)

	var stale *Client
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, fmt.Errorf("connection pool is closed")
	}
	if pc, ok := p.conns[key]; ok {
		if pc.inUse {
			p.mu.Unlock()
			return nil, fmt.Errorf("connection %s is in use", key)
		}
		if pc.client != nil && pc.client.IsConnected() {
			pc.inUse = true
			pc.lastUsed = time.Now()
			p.mu.Unlock()
			return pc.client, nil
		}
		// 已断开的旧记录淘汰，锁外关闭
		stale = pc.client
		delete(p.conns, key)
	}
	if active := p.activeLocked(); p.maxActive > 0 && active >= p.maxActive {
		p.mu.Unlock()
		if stale != nil {
			_ = stale.Close()
		}
		return nil, fmt.Errorf("connection pool is full, active connections: %d", active)
	}
	// 预占名额，拨号在锁外进行
	placeholder := &pooledConn{info: info, inUse: true, lastUsed: time.Now()}
	p.conns[key] = placeholder
	p.mu.Unlock()

	if stale != nil {
		_ = stale.Close()
	}

	client := NewClient(p.cfg)
	if err := client.Connect(ctx, info); err != nil {
		p.mu.Lock()
		if p.conns[key] == placeholder {
			delete(p.conns, key)
		}
		p.mu.Unlock()
		return nil, fmt.Errorf("failed to create SSH connection: %w", err)
	}

	p.mu.Lock()
	placeholder.client = client
	p.mu.Unlock()
	return client, nil
}

// ReleaseConnection 归还连接，供后续同键请求复用
func (p *Pool) ReleaseConnection(info *ConnectionInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pc, ok := p.conns[connKey(info)]; ok {
		pc.inUse = false
		pc.lastUsed = time.Now()
	}
}

// CloseConnection 主动关闭并移除指定连接
func (p *Pool) CloseConnection(info *ConnectionInfo) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := connKey(info)
	pc, ok := p.conns[key]
	if !ok {
		return nil
	}
	delete(p.conns, key)
	if pc.client != nil {
		return pc.client.Close()
	}
	return nil
}

// Close 关闭所有连接并停止后台清理，之后 GetConnection 一律失败
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	conns := p.conns
	p.conns = make(map[string]*pooledConn)
	p.mu.Unlock()

	close(p.stop)
	var lastErr error
	for _, pc := range conns {
		if pc.client != nil {
			if err := pc.client.Close(); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// Stats 连接池统计信息
func (p *Pool) Stats() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	active := p.activeLocked()
	return map[string]interface{}{
		"total_connections":  len(p.conns),
		"active_connections": active,
		"idle_connections":   len(p.conns) - active,
		"max_idle":           p.maxIdle,
		"max_active":         p.maxActive,
	}
}

func (p *Pool) activeLocked() int {
	n := 0
	for _, pc := range p.conns {
		if pc.inUse {
			n++
		}
	}
	return n
}

func (p *Pool) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.sweep()
		case <-p.stop:
			return
		}
	}
}

// sweep 淘汰超时空闲与已断开的连接，并把空闲数压回 maxIdle 以内
func (p *Pool) sweep() {
	now := time.Now()
	var victims []*Client

	p.mu.Lock()
	for key, pc := range p.conns {
		if pc.inUse {
			continue
		}
		expired := p.idleTimeout > 0 && now.Sub(pc.lastUsed) > p.idleTimeout
		if expired || pc.client == nil || !pc.client.IsConnected() {
			if pc.client != nil {
				victims = append(victims, pc.client)
			}
			delete(p.conns, key)
		}
	}
	if p.maxIdle > 0 {
		idle := len(p.conns) - p.activeLocked()
		for key, pc := range p.conns {
			if idle <= p.maxIdle {
				break
			}
			if !pc.inUse {
				if pc.client != nil {
					victims = append(victims, pc.client)
				}
				delete(p.conns, key)
				idle--
			}
		}
	}
	p.mu.Unlock()

	for _, c := range victims {
		_ = c.Close()
	}
}
