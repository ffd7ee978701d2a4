package ssh

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// Config SSH 客户端配置
type Config struct {
	Timeout        time.Duration `yaml:"timeout"`         // 单命令执行预算
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // 拨号与握手超时
	KeepAlive      time.Duration `yaml:"keep_alive"`      // 保活间隔，<=0 关闭
	MaxSessions    int           `yaml:"max_sessions"`
}

// ConnectionInfo 目标设备连接参数
type ConnectionInfo struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// CommandResult 单条命令执行结果
type CommandResult struct {
	Command  string        `json:"command"`
	Output   string        `json:"output"`
	Error    string        `json:"error"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// 老旧网络设备仍在用的算法族，新算法放前面优先协商
var (
	legacyKeyExchanges = []string{
		"diffie-hellman-group14-sha256",
		"diffie-hellman-group14-sha1",
		"diffie-hellman-group1-sha1",
		"diffie-hellman-group-exchange-sha256",
		"diffie-hellman-group-exchange-sha1",
		"ecdh-sha2-nistp256",
		"ecdh-sha2-nistp384",
		"ecdh-sha2-nistp521",
	}
	legacyCiphers = []string{
		"aes128-ctr",
		"aes192-ctr",
		"aes256-ctr",
		"aes128-gcm@openssh.com",
		"aes256-gcm@openssh.com",
		"aes128-cbc",
		"aes192-cbc",
		"aes256-cbc",
		"3des-cbc",
	}
	legacyMACs = []string{
		"hmac-sha2-256-etm@openssh.com",
		"hmac-sha2-256",
		"hmac-sha1",
		"hmac-sha1-96",
	}
	legacyHostKeyAlgorithms = []string{
		"ssh-rsa",
		"rsa-sha2-256",
		"rsa-sha2-512",
		"ecdsa-sha2-nistp256",
		"ecdsa-sha2-nistp384",
		"ecdsa-sha2-nistp521",
	}
)

// Client 单设备 SSH 客户端，被连接池复用
type Client struct {
	config     *Config
	connection *ssh.Client
	mutex      sync.RWMutex
}

// NewClient 创建客户端，不发起连接
func NewClient(config *Config) *Client {
	return &Client{config: config}
}

// Connect 拨号并完成 SSH 握手
// 认证同时挂 password 与 keyboard-interactive，部分设备只认后者
func (c *Client) Connect(ctx context.Context, info *ConnectionInfo) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	connectTimeout := c.config.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}

	sshConfig := &ssh.ClientConfig{
		User:            info.Username,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
		Config: ssh.Config{
			KeyExchanges: legacyKeyExchanges,
			Ciphers:      legacyCiphers,
			MACs:         legacyMACs,
		},
		HostKeyAlgorithms: legacyHostKeyAlgorithms,
	}
	if info.Password != "" {
		sshConfig.Auth = []ssh.AuthMethod{
			ssh.Password(info.Password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				// 所有提问一律答密码，H3C/Cisco 的交互式认证都是这个套路
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = info.Password
				}
				return answers, nil
			}),
		}
	}

	address := fmt.Sprintf("%s:%d", info.Host, info.Port)
	dialer := &net.Dialer{Timeout: connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, sshConfig)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to create SSH connection: %w", err)
	}
	c.connection = ssh.NewClient(sshConn, chans, reqs)

	go c.keepAlive(ctx)
	return nil
}

// keepAlive 定期发送保活请求，失败即退出（连接由池的清理回收）
func (c *Client) keepAlive(ctx context.Context) {
	interval := c.config.KeepAlive
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mutex.RLock()
			conn := c.connection
			c.mutex.RUnlock()
			if conn == nil {
				return
			}
			if _, _, err := conn.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				return
			}
		}
	}
}

// newSessionWithRetry 创建会话通道
// 快速连续开通道时部分设备回 "administratively prohibited"，退避后重试
func (c *Client) newSessionWithRetry() (*ssh.Session, error) {
	c.mutex.RLock()
	conn := c.connection
	c.mutex.RUnlock()
	if conn == nil {
		return nil, fmt.Errorf("SSH connection not established")
	}

	var lastErr error
	for _, backoff := range []time.Duration{0, 200 * time.Millisecond, 500 * time.Millisecond, time.Second} {
		if backoff > 0 {
			time.Sleep(backoff)
		}
		sess, err := conn.NewSession()
		if err == nil {
			return sess, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// ExecuteCommand 执行单条命令，stdout 与 stderr 合并返回
func (c *Client) ExecuteCommand(ctx context.Context, command string) (*CommandResult, error) {
	start := time.Now()
	result := &CommandResult{Command: command}

	session, err := c.newSessionWithRetry()
	if err != nil {
		result.Error = fmt.Sprintf("failed to create session: %v", err)
		result.ExitCode = -1
		return result, err
	}
	defer session.Close()

	output, err := session.CombinedOutput(command)
	result.Duration = time.Since(start)
	result.Output = string(output)
	if err != nil {
		result.Error = err.Error()
		result.ExitCode = -1
		if exitErr, ok := err.(*ssh.ExitError); ok {
			result.ExitCode = exitErr.ExitStatus()
		}
		return result, err
	}
	result.ExitCode = 0
	return result, nil
}

// ExecuteCommands 顺序执行整批命令
// 单条失败记录在该条结果里继续执行，上下文取消时立即返回已有结果
func (c *Client) ExecuteCommands(ctx context.Context, commands []string) ([]*CommandResult, error) {
	results := make([]*CommandResult, 0, len(commands))
	for _, command := range commands {
		select {
		case <-ctx.Done():
			return results, ctx.Err()
		default:
		}
		result, _ := c.ExecuteCommand(ctx, command)
		results = append(results, result)
	}
	return results, nil
}

// Close 关闭连接
func (c *Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.connection == nil {
		return nil
	}
	err := c.connection.Close()
	c.connection = nil
	return err
}

// IsConnected 连接是否可用
func (c *Client) IsConnected() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.connection != nil
}
