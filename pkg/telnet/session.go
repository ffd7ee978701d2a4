package telnet

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// 默认超时预算
const (
	DefaultConnectTimeout = 7500 * time.Millisecond
	DefaultAuthTimeout    = 7500 * time.Millisecond
	DefaultExecTimeout    = 7500 * time.Millisecond
)

// DebugFunc 可选的调试输出回调，默认不输出
type DebugFunc func(format string, args ...interface{})

// Config 连接配置，会话构造后不可变更
type Config struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`            // 默认 23
	ConnectTimeout time.Duration `json:"connect_timeout"` // 默认 7.5s
	Debug          DebugFunc     `json:"-"`
}

// State 会话状态机
// Closed 为终态：已关闭的会话必须重新构造，不能复用
type State int32

const (
	StateUnconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

// String 状态名
func (st State) String() string {
	switch st {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session TELNET 会话引擎
// 独占持有底层连接；所有读操作经由 readUntil 串行化，
// 同一连接上任意时刻至多存在一个挂起读取
type Session struct {
	cfg Config

	mu          sync.Mutex
	state       State
	conn        net.Conn
	connectDone chan struct{} // 连接尝试完成信号，并发 Connect 挂靠于此
	connectErr  error
	chunks      chan []byte   // 读取协程推送的数据块，传输结束时关闭
	readErr     error         // 读取协程退出原因，先于 chunks 关闭写入
	done        chan struct{} // 关闭信号，解除读取协程的阻塞推送

	opMu sync.Mutex // 读操作互斥：一次只允许一个挂起读取
}

// NewSession 创建 TELNET 会话，不发起连接
// 首次 Connect/Auth/Execute 调用时惰性建立连接
func NewSession(cfg Config) *Session {
	if cfg.Port <= 0 {
		cfg.Port = 23
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	return &Session{cfg: cfg, state: StateUnconnected}
}

// State 返回当前会话状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected 会话是否处于已连接状态
func (s *Session) IsConnected() bool {
	return s.State() == StateConnected
}

// Connect 建立连接（幂等）
// 已连接时立即返回；连接进行中时挂靠同一次拨号而不是新开连接；
// 已关闭的会话返回 ErrSessionClosed
func (s *Session) Connect() error {
	s.mu.Lock()
	switch s.state {
	case StateConnected:
		s.mu.Unlock()
		return nil
	case StateClosed:
		s.mu.Unlock()
		return ErrSessionClosed
	case StateConnecting:
		done := s.connectDone
		s.mu.Unlock()
		<-done
		s.mu.Lock()
		err := s.connectErr
		s.mu.Unlock()
		return err
	}

	// 校验先于任何网络调用
	if strings.TrimSpace(s.cfg.Host) == "" {
		s.mu.Unlock()
		return ErrHostRequired
	}

	s.state = StateConnecting
	s.connectDone = make(chan struct{})
	done := s.connectDone
	s.mu.Unlock()

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	s.debugf("connecting to %s", addr)
	conn, err := net.DialTimeout("tcp", addr, s.cfg.ConnectTimeout)

	s.mu.Lock()
	if err != nil {
		s.state = StateClosed
		s.connectErr = classifyDialError(addr, err)
		close(done)
		cerr := s.connectErr
		s.mu.Unlock()
		return cerr
	}
	if s.state == StateClosed {
		// 拨号期间被 Disconnect，放弃连接
		s.connectErr = ErrSessionClosed
		close(done)
		s.mu.Unlock()
		_ = conn.Close()
		return ErrSessionClosed
	}
	s.conn = conn
	s.chunks = make(chan []byte, 64)
	s.done = make(chan struct{})
	s.state = StateConnected
	s.connectErr = nil
	chunks, doneCh := s.chunks, s.done
	close(done)
	s.mu.Unlock()

	go s.readLoop(conn, chunks, doneCh)

	// 连接建立后立即声明 80x24 几何基线，保证后续分页启发式有已知的参照
	s.negotiateWindowSize(defaultWidth, defaultHeight)
	s.debugf("connected to %s", addr)
	return nil
}

// Disconnect 断开连接并进入终态
// 任何状态下调用都是安全的，重复调用与未连接时调用均为空操作，从不报错
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	conn := s.conn
	s.conn = nil
	doneCh := s.done
	s.done = nil
	s.mu.Unlock()

	if doneCh != nil {
		close(doneCh)
	}
	if conn != nil {
		_ = conn.Close()
	}
	s.debugf("disconnected")
}

// readLoop 读取协程：持续从连接搬运数据块到通道
// 读错误时记录原因、迁移状态并关闭 chunks（chunks 只在这里关闭）
func (s *Session) readLoop(conn net.Conn, chunks chan []byte, doneCh chan struct{}) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case chunks <- chunk:
			case <-doneCh:
				return
			}
		}
		if err != nil {
			s.mu.Lock()
			s.readErr = err
			if s.state == StateConnected {
				s.state = StateClosed
				s.conn = nil
			}
			s.mu.Unlock()
			_ = conn.Close()
			close(chunks)
			return
		}
	}
}

// write 向连接写入字节
func (s *Session) write(p []byte) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("%w: connection not established", ErrTransport)
	}
	if _, err := conn.Write(p); err != nil {
		return fmt.Errorf("%w: write failed: %v", ErrTransport, err)
	}
	return nil
}

// writeLine 写入一行命令，以 \n 结尾
func (s *Session) writeLine(line string) error {
	return s.write([]byte(line + "\n"))
}

func (s *Session) debugf(format string, args ...interface{}) {
	if s.cfg.Debug != nil {
		s.cfg.Debug(format, args...)
	}
}

// classifyDialError 区分连接超时与其他传输故障（拒绝、重置、不可达）
func classifyDialError(addr string, err error) error {
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return fmt.Errorf("%w: dial %s: %v", ErrConnectTimeout, addr, err)
	}
	return fmt.Errorf("%w: dial %s: %v", ErrTransport, addr, err)
}
