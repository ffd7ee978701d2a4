package telnet

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startScriptServer 启动一个脚本化 TELNET 服务端，返回监听端口与接受计数
func startScriptServer(t *testing.T, handler func(net.Conn)) (int, *int32) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	var accepted int32
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			atomic.AddInt32(&accepted, 1)
			go handler(c)
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port, &accepted
}

// expectNAWS 读取并校验 9 字节窗口尺寸子协商
// 运行在服务端协程内，只记录失败不中断
func expectNAWS(t *testing.T, r io.Reader, width, height int) {
	t.Helper()
	buf := make([]byte, 9)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Errorf("read NAWS sequence: %v", err)
		return
	}
	assert.Equal(t, []byte{
		telnetIAC, telnetSB, optNAWS,
		byte(width >> 8), byte(width),
		byte(height >> 8), byte(height),
		telnetIAC, telnetSE,
	}, buf)
}

// readClientLine 读取客户端写入的一行（引擎以 \n 结尾），出错返回空串
func readClientLine(r *bufio.Reader) string {
	line, err := r.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimRight(line, "\r\n")
}

func TestConnectRequiresHost(t *testing.T) {
	s := NewSession(Config{})
	err := s.Connect()
	assert.ErrorIs(t, err, ErrHostRequired)
	// 校验失败不触碰网络，也不改变会话状态
	assert.Equal(t, StateUnconnected, s.State())
}

func TestConnectSendsWindowSizeBaseline(t *testing.T) {
	got := make(chan []byte, 1)
	port, _ := startScriptServer(t, func(c net.Conn) {
		defer c.Close()
		buf := make([]byte, 9)
		if _, err := io.ReadFull(c, buf); err == nil {
			got <- buf
		}
	})

	s := NewSession(Config{Host: "127.0.0.1", Port: port})
	require.NoError(t, s.Connect())
	defer s.Disconnect()

	select {
	case seq := <-got:
		assert.Equal(t, []byte{
			telnetIAC, telnetSB, optNAWS,
			0x00, 80, 0x00, 24,
			telnetIAC, telnetSE,
		}, seq)
	case <-time.After(2 * time.Second):
		t.Fatal("window size negotiation not received")
	}
}

func TestConnectIdempotent(t *testing.T) {
	port, accepted := startScriptServer(t, func(c net.Conn) {
		defer c.Close()
		_, _ = io.Copy(io.Discard, c)
	})

	s := NewSession(Config{Host: "127.0.0.1", Port: port})
	require.NoError(t, s.Connect())
	require.NoError(t, s.Connect())
	assert.True(t, s.IsConnected())
	s.Disconnect()

	assert.Equal(t, int32(1), atomic.LoadInt32(accepted))
}

func TestConnectConcurrentSharesDial(t *testing.T) {
	port, accepted := startScriptServer(t, func(c net.Conn) {
		defer c.Close()
		_, _ = io.Copy(io.Discard, c)
	})

	s := NewSession(Config{Host: "127.0.0.1", Port: port})
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Connect()
		}(i)
	}
	wg.Wait()
	defer s.Disconnect()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(accepted))
}

func TestConnectRefusedIsTransportError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	s := NewSession(Config{Host: "127.0.0.1", Port: port, ConnectTimeout: 2 * time.Second})
	err = s.Connect()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestDisconnectIdempotent(t *testing.T) {
	port, _ := startScriptServer(t, func(c net.Conn) {
		defer c.Close()
		_, _ = io.Copy(io.Discard, c)
	})

	s := NewSession(Config{Host: "127.0.0.1", Port: port})
	require.NoError(t, s.Connect())
	s.Disconnect()
	s.Disconnect() // 重复断开为空操作
	assert.Equal(t, StateClosed, s.State())

	// 终态后不可复用
	assert.ErrorIs(t, s.Connect(), ErrSessionClosed)
}

func TestDisconnectBeforeConnectIsNoop(t *testing.T) {
	s := NewSession(Config{Host: "127.0.0.1"})
	s.Disconnect()
	assert.Equal(t, StateClosed, s.State())
}
