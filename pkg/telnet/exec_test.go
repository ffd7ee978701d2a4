package telnet

import (
	"bufio"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteReturnsOutputUntilPrompt(t *testing.T) {
	port, _ := startScriptServer(t, func(c net.Conn) {
		defer c.Close()
		r := bufio.NewReader(c)
		expectNAWS(t, r, 80, 24)
		cmd := readClientLine(r)
		if cmd != "show clock" {
			t.Errorf("unexpected command: %q", cmd)
			return
		}
		_, _ = io.WriteString(c, "\r\n*10:23:01 UTC\r\n\r\n\r\nSW1>")
	})

	s := NewSession(Config{Host: "127.0.0.1", Port: port})
	defer s.Disconnect()
	out, err := s.Execute("show clock")
	require.NoError(t, err)
	assert.Contains(t, out, "10:23:01")
	// 尾部空行被去除，提示符行保留
	assert.True(t, len(out) > 0 && out[len(out)-1] == '>')
}

func TestExecuteTimeoutReturnsPartialOutput(t *testing.T) {
	port, _ := startScriptServer(t, func(c net.Conn) {
		defer c.Close()
		r := bufio.NewReader(c)
		expectNAWS(t, r, 80, 24)
		readClientLine(r)
		// 只给出部分回显，永远不出现提示符
		_, _ = io.WriteString(c, "partial body\r\n")
		_, _ = io.Copy(io.Discard, r)
	})

	s := NewSession(Config{Host: "127.0.0.1", Port: port})
	defer s.Disconnect()
	out, err := s.ExecuteWithOptions("show tech", &ExecOptions{Timeout: 400 * time.Millisecond})
	require.NoError(t, err) // 截止时间到不算错误
	assert.Contains(t, out, "partial body")
}

func TestExecutePagerBellInterrupt(t *testing.T) {
	interrupts := make(chan byte, 4)
	port, _ := startScriptServer(t, func(c net.Conn) {
		defer c.Close()
		r := bufio.NewReader(c)
		expectNAWS(t, r, 80, 24)
		readClientLine(r)
		_, _ = io.WriteString(c, "page one\r\n\x07")
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		interrupts <- b
		// 中断之后再推一个 BEL，不允许出现第二个 0x03
		_, _ = io.WriteString(c, "page two\r\n")
		_, _ = io.WriteString(c, "\x07")
		_ = c.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
		if b, err := r.ReadByte(); err == nil {
			interrupts <- b
		}
		_ = c.SetReadDeadline(time.Time{})
		_, _ = io.WriteString(c, "SW1>")
	})

	s := NewSession(Config{Host: "127.0.0.1", Port: port})
	defer s.Disconnect()
	out, err := s.ExecuteWithOptions("display current-configuration", &ExecOptions{Timeout: 3 * time.Second})
	require.NoError(t, err)
	assert.Contains(t, out, "page one")
	assert.Contains(t, out, "page two")

	select {
	case b := <-interrupts:
		assert.Equal(t, byte(charInterrupt), b)
	case <-time.After(2 * time.Second):
		t.Fatal("interrupt byte not received")
	}
	assert.Empty(t, interrupts, "only one interrupt per read")
}

func TestExecutePagerBannerContinuesReading(t *testing.T) {
	port, _ := startScriptServer(t, func(c net.Conn) {
		defer c.Close()
		r := bufio.NewReader(c)
		expectNAWS(t, r, 80, 24)
		readClientLine(r)
		_, _ = io.WriteString(c, "head\r\n---- More ---- CTRL+C ESC Quit")
		if b, err := r.ReadByte(); err != nil || b != charInterrupt {
			return
		}
		_, _ = io.WriteString(c, "\r\ntail\r\nSW1>")
	})

	s := NewSession(Config{Host: "127.0.0.1", Port: port})
	defer s.Disconnect()
	out, err := s.ExecuteWithOptions("display current-configuration", &ExecOptions{Timeout: 3 * time.Second})
	require.NoError(t, err)
	assert.Contains(t, out, "head")
	assert.Contains(t, out, "tail")
}

func TestExecutePageHeightNegotiation(t *testing.T) {
	restored := make(chan struct{})
	port, _ := startScriptServer(t, func(c net.Conn) {
		defer c.Close()
		r := bufio.NewReader(c)
		expectNAWS(t, r, 80, 24)  // 连接基线
		expectNAWS(t, r, 80, 512) // 执行前放大页高
		readClientLine(r)
		_, _ = io.WriteString(c, "\r\nok\r\nSW1>")
		expectNAWS(t, r, 80, 24) // 读取结束后恢复基线
		close(restored)
	})

	s := NewSession(Config{Host: "127.0.0.1", Port: port})
	defer s.Disconnect()
	out, err := s.ExecuteWithOptions("display current-configuration", &ExecOptions{
		Timeout:    3 * time.Second,
		PageHeight: 512,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	select {
	case <-restored:
	case <-time.After(2 * time.Second):
		t.Fatal("geometry baseline not restored after execution")
	}
}

func TestExecutePageHeightRestoredAfterTimeout(t *testing.T) {
	restored := make(chan struct{})
	port, _ := startScriptServer(t, func(c net.Conn) {
		defer c.Close()
		r := bufio.NewReader(c)
		expectNAWS(t, r, 80, 24)  // 连接基线
		expectNAWS(t, r, 80, 512) // 执行前放大页高
		readClientLine(r)
		// 只回部分输出，不出现提示符，读取以截止时间解析
		_, _ = io.WriteString(c, "partial page\r\n")
		expectNAWS(t, r, 80, 24) // 非正常出口同样恢复基线
		close(restored)
	})

	s := NewSession(Config{Host: "127.0.0.1", Port: port})
	defer s.Disconnect()
	out, err := s.ExecuteWithOptions("display current-configuration", &ExecOptions{
		Timeout:    300 * time.Millisecond,
		PageHeight: 512,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "partial page")

	select {
	case <-restored:
	case <-time.After(2 * time.Second):
		t.Fatal("geometry baseline not restored after deadline expiry")
	}
}

func TestExecutePageHeightOnClosedPeer(t *testing.T) {
	port, _ := startScriptServer(t, func(c net.Conn) {
		r := bufio.NewReader(c)
		expectNAWS(t, r, 80, 24)
		expectNAWS(t, r, 80, 512)
		readClientLine(r)
		_ = c.Close() // 页高协商后对端断开，恢复基线的写入落空但不阻塞返回
	})

	s := NewSession(Config{Host: "127.0.0.1", Port: port})
	defer s.Disconnect()
	_, err := s.ExecuteWithOptions("show clock", &ExecOptions{
		Timeout:    3 * time.Second,
		PageHeight: 512,
	})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestExecuteOnClosedPeerReturnsTransportError(t *testing.T) {
	port, _ := startScriptServer(t, func(c net.Conn) {
		r := bufio.NewReader(c)
		expectNAWS(t, r, 80, 24)
		readClientLine(r)
		_ = c.Close() // 命令发出后对端直接断开
	})

	s := NewSession(Config{Host: "127.0.0.1", Port: port})
	defer s.Disconnect()
	_, err := s.ExecuteWithOptions("show clock", &ExecOptions{Timeout: 3 * time.Second})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestTrimEmptyLines(t *testing.T) {
	assert.Equal(t, "a\nb", TrimEmptyLines("a\nb\n\n  \n"))
	assert.Equal(t, "a\n\nb", TrimEmptyLines("a\n\nb"))
	assert.Equal(t, "", TrimEmptyLines("\n\n\t\n"))
	assert.Equal(t, "", TrimEmptyLines(""))
}
