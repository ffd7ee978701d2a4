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

func TestAuthRequiresCredentials(t *testing.T) {
	s := NewSession(Config{Host: "127.0.0.1", Port: 9})

	// 凭据校验先于任何网络调用
	assert.ErrorIs(t, s.Auth(nil), ErrCredentialsRequired)
	assert.ErrorIs(t, s.Auth(&AuthConfig{Login: "admin"}), ErrCredentialsRequired)
	assert.ErrorIs(t, s.Auth(&AuthConfig{Password: "secret"}), ErrCredentialsRequired)
	assert.Equal(t, StateUnconnected, s.State())
}

func TestAuthSuccess(t *testing.T) {
	gotLogin := make(chan string, 1)
	gotPassword := make(chan string, 1)
	port, _ := startScriptServer(t, func(c net.Conn) {
		defer c.Close()
		r := bufio.NewReader(c)
		expectNAWS(t, r, 80, 24)
		_, _ = io.WriteString(c, "Username: ")
		gotLogin <- readClientLine(r)
		_, _ = io.WriteString(c, "Password: ")
		gotPassword <- readClientLine(r)
		_, _ = io.WriteString(c, "\r\nSW1>")
	})

	s := NewSession(Config{Host: "127.0.0.1", Port: port})
	defer s.Disconnect()
	err := s.Auth(&AuthConfig{Login: "admin", Password: "secret", AuthTimeout: 3 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "admin", <-gotLogin)
	assert.Equal(t, "secret", <-gotPassword)
}

func TestAuthInvalidCredentials(t *testing.T) {
	port, _ := startScriptServer(t, func(c net.Conn) {
		defer c.Close()
		r := bufio.NewReader(c)
		expectNAWS(t, r, 80, 24)
		_, _ = io.WriteString(c, "Username: ")
		readClientLine(r)
		_, _ = io.WriteString(c, "Password: ")
		readClientLine(r)
		// 失败横幅与提示符同帧到达时以失败为准
		_, _ = io.WriteString(c, "\r\nLogin incorrect\r\nSW1>")
	})

	s := NewSession(Config{Host: "127.0.0.1", Port: port})
	defer s.Disconnect()
	err := s.Auth(&AuthConfig{Login: "admin", Password: "wrong", AuthTimeout: 3 * time.Second})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthSilentDeviceFails(t *testing.T) {
	port, _ := startScriptServer(t, func(c net.Conn) {
		defer c.Close()
		_, _ = io.Copy(io.Discard, c)
	})

	s := NewSession(Config{Host: "127.0.0.1", Port: port})
	defer s.Disconnect()
	start := time.Now()
	err := s.Auth(&AuthConfig{Login: "admin", Password: "secret", AuthTimeout: 400 * time.Millisecond})
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAuthPasswordPromptMissing(t *testing.T) {
	port, _ := startScriptServer(t, func(c net.Conn) {
		defer c.Close()
		r := bufio.NewReader(c)
		expectNAWS(t, r, 80, 24)
		_, _ = io.WriteString(c, "Username: ")
		readClientLine(r)
		// 不再给出密码提示
		_, _ = io.Copy(io.Discard, r)
	})

	s := NewSession(Config{Host: "127.0.0.1", Port: port})
	defer s.Disconnect()
	err := s.Auth(&AuthConfig{Login: "admin", Password: "secret", AuthTimeout: 600 * time.Millisecond})
	assert.ErrorIs(t, err, ErrAuthFailed)
}
