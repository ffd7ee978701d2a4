package simulate

import (
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telnetcollectorpro/telnetcollectorpro/pkg/telnet"
)

func testSimConfig() *Config {
	return &Config{
		Namespace: map[string]NamespaceConfig{
			"test": {Port: 0, IdleSeconds: 30, MaxConn: 4},
		},
		DeviceType: map[string]DeviceTypeConfig{
			"huawei_s":  {PromptSuffix: ">"},
			"cisco_ios": {PromptSuffix: ">", EnableModeRequired: true, EnableModeSuffix: "#"},
		},
		DeviceName: map[string]DeviceNameConfig{
			"SW1": {DeviceType: "huawei_s"},
			"R1":  {DeviceType: "cisco_ios"},
		},
	}
}

// startTestServer 在随机端口启动单个 namespace 服务
func startTestServer(t *testing.T) (*namespaceServer, int) {
	t.Helper()
	cfg := testSimConfig()
	srv := &namespaceServer{nsName: "test", cfg: cfg.Namespace["test"], simCfg: cfg}
	require.NoError(t, srv.start())
	t.Cleanup(srv.stop)
	return srv, srv.listener.Addr().(*net.TCPAddr).Port
}

func newClient(t *testing.T, port int) *telnet.Session {
	t.Helper()
	s := telnet.NewSession(telnet.Config{Host: "127.0.0.1", Port: port, ConnectTimeout: 3 * time.Second})
	t.Cleanup(s.Disconnect)
	return s
}

func TestLoginAndUnknownCommand(t *testing.T) {
	_, port := startTestServer(t)
	s := newClient(t, port)

	err := s.Auth(&telnet.AuthConfig{Login: "SW1", Password: simPassword, AuthTimeout: 5 * time.Second})
	require.NoError(t, err)

	out, err := s.Execute("display foo")
	require.NoError(t, err)
	assert.Contains(t, out, "% Unknown command")
	assert.Contains(t, out, "SW1>")
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	_, port := startTestServer(t)
	s := newClient(t, port)

	err := s.Auth(&telnet.AuthConfig{Login: "SW1", Password: "wrong", AuthTimeout: 2 * time.Second})
	assert.ErrorIs(t, err, telnet.ErrInvalidCredentials)
}

func TestDisablePagingAcceptedSilently(t *testing.T) {
	_, port := startTestServer(t)
	s := newClient(t, port)

	require.NoError(t, s.Auth(&telnet.AuthConfig{Login: "SW1", Password: simPassword, AuthTimeout: 5 * time.Second}))

	out, err := s.Execute("screen-length 0 temporary")
	require.NoError(t, err)
	assert.NotContains(t, out, "Unknown command")
	assert.Contains(t, out, "SW1>")
}

func TestEnableModeSwitchesPrompt(t *testing.T) {
	_, port := startTestServer(t)
	s := newClient(t, port)

	require.NoError(t, s.Auth(&telnet.AuthConfig{Login: "R1", Password: simPassword, AuthTimeout: 5 * time.Second}))

	// enable 要求二次输入密码，成功后提示符切换为 #
	out, err := s.ExecuteWithOptions("enable", &telnet.ExecOptions{
		Pattern: regexp.MustCompile(`(?i)password[: ]*$`),
		Timeout: 3 * time.Second,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Password:")

	out, err = s.Execute(simPassword)
	require.NoError(t, err)
	assert.Contains(t, out, "R1#")
}

func TestResolveDeviceTypeDefaults(t *testing.T) {
	cfg := testSimConfig()
	srv := &namespaceServer{nsName: "test", cfg: cfg.Namespace["test"], simCfg: cfg}

	dt := srv.resolveDeviceType("SW1")
	assert.Equal(t, ">", dt.PromptSuffix)

	// 未登记的设备名使用默认提示符
	dt = srv.resolveDeviceType("unknown-device")
	assert.Equal(t, ">", dt.PromptSuffix)
	assert.False(t, dt.EnableModeRequired)
}
