package integration

import (
	"bufio"
	"context"
	"io"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/telnetcollectorpro/telnetcollectorpro/addone/collect/platforms/cisco_ios"
	_ "github.com/telnetcollectorpro/telnetcollectorpro/addone/interact/platforms/cisco_ios"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/config"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/database"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/service"
)

// startFakeDevice 启动一个脚本化 TELNET 设备，返回监听端口
func startFakeDevice(t *testing.T, handler func(net.Conn)) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go handler(c)
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

// readDeviceLine 读取一行输入并过滤 TELNET 协商字节（客户端连接即发送 NAWS）
func readDeviceLine(r *bufio.Reader) (string, error) {
	var line []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0xFF { // IAC
			cmd, err := r.ReadByte()
			if err != nil {
				return "", err
			}
			switch cmd {
			case 0xFA: // SB ... IAC SE
				prev := byte(0)
				for {
					nb, err := r.ReadByte()
					if err != nil {
						return "", err
					}
					if prev == 0xFF && nb == 0xF0 {
						break
					}
					prev = nb
				}
			case 0xFB, 0xFC, 0xFD, 0xFE:
				if _, err := r.ReadByte(); err != nil {
					return "", err
				}
			}
			continue
		}
		if b == '\n' {
			return strings.TrimRight(string(line), "\r"), nil
		}
		if b != '\r' && b != 0x00 {
			line = append(line, b)
		}
	}
}

// scriptedCiscoDevice 模拟一台 Cisco 风格设备：登录后对已知命令返回固定回显
func scriptedCiscoDevice(c net.Conn) {
	defer c.Close()
	r := bufio.NewReader(c)
	_, _ = io.WriteString(c, "Username: ")
	if _, err := readDeviceLine(r); err != nil {
		return
	}
	_, _ = io.WriteString(c, "Password: ")
	if _, err := readDeviceLine(r); err != nil {
		return
	}
	_, _ = io.WriteString(c, "\r\nSW1>")
	for {
		cmd, err := readDeviceLine(r)
		if err != nil {
			return
		}
		switch cmd {
		case "show clock":
			_, _ = io.WriteString(c, "\r\n*10:23:01.419 UTC Fri Aug 29 2025\r\nSW1>")
		case "show version":
			_, _ = io.WriteString(c, "\r\nCisco IOS Software, C2960 Software, Version 15.2(4)E7\r\n"+
				"SW1 uptime is 3 weeks, 2 days\r\n"+
				"Processor board ID FOC1419Z123\r\n"+
				"cisco WS-C2960-24TT-L (PowerPC405) processor with 65536K bytes of memory.\r\nSW1>")
		case "show running-config":
			_, _ = io.WriteString(c, "\r\nhostname SW1\r\ninterface GigabitEthernet0/1\r\n!\r\nSW1>")
		case "show ip interface brief":
			_, _ = io.WriteString(c, "\r\nInterface       IP-Address      OK? Method Status                Protocol\r\n"+
				"Gi0/1           10.0.0.1        YES manual up                    up\r\nSW1>")
		default:
			// 分页关闭等预命令直接吞掉
			_, _ = io.WriteString(c, "\r\nSW1>")
		}
	}
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Collector.Concurrent = 2
	cfg.Telnet.ConnectTimeout = 2 * time.Second
	cfg.Telnet.AuthTimeout = 2 * time.Second
	cfg.Telnet.ReadTimeout = 3 * time.Second
	require.NoError(t, database.InitSQLite(config.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "collector_test.db"),
	}))
	t.Cleanup(func() { _ = database.Close() })
	return cfg
}

func TestCollectorTelnetCustomerCollection(t *testing.T) {
	port := startFakeDevice(t, scriptedCiscoDevice)
	cfg := newTestConfig(t)

	svc := service.NewCollectorService(cfg)
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	retry := 0
	resp, err := svc.ExecuteTask(context.Background(), &service.CollectRequest{
		TaskID:    "it-customer-1",
		DeviceIP:  "127.0.0.1",
		Port:      port,
		UserName:  "admin",
		Password:  "secret",
		CliList:   []string{"show clock"},
		RetryFlag: &retry,
	})
	require.NoError(t, err)
	require.True(t, resp.Success, "collection should succeed: %s", resp.Error)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "show clock", resp.Results[0].Command)
	assert.Contains(t, resp.Results[0].RawOutput, "10:23:01")
	assert.Empty(t, resp.Results[0].Error)
}

func TestCollectorSystemOriginUsesPluginCommands(t *testing.T) {
	port := startFakeDevice(t, scriptedCiscoDevice)
	cfg := newTestConfig(t)

	svc := service.NewCollectorService(cfg)
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	retry := 0
	timeout := 30
	resp, err := svc.ExecuteTask(context.Background(), &service.CollectRequest{
		TaskID:         "it-system-1",
		CollectOrigin:  "system",
		DeviceIP:       "127.0.0.1",
		Port:           port,
		DevicePlatform: "cisco_ios",
		UserName:       "admin",
		Password:       "secret",
		RetryFlag:      &retry,
		Timeout:        &timeout,
	})
	require.NoError(t, err)
	require.True(t, resp.Success, "collection should succeed: %s", resp.Error)

	// cli_list 为空时使用平台插件内置命令（show version / show running-config / show ip interface brief）
	require.Len(t, resp.Results, 3)
	byCmd := map[string]string{}
	var parsedVersion bool
	for _, r := range resp.Results {
		byCmd[r.Command] = r.RawOutput
		if r.Command == "show version" && len(r.Parsed) > 0 {
			parsedVersion = true
			assert.Equal(t, "version_info", r.Parsed[0].Table)
			assert.Equal(t, "15.2(4)E7", r.Parsed[0].Data["version"])
		}
	}
	assert.Contains(t, byCmd, "show version")
	assert.Contains(t, byCmd, "show running-config")
	assert.Contains(t, byCmd, "show ip interface brief")
	assert.True(t, parsedVersion, "show version should produce structured rows")
}

func TestCollectorAuthTimeoutFails(t *testing.T) {
	// 静默设备：接受连接但不发送任何提示
	port := startFakeDevice(t, func(c net.Conn) {
		defer c.Close()
		_, _ = io.Copy(io.Discard, c)
	})
	cfg := newTestConfig(t)

	svc := service.NewCollectorService(cfg)
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	retry := 0
	timeout := 8
	start := time.Now()
	resp, err := svc.ExecuteTask(context.Background(), &service.CollectRequest{
		TaskID:    "it-timeout-1",
		DeviceIP:  "127.0.0.1",
		Port:      port,
		UserName:  "admin",
		Password:  "secret",
		CliList:   []string{"show clock"},
		RetryFlag: &retry,
		Timeout:   &timeout,
	})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
	assert.Less(t, time.Since(start), 7*time.Second, "auth should give up within the configured budget")
}
