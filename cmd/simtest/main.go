package main

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/telnetcollectorpro/telnetcollectorpro/pkg/telnet"
)

// 模拟器连通性自检：用 TELNET 引擎登录本地模拟设备并执行两条命令
//
// 用法：simtest -host 127.0.0.1 -port 22001 -device simulate-dev-huawei-01
func main() {
	var (
		host   = flag.String("host", "127.0.0.1", "模拟器地址")
		port   = flag.Int("port", 22001, "模拟器端口")
		device = flag.String("device", "simulate-dev-huawei-01", "设备名（作为登录用户名）")
	)
	flag.Parse()

	session := telnet.NewSession(telnet.Config{
		Host:           *host,
		Port:           *port,
		ConnectTimeout: 3 * time.Second,
	})
	if err := session.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "connect failed: %v\n", err)
		os.Exit(1)
	}
	defer session.Disconnect()

	if err := session.Auth(&telnet.AuthConfig{
		Login:       *device, // 设备名作为用户名
		Password:    "telnet01", // 模拟器统一密码
		AuthTimeout: 5 * time.Second,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "auth failed: %v\n", err)
		os.Exit(1)
	}

	prompt := regexp.MustCompile(`[>\]#]\s*$`)

	// 1) 验证：DB优先匹配（display version）
	out, err := session.ExecuteWithOptions("display version", &telnet.ExecOptions{
		Pattern: prompt,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		fmt.Println("display version error:", err)
	}
	fmt.Println("display version output:")
	fmt.Println(out)

	// 2) 验证：分页回显（大输出，窗口高度协商到 512 行）
	out, err = session.ExecuteWithOptions("display current-configuration", &telnet.ExecOptions{
		Pattern:    prompt,
		Timeout:    10 * time.Second,
		PageHeight: 512,
	})
	if err != nil {
		fmt.Println("display current-configuration error:", err)
	}
	fmt.Println("display current-configuration output (head):")
	fmt.Println(headLines(out, 10))
}

func headLines(s string, n int) string {
	if n <= 0 {
		return ""
	}
	lines := make([]string, 0, n)
	cur := ""
	count := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' || s[i] == '\r' {
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
				count++
				if count >= n {
					break
				}
			}
			continue
		}
		cur += string(s[i])
	}
	if cur != "" && count < n {
		lines = append(lines, cur)
	}
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return out
}
