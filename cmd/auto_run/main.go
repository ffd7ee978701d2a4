// 开发辅助启动器：清理残留端口后以 go run 拉起服务，
// 等待服务端口与模拟器端口就绪并保持前台运行。
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/telnetcollectorpro/telnetcollectorpro/internal/config"
	"github.com/telnetcollectorpro/telnetcollectorpro/simulate"
)

const pollInterval = 300 * time.Millisecond

type launcher struct {
	serverMain   string
	host         string
	serverPort   int
	simPorts     []int
	startTimeout int
	keep         bool
}

func main() {
	serverMain := flag.String("server_main", "cmd/server/main.go", "path to the server entry point")
	startTimeout := flag.Int("start_timeout", 10, "seconds to wait for the server port")
	keepRunning := flag.Bool("keep", true, "stay attached to the server process")
	cleanupPorts := flag.String("cleanup_ports", "", "comma-separated ports to free before start (default: server + simulator ports)")
	flag.Parse()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "[AUTO] 读取配置失败: %v\n", err)
		os.Exit(1)
	}

	l := &launcher{
		serverMain:   *serverMain,
		host:         "127.0.0.1",
		serverPort:   cfg.Server.Port,
		simPorts:     simulatorPorts(),
		startTimeout: *startTimeout,
		keep:         *keepRunning,
	}

	toClean := parsePorts(*cleanupPorts)
	if len(toClean) == 0 {
		toClean = append([]int{l.serverPort}, l.simPorts...)
	}
	toClean = dedupe(toClean)
	fmt.Printf("[AUTO] 服务端口: %d, 计划清理端口: %v\n", l.serverPort, toClean)
	for _, p := range toClean {
		l.freePort(p)
	}

	// 首次启动失败后清理服务端口再试一次
	if l.launch() {
		return
	}
	fmt.Printf("[AUTO] 首次启动失败，清理端口(%d)后重试...\n", l.serverPort)
	l.freePort(l.serverPort)
	if !l.launch() {
		fmt.Fprintln(os.Stderr, "[AUTO] 重试后服务仍未就绪")
		os.Exit(2)
	}
}

// launch 拉起服务并等待就绪，返回是否成功；keep 模式下成功后阻塞至进程退出
func (l *launcher) launch() bool {
	fmt.Printf("[AUTO] 启动应用: go run %s\n", l.serverMain)
	cmd := exec.Command("go", "run", l.serverMain)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "[AUTO] 启动失败: %v\n", err)
		return false
	}

	if err := l.waitState(l.serverPort, true); err != nil {
		_ = cmd.Process.Kill()
		return false
	}
	if cmd.Process.Signal(syscall.Signal(0)) != nil {
		return false
	}
	fmt.Printf("[AUTO] 应用已监听: %s:%d\n", l.host, l.serverPort)
	l.reportSimulators()

	if l.keep {
		_ = cmd.Wait()
	}
	return true
}

// reportSimulators 等待并输出模拟器端口监听状态
func (l *launcher) reportSimulators() {
	if len(l.simPorts) == 0 {
		return
	}
	ready := make([]string, 0, len(l.simPorts))
	for _, p := range dedupe(l.simPorts) {
		_ = l.waitState(p, true)
		if portOpen(l.host, p) {
			ready = append(ready, fmt.Sprintf("%s:%d", l.host, p))
		}
	}
	if len(ready) > 0 {
		fmt.Printf("[AUTO] 模拟端口已监听: %s\n", strings.Join(ready, ", "))
	} else {
		fmt.Printf("[AUTO] 未检测到模拟端口监听 (尝试: %v)\n", l.simPorts)
	}
}

// freePort 结束占用端口的进程并等待端口释放
func (l *launcher) freePort(port int) {
	if port <= 0 {
		return
	}
	pids := killListeners(port)
	if len(pids) > 0 {
		fmt.Printf("[AUTO] 已清理端口 %d 上的进程: %v\n", port, pids)
	}
	_ = l.waitState(port, false)
}

// waitState 轮询等待端口进入目标状态（open=true 就绪 / open=false 释放）
func (l *launcher) waitState(port int, open bool) error {
	timeout := l.startTimeout
	if timeout <= 0 {
		timeout = 10
	}
	deadline := time.Now().Add(time.Duration(timeout) * time.Second)
	for time.Now().Before(deadline) {
		if portOpen(l.host, port) == open {
			return nil
		}
		time.Sleep(pollInterval)
	}
	return fmt.Errorf("port %d did not reach desired state within %ds", port, timeout)
}

// portOpen 探测端口是否可连接，兼容只监听回环或通配地址的进程
func portOpen(host string, port int) bool {
	for _, h := range []string{host, "127.0.0.1", "::1", "localhost"} {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(h, strconv.Itoa(port)), pollInterval)
		if err == nil {
			_ = conn.Close()
			return true
		}
	}
	return false
}

// killListeners 通过 lsof 找到监听进程并终止，lsof 不可用时静默跳过
func killListeners(port int) []int {
	out, err := exec.Command("lsof", "-nP", fmt.Sprintf("-iTCP:%d", port), "-sTCP:LISTEN", "-t").Output()
	if err != nil {
		return nil
	}
	var pids []int
	for _, ln := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if pid, e := strconv.Atoi(strings.TrimSpace(ln)); e == nil {
			pids = append(pids, pid)
		}
	}
	for _, pid := range pids {
		_ = syscall.Kill(pid, syscall.SIGTERM)
		time.Sleep(pollInterval)
		_ = syscall.Kill(pid, syscall.SIGKILL)
	}
	return pids
}

// simulatorPorts 从 simulate.yaml 读取模拟器端口，读取失败时用默认值
func simulatorPorts() []int {
	simCfg, err := simulate.LoadConfig("simulate/simulate.yaml")
	if err != nil || simCfg == nil || len(simCfg.Namespace) == 0 {
		return []int{22001, 22002}
	}
	ports := make([]int, 0, len(simCfg.Namespace))
	for _, ns := range simCfg.Namespace {
		ports = append(ports, ns.Port)
	}
	return ports
}

func parsePorts(arg string) []int {
	var res []int
	for _, part := range strings.Split(arg, ",") {
		if v, err := strconv.Atoi(strings.TrimSpace(part)); err == nil && v > 0 {
			res = append(res, v)
		}
	}
	return res
}

func dedupe(ports []int) []int {
	seen := make(map[int]struct{}, len(ports))
	out := make([]int, 0, len(ports))
	for _, p := range ports {
		if p <= 0 {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
