package simulate

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/telnetcollectorpro/telnetcollectorpro/internal/database"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/model"
	"github.com/telnetcollectorpro/telnetcollectorpro/pkg/logger"
)

// TELNET 协议字节
const (
	telBEL  = 0x07
	telETX  = 0x03
	telESC  = 0x1b
	telIAC  = 0xFF
	telSE   = 0xF0
	telSB   = 0xFA
	telWILL = 0xFB
	telWONT = 0xFC
	telDO   = 0xFD
	telDONT = 0xFE

	optEcho = 0x01
	optSGA  = 0x03
	optNAWS = 0x1F
)

const simPassword = "telnet01"

// 分页提示横幅，banner 模式下逐页输出
const moreBanner = "---- More ---- CTRL+C ESC Quit"

// Simulate.yaml 配置结构
// 注意：沿用 prompt_suffixe/enable_mode_suffixe 键名（带 e）
type Config struct {
	Namespace  map[string]NamespaceConfig  `mapstructure:"namespace"`
	DeviceType map[string]DeviceTypeConfig `mapstructure:"device_type"`
	DeviceName map[string]DeviceNameConfig `mapstructure:"device_name"`
}

type NamespaceConfig struct {
	Port        int `mapstructure:"port"`
	IdleSeconds int `mapstructure:"idle_seconds"`
	MaxConn     int `mapstructure:"max_conn"`
}

type DeviceTypeConfig struct {
	PromptSuffix       string `mapstructure:"prompt_suffixe"`
	EnableModeRequired bool   `mapstructure:"enable_mode_required"`
	EnableModeSuffix   string `mapstructure:"enable_mode_suffixe"`
}

type DeviceNameConfig struct {
	DeviceType string `mapstructure:"device_type"`
}

// Manager 管理多个 namespace 的 TELNET 模拟服务
// 每个 namespace 在独立端口运行，互不影响
// 登录用户名即设备名称，映射到设备类型与提示符
type Manager struct {
	cfg       *Config
	nsServers map[string]*namespaceServer
	mu        sync.Mutex
}

type namespaceServer struct {
	nsName   string
	cfg      NamespaceConfig
	simCfg   *Config
	listener net.Listener
	active   int
	mu       sync.Mutex
	wg       sync.WaitGroup
}

// LoadConfig 读取 simulate/simulate.yaml
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read simulate config: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal simulate config: %w", err)
	}
	return &cfg, nil
}

// EnsureDirs 启动时根据 namespace 与 device_name 自动创建目录结构
// simulate/namespace/<ns>/<device_name>
func EnsureDirs(simCfg *Config) error {
	base := filepath.Join("simulate", "namespace")
	dirs := []string{base}
	for ns := range simCfg.Namespace {
		for dev := range simCfg.DeviceName {
			dirs = append(dirs, filepath.Join(base, ns, dev))
		}
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
	}
	return nil
}

// Start 启动所有 namespace 的 TELNET 模拟服务
func Start(simCfg *Config) (*Manager, error) {
	m := &Manager{
		cfg:       simCfg,
		nsServers: make(map[string]*namespaceServer),
	}

	if err := EnsureDirs(simCfg); err != nil {
		logger.Error("Simulate: ensure dirs failed", "error", err)
		return nil, err
	}

	m.launchAll(simCfg)
	return m, nil
}

// launchAll 启动配置中全部 namespace 的监听，单个失败不影响其余
func (m *Manager) launchAll(simCfg *Config) {
	for ns, nsCfg := range simCfg.Namespace {
		srv := &namespaceServer{nsName: ns, cfg: nsCfg, simCfg: simCfg}
		if err := srv.start(); err != nil {
			logger.Error("Simulate: start namespace server failed", "namespace", ns, "port", nsCfg.Port, "error", err)
			continue
		}
		m.nsServers[ns] = srv
		logger.Info("Simulate: namespace server started", "namespace", ns, "port", nsCfg.Port)
	}
}

// stopAll 停止全部监听并清空服务表，调用方持锁
func (m *Manager) stopAll() {
	for ns, srv := range m.nsServers {
		srv.stop()
		logger.Info("Simulate: namespace server stopped", "namespace", ns)
	}
	m.nsServers = make(map[string]*namespaceServer)
}

// Stop 停止所有模拟服务
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopAll()
}

// Reload 以新配置重建所有 namespace 服务
func (m *Manager) Reload(simCfg *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopAll()
	m.cfg = simCfg

	if err := EnsureDirs(simCfg); err != nil {
		return err
	}
	m.launchAll(simCfg)
	return nil
}

func (s *namespaceServer) start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return err
	}
	s.listener = ln
	logger.Debug("Simulate: listener started", "namespace", s.nsName, "port", s.cfg.Port)
	go s.acceptLoop(ln)
	return nil
}

func (s *namespaceServer) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			// listener closed
			return
		}
		logger.Debug("Simulate: accept connection", "namespace", s.nsName, "remote", conn.RemoteAddr().String())
		if !s.admit() {
			_ = conn.Close()
			logger.Warn("Simulate: reject connection, max_conn exceeded", "namespace", s.nsName)
			continue
		}
		s.wg.Add(1)
		go func(c net.Conn) {
			defer s.wg.Done()
			defer s.release()
			s.handleConn(c)
		}(conn)
	}
}

// admit 在 max_conn 限制内登记一条连接，超限返回 false
func (s *namespaceServer) admit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.MaxConn > 0 && s.active >= s.cfg.MaxConn {
		return false
	}
	s.active++
	return true
}

func (s *namespaceServer) release() {
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
}

func (s *namespaceServer) stop() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
}

// session 承载单条 TELNET 连接的协议状态
type session struct {
	conn   net.Conn
	buf    []byte
	width  int
	height int
}

func (s *namespaceServer) handleConn(nc net.Conn) {
	defer nc.Close()

	sess := &session{conn: nc, width: 80, height: 24}

	// 服务端回显与行模式协商，并请求客户端上报窗口尺寸
	sess.write([]byte{telIAC, telWILL, optEcho, telIAC, telWILL, optSGA, telIAC, telDO, optNAWS})

	deviceName, ok := s.login(sess)
	if !ok {
		return
	}
	devType := s.resolveDeviceType(deviceName)
	logger.Debug("Simulate: device resolved", "namespace", s.nsName, "device", deviceName, "prompt_suffix", devType.PromptSuffix)

	s.runShell(sess, deviceName, devType)
}

// login 执行 Username/Password 交互，密码统一为 simPassword，最多允许 3 次失败
func (s *namespaceServer) login(sess *session) (string, bool) {
	for attempt := 0; attempt < 3; attempt++ {
		sess.writeString("Username: ")
		user, err := sess.readLine(60*time.Second, true)
		if err != nil {
			return "", false
		}
		sess.writeString("Password: ")
		pass, err := sess.readLine(60*time.Second, false)
		if err != nil {
			return "", false
		}
		user = strings.TrimSpace(user)
		if user != "" && strings.TrimSpace(pass) == simPassword {
			sess.writeString("\r\n")
			logger.Debug("Simulate: login success", "namespace", s.nsName, "user", user)
			return user, true
		}
		sess.writeString("\r\nLogin incorrect\r\n\r\n")
		logger.Debug("Simulate: login failed", "namespace", s.nsName, "user", user)
	}
	return "", false
}

func (s *namespaceServer) resolveDeviceType(deviceName string) DeviceTypeConfig {
	if dn, ok := s.simCfg.DeviceName[deviceName]; ok {
		if dt, ok := s.simCfg.DeviceType[dn.DeviceType]; ok {
			return dt
		}
	}
	// 默认提示符后缀">"
	return DeviceTypeConfig{PromptSuffix: ">", EnableModeRequired: false, EnableModeSuffix: "#"}
}

func (s *namespaceServer) runShell(sess *session, deviceName string, devType DeviceTypeConfig) {
	currentSuffix := chooseNonEmpty(devType.PromptSuffix, ">")
	pagingOff := false

	printPrompt := func() {
		sess.writeString(fmt.Sprintf("%s%s", deviceName, currentSuffix))
	}
	printPrompt()

	idle := time.Duration(s.cfg.IdleSeconds) * time.Second
	if idle <= 0 {
		idle = 10 * time.Minute
	}

	for {
		line, err := sess.readLine(idle, true)
		if err != nil {
			logger.Debug("Simulate: session closed", "namespace", s.nsName, "device", deviceName, "error", err)
			return
		}
		cmd := strings.TrimSpace(line)
		sess.writeString("\r\n")
		if cmd == "" {
			printPrompt()
			continue
		}
		logger.Debug("Simulate: input", "namespace", s.nsName, "device", deviceName, "cmd", cmd)

		if equalAny(cmd, "exit", "quit", "logout") {
			return
		}

		// 分页关闭命令一律接受并静默生效
		if isDisablePagingCmd(cmd) {
			pagingOff = true
			printPrompt()
			continue
		}

		// enable 提权：统一要求密码 simPassword
		if devType.EnableModeRequired && strings.EqualFold(cmd, "enable") {
			sess.writeString("Password: ")
			pwd, err := sess.readLine(idle, false)
			if err != nil {
				return
			}
			sess.writeString("\r\n")
			if strings.TrimSpace(pwd) != simPassword {
				sess.writeString("Bad secrets\r\n")
			} else {
				currentSuffix = chooseNonEmpty(devType.EnableModeSuffix, "#")
			}
			printPrompt()
			continue
		}

		out, pagingMode := s.lookupCommandOutput(s.nsName, deviceName, cmd)
		if out == "" {
			sess.writeString("% Unknown command\r\n")
			printPrompt()
			continue
		}
		if pagingOff {
			pagingMode = "none"
		}
		sess.writePaged(ensureCRLF(out), pagingMode)
		printPrompt()
	}
}

// lookupCommandOutput 按优先级解析命令回显：
// 1) 数据库 sim_device_commands（namespace + device + command，启用状态）
// 2) simulate/namespace/<ns>/<dev>/<cmd>.txt 文件（含空格转下划线变体）
func (s *namespaceServer) lookupCommandOutput(ns, deviceName, cmd string) (string, string) {
	if db := database.GetDB(); db != nil {
		var rec model.SimDeviceCommand
		err := db.Where("namespace = ? AND device_name = ? AND command = ? AND enabled = ?", ns, deviceName, cmd, true).
			First(&rec).Error
		if err == nil {
			logger.Debug("Simulate: load out (db)", "device", deviceName, "cmd", cmd, "paging", rec.PagingMode)
			return rec.Output, strings.ToLower(strings.TrimSpace(rec.PagingMode))
		}
	}

	base := filepath.Join("simulate", "namespace", ns, deviceName)
	p1 := filepath.Join(base, fmt.Sprintf("%s.txt", cmd))
	if bs, err := os.ReadFile(p1); err == nil {
		logger.Debug("Simulate: load out (direct)", "device", deviceName, "cmd", cmd, "file", p1)
		return string(bs), "none"
	}
	normalized := strings.ReplaceAll(cmd, " ", "_")
	p2 := filepath.Join(base, fmt.Sprintf("%s.txt", normalized))
	if bs, err := os.ReadFile(p2); err == nil {
		logger.Debug("Simulate: load out (normalized)", "device", deviceName, "cmd", cmd, "file", p2)
		return string(bs), "none"
	}
	logger.Debug("Simulate: load out (miss)", "device", deviceName, "cmd", cmd)
	return "", ""
}

// ---- session 读写 ----

func (sess *session) write(b []byte) {
	_, _ = sess.conn.Write(b)
}

func (sess *session) writeString(s string) {
	sess.write([]byte(s))
}

// writePaged 按照分页模式输出：
// none 整段输出；bell 每页末尾发送 BEL 等待按键；banner 每页末尾输出横幅等待按键
// 收到 CTRL+C / ESC / q 时中止剩余输出
func (sess *session) writePaged(out, mode string) {
	if mode != "bell" && mode != "banner" {
		sess.writeString(out)
		return
	}
	page := sess.height - 1
	if page < 4 {
		page = 4
	}
	lines := strings.Split(out, "\r\n")
	for i := 0; i < len(lines); i += page {
		end := i + page
		if end > len(lines) {
			end = len(lines)
		}
		sess.writeString(strings.Join(lines[i:end], "\r\n"))
		if end == len(lines) {
			return
		}
		sess.writeString("\r\n")
		if mode == "bell" {
			sess.write([]byte{telBEL})
		} else {
			sess.writeString(moreBanner)
		}
		key, err := sess.readKey(60 * time.Second)
		if err != nil {
			return
		}
		if mode == "banner" {
			// 擦除横幅行
			sess.writeString("\r" + strings.Repeat(" ", len(moreBanner)) + "\r")
		}
		if key == telETX || key == telESC || key == 'q' || key == 'Q' {
			sess.writeString("\r\n")
			return
		}
	}
}

// readLine 读取一行输入，处理 CR/LF 行尾与 TELNET 控制序列
// echo 为 true 时回写可见字符（服务端回显模式）
func (sess *session) readLine(timeout time.Duration, echo bool) (string, error) {
	var line []byte
	for {
		b, err := sess.nextByte(timeout)
		if err != nil {
			return "", err
		}
		switch b {
		case '\r':
			// CR 后可能跟 LF 或 NUL，交由下一轮 nextByte 吸收
			return string(line), nil
		case '\n':
			return string(line), nil
		case 0x00:
			continue
		case 0x08, 0x7F: // backspace
			if len(line) > 0 {
				line = line[:len(line)-1]
				if echo {
					sess.writeString("\b \b")
				}
			}
		case telETX:
			line = line[:0]
		default:
			if b >= 0x20 {
				line = append(line, b)
				if echo {
					sess.write([]byte{b})
				}
			}
		}
	}
}

// readKey 读取单个按键（跳过 TELNET 命令与行尾噪声字节）
func (sess *session) readKey(timeout time.Duration) (byte, error) {
	for {
		b, err := sess.nextByte(timeout)
		if err != nil {
			return 0, err
		}
		if b == 0x00 || b == '\n' {
			continue
		}
		return b, nil
	}
}

// nextByte 返回下一个数据字节，TELNET 命令在此层被消费：
// DO/DONT/WILL/WONT 按需应答，SB NAWS ... SE 更新窗口尺寸
func (sess *session) nextByte(timeout time.Duration) (byte, error) {
	for {
		b, err := sess.rawByte(timeout)
		if err != nil {
			return 0, err
		}
		if b != telIAC {
			return b, nil
		}
		cmd, err := sess.rawByte(timeout)
		if err != nil {
			return 0, err
		}
		switch cmd {
		case telIAC:
			// 转义的 0xFF 数据字节
			return telIAC, nil
		case telDO, telDONT, telWILL, telWONT:
			opt, err := sess.rawByte(timeout)
			if err != nil {
				return 0, err
			}
			sess.answerOption(cmd, opt)
		case telSB:
			if err := sess.consumeSubnegotiation(timeout); err != nil {
				return 0, err
			}
		default:
			// NOP/BRK 等单字节命令，忽略
		}
	}
}

// answerOption 最小协商应答：自己主动 WILL 的选项接受，其余一律拒绝
func (sess *session) answerOption(cmd, opt byte) {
	switch cmd {
	case telDO:
		if opt != optEcho && opt != optSGA {
			sess.write([]byte{telIAC, telWONT, opt})
		}
	case telWILL:
		if opt != optNAWS {
			sess.write([]byte{telIAC, telDONT, opt})
		}
	}
}

// consumeSubnegotiation 读取 SB ... IAC SE，并解析 NAWS 窗口尺寸
func (sess *session) consumeSubnegotiation(timeout time.Duration) error {
	var payload []byte
	for {
		b, err := sess.rawByte(timeout)
		if err != nil {
			return err
		}
		if b == telIAC {
			nb, err := sess.rawByte(timeout)
			if err != nil {
				return err
			}
			if nb == telSE {
				break
			}
			if nb == telIAC {
				payload = append(payload, telIAC)
				continue
			}
			continue
		}
		payload = append(payload, b)
	}
	if len(payload) == 5 && payload[0] == optNAWS {
		w := int(payload[1])<<8 | int(payload[2])
		h := int(payload[3])<<8 | int(payload[4])
		if w > 0 {
			sess.width = w
		}
		if h > 0 {
			sess.height = h
		}
		logger.Debug("Simulate: NAWS", "width", sess.width, "height", sess.height)
	}
	return nil
}

func (sess *session) rawByte(timeout time.Duration) (byte, error) {
	if len(sess.buf) > 0 {
		b := sess.buf[0]
		sess.buf = sess.buf[1:]
		return b, nil
	}
	if timeout > 0 {
		_ = sess.conn.SetReadDeadline(time.Now().Add(timeout))
	}
	tmp := make([]byte, 512)
	n, err := sess.conn.Read(tmp)
	if err != nil {
		return 0, err
	}
	sess.buf = append(sess.buf, tmp[:n]...)
	b := sess.buf[0]
	sess.buf = sess.buf[1:]
	return b, nil
}

// ---- 工具 ----

// isDisablePagingCmd 识别各平台的分页关闭命令
func isDisablePagingCmd(cmd string) bool {
	c := strings.ToLower(strings.Join(strings.Fields(cmd), " "))
	switch c {
	case "terminal length 0",
		"screen-length 0 temporary",
		"screen-length disable",
		"screen-length 0":
		return true
	}
	return false
}

func ensureCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\n", "\r\n")
	if !strings.HasSuffix(s, "\r\n") {
		s += "\r\n"
	}
	return s
}

func equalAny(s string, opts ...string) bool {
	for _, o := range opts {
		if strings.EqualFold(strings.TrimSpace(s), strings.TrimSpace(o)) {
			return true
		}
	}
	return false
}

func chooseNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
