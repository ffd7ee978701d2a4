package telnet

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// settleDelay 写入凭据前的稳定等待，补偿设备侧输入缓冲延迟
const settleDelay = 50 * time.Millisecond

// 内置认证模式，覆盖常见厂商提示符；均可在 AuthConfig 中逐项覆盖
var (
	// DefaultLoginPattern 登录提示，如 "Username:"、"login:"
	DefaultLoginPattern = regexp.MustCompile(`(?i)(login|username)[: ]*$`)
	// DefaultPasswordPattern 密码提示，如 "Password:"
	DefaultPasswordPattern = regexp.MustCompile(`(?i)password[: ]*$`)
	// DefaultFailurePattern 认证失败横幅，如 "Login incorrect"、"Authentication failed"
	DefaultFailurePattern = regexp.MustCompile(`(?i)(incorrect|fail)`)
	// DefaultPromptPattern 空闲提示符，行尾 '>' 或 '#'
	// 同时作为认证成功模式与命令完成模式的默认值
	DefaultPromptPattern = regexp.MustCompile(`[>#]\s*$`)
)

// AuthConfig 认证配置
// Login 与 Password 必填；四个模式为空时使用内置默认值
type AuthConfig struct {
	Login       string        `json:"login"`
	Password    string        `json:"password"`
	AuthTimeout time.Duration `json:"auth_timeout"` // 整体握手预算，默认 7.5s

	LoginPattern    *regexp.Regexp `json:"-"`
	PasswordPattern *regexp.Regexp `json:"-"`
	FailurePattern  *regexp.Regexp `json:"-"`
	SuccessPattern  *regexp.Regexp `json:"-"`
}

// Auth 执行登录握手：等登录提示→写用户名→等密码提示→写密码→校验成功提示
// 严格串行，单步读取以 AuthTimeout/2 为界，整体以 AuthTimeout 为界；
// 失败横幅先于成功模式检查，失败横幅与成功提示同帧到达时以失败为准。
// 凭据为空时同步返回 ErrCredentialsRequired，不发起任何 I/O
func (s *Session) Auth(auth *AuthConfig) error {
	if auth == nil || strings.TrimSpace(auth.Login) == "" || strings.TrimSpace(auth.Password) == "" {
		return fmt.Errorf("%w: login and password must be non-empty", ErrCredentialsRequired)
	}

	total := auth.AuthTimeout
	if total <= 0 {
		total = DefaultAuthTimeout
	}
	loginPat := auth.LoginPattern
	if loginPat == nil {
		loginPat = DefaultLoginPattern
	}
	passwordPat := auth.PasswordPattern
	if passwordPat == nil {
		passwordPat = DefaultPasswordPattern
	}
	failurePat := auth.FailurePattern
	if failurePat == nil {
		failurePat = DefaultFailurePattern
	}
	successPat := auth.SuccessPattern
	if successPat == nil {
		successPat = DefaultPromptPattern
	}

	if err := s.Connect(); err != nil {
		return err
	}

	deadline := time.Now().Add(total)
	half := total / 2

	// 第一步：等待登录提示
	budget := stepBudget(deadline, half)
	if budget <= 0 {
		return fmt.Errorf("%w: budget exhausted before login prompt", ErrAuthTimeout)
	}
	_, matched, err := s.readUntil(loginPat, budget)
	if err != nil {
		return err
	}
	if !matched {
		return fmt.Errorf("%w: login prompt not found", ErrAuthFailed)
	}

	// 第二步：稳定等待后写入用户名
	time.Sleep(settleDelay)
	if time.Until(deadline) <= 0 {
		return fmt.Errorf("%w: budget exhausted before sending login", ErrAuthTimeout)
	}
	if err := s.writeLine(auth.Login); err != nil {
		return err
	}

	// 第三步：等待密码提示
	budget = stepBudget(deadline, half)
	if budget <= 0 {
		return fmt.Errorf("%w: budget exhausted before password prompt", ErrAuthTimeout)
	}
	_, matched, err = s.readUntil(passwordPat, budget)
	if err != nil {
		return err
	}
	if !matched {
		return fmt.Errorf("%w: password prompt not found", ErrAuthFailed)
	}

	// 第四步：稳定等待后写入密码
	time.Sleep(settleDelay)
	if time.Until(deadline) <= 0 {
		return fmt.Errorf("%w: budget exhausted before sending password", ErrAuthTimeout)
	}
	if err := s.writeLine(auth.Password); err != nil {
		return err
	}

	// 第五步：在剩余预算内等待成功提示
	budget = time.Until(deadline)
	if budget <= 0 {
		return fmt.Errorf("%w: budget exhausted before prompt validation", ErrAuthTimeout)
	}
	text, matched, err := s.readUntil(successPat, budget)
	if err != nil {
		return err
	}
	if failurePat.MatchString(text) {
		return fmt.Errorf("%w: device rejected credentials", ErrInvalidCredentials)
	}
	if !matched {
		return fmt.Errorf("%w: success pattern not matched after credential exchange", ErrPromptNotValidated)
	}
	s.debugf("authentication succeeded for %s", auth.Login)
	return nil
}

// stepBudget 单步读取预算：半程上限与剩余整体预算取小
func stepBudget(deadline time.Time, half time.Duration) time.Duration {
	remaining := time.Until(deadline)
	if remaining < half {
		return remaining
	}
	return half
}
