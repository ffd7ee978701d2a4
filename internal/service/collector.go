package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/telnetcollectorpro/telnetcollectorpro/addone/collect"
	"github.com/telnetcollectorpro/telnetcollectorpro/addone/interact"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/config"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/database"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/model"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/util"
	"github.com/telnetcollectorpro/telnetcollectorpro/pkg/logger"
	"github.com/telnetcollectorpro/telnetcollectorpro/pkg/ssh"
	"github.com/telnetcollectorpro/telnetcollectorpro/pkg/telnet"
)

const (
	// taskSweepInterval 任务上下文清理周期
	taskSweepInterval = time.Minute
	// taskRetention 任务上下文最长保留时间
	taskRetention = time.Hour

	taskDBRetries    = 3
	taskDBRetryDelay = 50 * time.Millisecond
)

// CollectorService 采集器服务
type CollectorService struct {
	config  *config.Config
	mutex   sync.RWMutex
	running bool
	tasks   map[string]*TaskContext
	workers chan struct{}
	sshPool *ssh.Pool

	// 累计任务计数，注册服务心跳上报使用
	tasksSuccess atomic.Int64
	tasksFailure atomic.Int64
}

// TaskContext 任务上下文
type TaskContext struct {
	Task      *model.Task
	Cancel    context.CancelFunc
	StartTime time.Time
	Status    string
}

// CollectRequest 采集请求
type CollectRequest struct {
	TaskID          string                 `json:"task_id"`
	TaskName        string                 `json:"task_name,omitempty"`
	CollectOrigin   string                 `json:"collect_origin,omitempty"` // system | customer
	DeviceIP        string                 `json:"device_ip"`
	DeviceName      string                 `json:"device_name,omitempty"`
	DevicePlatform  string                 `json:"device_platform,omitempty"`
	CollectProtocol string                 `json:"collect_protocol,omitempty"` // telnet | ssh
	Port            int                    `json:"port,omitempty"`
	UserName        string                 `json:"user_name"`
	Password        string                 `json:"password"`
	CliList         []string               `json:"cli_list"`
	RetryFlag       *int                   `json:"retry_flag,omitempty"`
	Timeout         *int                   `json:"timeout,omitempty"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// CollectResponse 采集响应
type CollectResponse struct {
	TaskID     string                 `json:"task_id"`
	Success    bool                   `json:"success"`
	Results    []*CommandResultView   `json:"results"`
	Error      string                 `json:"error"`
	Duration   time.Duration          `json:"duration"`
	DurationMS int64                  `json:"duration_ms"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// CommandResultView 对外输出的命令结果
type CommandResultView struct {
	Command    string                 `json:"command"`
	RawOutput  string                 `json:"raw_output"`
	Error      string                 `json:"error"`
	ExitCode   int                    `json:"exit_code"`
	DurationMS int64                  `json:"duration_ms"`
	Parsed     []collect.FormattedRow `json:"parsed,omitempty"` // system 来源时的结构化解析结果
}

// execResult 协议层返回的单条命令结果（telnet 与 ssh 路径共用）
type execResult struct {
	Command    string
	Output     string
	Error      string
	ExitCode   int
	DurationMS int64
}

// platformInteractDefaults 平台内置交互默认值
type platformInteractDefaults struct {
	Timeout           int // 秒
	Retries           int
	PromptPattern     string
	LoginPrompt       string
	PasswordPrompt    string
	FailurePattern    string
	DisablePagingCmds []string
	PageHeight        int
	ErrorHints        []string
	CommandIntervalMS int
}

// getPlatformDefaults 返回平台内置交互默认值，并用配置（collector.device_defaults）覆盖。
// 内置默认由 addone/interact 插件注册中心提供（含厂商家族回退）。
func getPlatformDefaults(platform string) platformInteractDefaults {
	p := strings.TrimSpace(strings.ToLower(platform))

	d := interact.Get(p).Defaults()
	base := platformInteractDefaults{
		Timeout:           d.Timeout,
		Retries:           d.Retries,
		PromptPattern:     d.PromptPattern,
		LoginPrompt:       d.LoginPrompt,
		PasswordPrompt:    d.PasswordPrompt,
		FailurePattern:    d.FailurePattern,
		DisablePagingCmds: d.DisablePagingCmds,
		PageHeight:        d.PageHeight,
		ErrorHints:        d.ErrorHints,
		CommandIntervalMS: d.CommandIntervalMS,
	}

	// 再从配置进行覆盖（collector.device_defaults）
	if cfg := config.Get(); cfg != nil {
		if dd, ok := lookupDeviceDefaults(cfg, p); ok {
			if strings.TrimSpace(dd.PromptPattern) != "" {
				base.PromptPattern = dd.PromptPattern
			}
			if strings.TrimSpace(dd.LoginPrompt) != "" {
				base.LoginPrompt = dd.LoginPrompt
			}
			if strings.TrimSpace(dd.PasswordPrompt) != "" {
				base.PasswordPrompt = dd.PasswordPrompt
			}
			if strings.TrimSpace(dd.FailurePattern) != "" {
				base.FailurePattern = dd.FailurePattern
			}
			if len(dd.DisablePagingCmds) > 0 {
				base.DisablePagingCmds = dd.DisablePagingCmds
			}
			if dd.PageHeight > 0 {
				base.PageHeight = dd.PageHeight
			}
			if len(dd.ErrorHints) > 0 {
				base.ErrorHints = dd.ErrorHints
			}
			if dd.Timeout.TimeoutAll >= time.Second {
				base.Timeout = int(dd.Timeout.TimeoutAll / time.Second)
			}
		}
	}

	return base
}

// lookupDeviceDefaults 按平台键查找设备默认配置，未命中时按厂商家族回退
func lookupDeviceDefaults(cfg *config.Config, platform string) (config.PlatformDefaultsConfig, bool) {
	p := strings.TrimSpace(strings.ToLower(platform))
	if dd, ok := cfg.Collector.DeviceDefaults[p]; ok {
		return dd, true
	}
	if strings.HasPrefix(p, "huawei") {
		if dd, ok := cfg.Collector.DeviceDefaults["huawei"]; ok {
			return dd, true
		}
	}
	if strings.HasPrefix(p, "h3c") {
		if dd, ok := cfg.Collector.DeviceDefaults["h3c"]; ok {
			return dd, true
		}
	}
	if strings.HasPrefix(p, "cisco") {
		if dd, ok := cfg.Collector.DeviceDefaults["cisco_ios"]; ok {
			return dd, true
		}
	}
	return config.PlatformDefaultsConfig{}, false
}

// NewCollectorService 创建采集器服务
func NewCollectorService(cfg *config.Config) *CollectorService {
	concurrent := cfg.Collector.Concurrent
	if concurrent <= 0 {
		concurrent = 8
	}
	return &CollectorService{
		config:  cfg,
		tasks:   make(map[string]*TaskContext),
		workers: make(chan struct{}, concurrent),
		sshPool: ssh.NewPool(&ssh.PoolConfig{
			MaxIdle:     concurrent,
			MaxActive:   concurrent * 2,
			IdleTimeout: 5 * time.Minute,
			SSHConfig: &ssh.Config{
				Timeout:        cfg.SSH.Timeout,
				ConnectTimeout: cfg.SSH.ConnectTimeout,
				KeepAlive:      cfg.SSH.KeepAliveInterval,
				MaxSessions:    cfg.SSH.MaxSessions,
			},
		}),
	}
}

// Start 启动采集器服务并拉起任务上下文清理协程
func (s *CollectorService) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return fmt.Errorf("collector service is already running")
	}
	s.running = true
	go s.cleanupTasks(ctx)

	logger.Info("Collector service started")
	return nil
}

// Stop 停止采集器服务，取消在途任务并释放备用协议连接池
func (s *CollectorService) Stop() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	for _, taskCtx := range s.tasks {
		if taskCtx.Cancel != nil {
			taskCtx.Cancel()
		}
	}
	if s.sshPool != nil {
		_ = s.sshPool.Close()
	}

	logger.Info("Collector service stopped")
	return nil
}

// ExecuteTask 执行采集任务
func (s *CollectorService) ExecuteTask(ctx context.Context, request *CollectRequest) (*CollectResponse, error) {
	if !s.running {
		return nil, fmt.Errorf("collector service is not running")
	}

	// 在进入工作协程前先解析平台默认与有效超时/重试，用于队列等待控制
	platform := strings.TrimSpace(strings.ToLower(request.DevicePlatform))
	if platform == "" {
		platform = "default"
	}
	// 默认协议为 telnet
	proto := strings.TrimSpace(strings.ToLower(request.CollectProtocol))
	if proto == "" {
		proto = "telnet"
	}
	request.CollectProtocol = proto
	if proto != "telnet" && proto != "ssh" {
		return nil, fmt.Errorf("unsupported collect_protocol: %s", request.CollectProtocol)
	}

	// system 来源且未显式给出命令时，使用平台采集插件的内置命令清单
	if strings.EqualFold(strings.TrimSpace(request.CollectOrigin), "system") && len(request.CliList) == 0 {
		request.CliList = collect.Get(platform).SystemCommands()
	}

	interactDefaults := getPlatformDefaults(platform)
	// 计算有效超时与重试（用于队列等待与任务上下文）
	effTimeout := 30
	if request.Timeout != nil && *request.Timeout > 0 {
		effTimeout = *request.Timeout
	} else if interactDefaults.Timeout > 0 {
		effTimeout = interactDefaults.Timeout
	}
	effRetries := 0
	if request.RetryFlag != nil && *request.RetryFlag >= 0 {
		effRetries = *request.RetryFlag
	} else if interactDefaults.Retries > 0 {
		effRetries = interactDefaults.Retries
	}

	// 获取工作协程：使用基于有效超时的内部等待上下文，避免HTTP上下文过早结束
	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Duration(effTimeout)*time.Second)
	defer waitCancel()
	select {
	case s.workers <- struct{}{}:
		defer func() { <-s.workers }()
	case <-waitCtx.Done():
		return nil, fmt.Errorf("task queue wait timeout after %ds: %w", effTimeout, waitCtx.Err())
	}

	startTime := time.Now()
	response := &CollectResponse{
		TaskID:    request.TaskID,
		Timestamp: startTime,
		Metadata:  request.Metadata,
	}

	// 构造命令清单：以平台配置为依据注入分页关闭预命令，再追加用户命令
	// 注：路由层不注入任何平台默认命令，服务层负责按设备平台动态插入
	commands := make([]string, 0, len(request.CliList)+4)
	pre := s.getPreCommands(platform, request.CliList)
	if len(pre) > 0 {
		commands = append(commands, pre...)
	}
	if len(request.CliList) > 0 {
		commands = append(commands, request.CliList...)
	}
	// 命令为空：允许继续（将返回空结果）

	logger.Info("Prepared command queue", "task_id", request.TaskID, "platform", request.DevicePlatform, "protocol", proto, "commands", strings.Join(commands, ";"))

	// 创建任务记录，端口默认按协议取 23/22
	port := request.Port
	if port <= 0 || port > 65535 {
		if proto == "ssh" {
			port = 22
		} else {
			port = 23
		}
	}

	task := &model.Task{
		ID:          request.TaskID,
		CollectorID: s.config.Collector.ID,
		Type:        model.TaskTypeSimple,
		Protocol:    proto,
		DeviceIP:    request.DeviceIP,
		DevicePort:  port,
		Username:    request.UserName,
		Password:    request.Password,
		Commands:    strings.Join(commands, ";"),
		Status:      model.TaskStatusRunning,
		StartTime:   startTime,
		CreatedAt:   startTime,
		UpdatedAt:   startTime,
	}

	// 保存任务到数据库
	if err := s.saveTask(task); err != nil {
		logger.Error("Failed to save task", "task_id", request.TaskID, "error", err)
	}

	// 创建任务上下文
	taskCtx, cancel := context.WithTimeout(ctx, time.Duration(effTimeout)*time.Second)
	defer cancel()

	s.addTaskContext(request.TaskID, &TaskContext{
		Task:      task,
		Cancel:    cancel,
		StartTime: startTime,
		Status:    "running",
	})
	defer s.removeTaskContext(request.TaskID)

	// 执行设备采集
	execStart := time.Now()
	var raw []*execResult
	var err error
	if proto == "ssh" {
		raw, err = s.executeSSHCollection(taskCtx, request, port, commands, effRetries)
	} else {
		raw, err = s.executeTelnetCollection(taskCtx, request, port, commands, effRetries, interactDefaults, effTimeout)
	}
	response.Duration = time.Since(execStart)
	response.DurationMS = response.Duration.Milliseconds()

	if err != nil {
		response.Success = false
		response.Error = err.Error()
		task.Fail(err.Error())
		s.tasksFailure.Add(1)

		s.logTaskError(request.TaskID, err.Error())
	} else {
		results := s.buildResultViews(request, platform, interactDefaults, raw)
		response.Success = true
		response.Results = results

		// 序列化结果
		serialized := ""
		if resultData, jerr := json.Marshal(results); jerr == nil {
			serialized = string(resultData)
		}
		task.Succeed(serialized)
		s.tasksSuccess.Add(1)
	}

	// 更新任务状态（以毫秒记录执行时长）
	task.Finish(response.Duration)
	if err := s.updateTask(task); err != nil {
		logger.Error("Failed to update task", "task_id", request.TaskID, "error", err)
	}

	return response, nil
}

// executeTelnetCollection 单次登录执行整批命令（TELNET）
// 连接/认证失败按 retries 进行有限次重连重试；命令读取超时不触发重试
func (s *CollectorService) executeTelnetCollection(ctx context.Context, request *CollectRequest, port int, commands []string, retries int, defaults platformInteractDefaults, timeoutSec int) ([]*execResult, error) {
	s.logTaskInfo(request.TaskID, fmt.Sprintf("Starting TELNET collection for %s:%d", request.DeviceIP, port))

	promptPat, err := compileOrNil(defaults.PromptPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid prompt_pattern for platform %s: %w", request.DevicePlatform, err)
	}
	loginPat, err := compileOrNil(defaults.LoginPrompt)
	if err != nil {
		return nil, fmt.Errorf("invalid login_prompt for platform %s: %w", request.DevicePlatform, err)
	}
	passwordPat, err := compileOrNil(defaults.PasswordPrompt)
	if err != nil {
		return nil, fmt.Errorf("invalid password_prompt for platform %s: %w", request.DevicePlatform, err)
	}
	failurePat, err := compileOrNil(defaults.FailurePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid failure_pattern for platform %s: %w", request.DevicePlatform, err)
	}

	connectTimeout := s.config.Telnet.ConnectTimeout
	authTimeout := s.config.Telnet.AuthTimeout
	readTimeout := s.config.Telnet.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}

	authCfg := &telnet.AuthConfig{
		Login:           request.UserName,
		Password:        request.Password,
		AuthTimeout:     authTimeout,
		LoginPattern:    loginPat,
		PasswordPattern: passwordPat,
		FailurePattern:  failurePat,
		SuccessPattern:  promptPat,
	}

	var session *telnet.Session
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		session = telnet.NewSession(telnet.Config{
			Host:           request.DeviceIP,
			Port:           port,
			ConnectTimeout: connectTimeout,
			Debug: func(format string, args ...interface{}) {
				if s.config.Telnet.Debug {
					logger.Debugf("telnet[%s] "+format, append([]interface{}{request.TaskID}, args...)...)
				}
			},
		})
		lastErr = session.Auth(authCfg)
		if lastErr == nil {
			break
		}
		session.Disconnect()
		// 凭据类错误重试无意义，立即返回
		if errors.Is(lastErr, telnet.ErrCredentialsRequired) || errors.Is(lastErr, telnet.ErrInvalidCredentials) {
			return nil, lastErr
		}
		s.logTaskWarn(request.TaskID, fmt.Sprintf("telnet attempt %d/%d failed: %v", attempt+1, retries+1, lastErr))
		// 短暂退避，避免设备端限流
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	defer session.Disconnect()

	deadline := time.Now().Add(time.Duration(timeoutSec) * time.Second)
	interval := time.Duration(defaults.CommandIntervalMS) * time.Millisecond

	results := make([]*execResult, 0, len(commands))
	for i, cmd := range commands {
		if ctx.Err() != nil {
			break
		}
		if i > 0 && interval > 0 {
			time.Sleep(interval)
		}

		budget := readTimeout
		if remaining := time.Until(deadline); remaining < budget {
			budget = remaining
		}
		if budget <= 0 {
			results = append(results, &execResult{Command: cmd, Error: "task time budget exhausted", ExitCode: -1})
			continue
		}

		start := time.Now()
		output, execErr := session.ExecuteWithOptions(cmd, &telnet.ExecOptions{
			Pattern:    promptPat,
			Timeout:    budget,
			PageHeight: defaults.PageHeight,
		})
		res := &execResult{
			Command:    cmd,
			Output:     util.EnsureUTF8(output),
			DurationMS: time.Since(start).Milliseconds(),
		}
		if execErr != nil {
			res.Error = execErr.Error()
			res.ExitCode = -1
			s.logTaskError(request.TaskID, fmt.Sprintf("command '%s' failed: %v", cmd, execErr))
			results = append(results, res)
			if errors.Is(execErr, telnet.ErrTransport) || errors.Is(execErr, telnet.ErrSessionClosed) {
				// 连接已不可用，放弃剩余命令
				break
			}
			continue
		}
		logger.DebugCommandOutput(cmd, res.Output, 5)
		results = append(results, res)
	}

	s.logTaskInfo(request.TaskID, fmt.Sprintf("TELNET collection completed, executed %d commands", len(results)))
	return results, nil
}

// buildResultViews 过滤内部预命令、移除分页提示并检测错误提示
func (s *CollectorService) buildResultViews(request *CollectRequest, platform string, defaults platformInteractDefaults, raw []*execResult) []*CommandResultView {
	// 内部预命令不体现在最终结果中
	internalCmds := map[string]struct{}{}
	for _, pc := range defaults.DisablePagingCmds {
		if strings.TrimSpace(pc) == "" {
			continue
		}
		// 用户显式请求的命令不算内部命令
		requested := false
		for _, c := range request.CliList {
			if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(pc)) {
				requested = true
				break
			}
		}
		if !requested {
			internalCmds[strings.ToLower(strings.TrimSpace(pc))] = struct{}{}
		}
	}

	collectMode := strings.ToLower(strings.TrimSpace(fmt.Sprintf("%v", request.Metadata["collect_mode"])))
	if collectMode == "" || collectMode == "<nil>" {
		collectMode = "customer"
	}

	out := make([]*CommandResultView, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		if _, isInternal := internalCmds[strings.ToLower(strings.TrimSpace(r.Command))]; isInternal {
			continue
		}

		view := &CommandResultView{
			Command:    r.Command,
			RawOutput:  s.stripPagerPrompts(r.Output),
			Error:      r.Error,
			ExitCode:   r.ExitCode,
			DurationMS: r.DurationMS,
		}
		// 错误提示检测：当输出行以提示前缀开头时标记错误（customer 模式不做推断）
		if view.Error == "" && collectMode != "customer" {
			if hint := s.detectErrorHint(view.RawOutput, defaults.ErrorHints); hint != "" {
				view.Error = hint
			}
		}
		// system 来源时追加平台插件的结构化解析
		if strings.EqualFold(strings.TrimSpace(request.CollectOrigin), "system") || collectMode == "system" {
			status := collect.TaskStatusSuccess
			if view.Error != "" {
				status = collect.TaskStatusFailed
			}
			pctx := collect.ParseContext{
				Platform: platform,
				Command:  r.Command,
				TaskID:   request.TaskID,
				Status:   status,
			}
			if po, perr := collect.Get(platform).Parse(pctx, view.RawOutput); perr == nil && len(po.Rows) > 0 {
				view.Parsed = po.Rows
			}
		}
		out = append(out, view)
	}
	return out
}

// stripPagerPrompts 根据配置移除原始输出中的分页提示等行
func (s *CollectorService) stripPagerPrompts(src string) string {
	if src == "" {
		return src
	}
	of := s.config.Collector.OutputFilter
	normalize := func(x string, trim, ci bool) string {
		if trim {
			x = strings.TrimSpace(x)
		}
		if ci {
			x = strings.ToLower(x)
		}
		return x
	}
	pref := make([]string, 0, len(of.Prefixes))
	for _, p := range of.Prefixes {
		pref = append(pref, normalize(p, true, of.CaseInsensitive))
	}
	subs := make([]string, 0, len(of.Contains))
	for _, c := range of.Contains {
		subs = append(subs, normalize(c, true, of.CaseInsensitive))
	}

	lines := strings.Split(src, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		cmp := normalize(line, of.TrimSpace, of.CaseInsensitive)
		matched := false
		for _, p := range pref {
			if p != "" && strings.HasPrefix(cmp, p) {
				matched = true
				break
			}
		}
		if !matched {
			for _, c := range subs {
				if c != "" && strings.Contains(cmp, c) {
					matched = true
					break
				}
			}
		}
		if matched {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// detectErrorHint 合并配置与平台默认错误提示，按行前缀匹配
func (s *CollectorService) detectErrorHint(output string, platformHints []string) string {
	ic := s.config.Collector.Interact
	merged := make([]string, 0, len(ic.ErrorHints)+len(platformHints))
	merged = append(merged, ic.ErrorHints...)
	seen := map[string]struct{}{}
	for _, h := range merged {
		seen[h] = struct{}{}
	}
	for _, h := range platformHints {
		if _, ok := seen[h]; !ok {
			merged = append(merged, h)
			seen[h] = struct{}{}
		}
	}
	if len(merged) == 0 {
		return ""
	}

	for _, ln := range strings.Split(output, "\n") {
		t := ln
		if ic.TrimSpace {
			t = strings.TrimSpace(t)
		}
		cmp := t
		if ic.CaseInsensitive {
			cmp = strings.ToLower(cmp)
		}
		for _, h := range merged {
			hh := h
			if ic.TrimSpace {
				hh = strings.TrimSpace(hh)
			}
			if ic.CaseInsensitive {
				hh = strings.ToLower(hh)
			}
			if hh != "" && strings.HasPrefix(cmp, hh) {
				return fmt.Sprintf("command error hint matched: %s", t)
			}
		}
	}
	return ""
}

// getPreCommands 生成平台预命令（分页关闭，避免与用户命令重复）
func (s *CollectorService) getPreCommands(platform string, user []string) []string {
	out := make([]string, 0, 4)
	defaults := getPlatformDefaults(platform)
	has := func(cmd string) bool {
		key := strings.ToLower(strings.TrimSpace(cmd))
		for _, c := range user {
			if strings.ToLower(strings.TrimSpace(c)) == key {
				return true
			}
		}
		return false
	}
	for _, pc := range defaults.DisablePagingCmds {
		if strings.TrimSpace(pc) == "" {
			continue
		}
		if !has(pc) {
			out = append(out, pc)
		}
	}
	return out
}

// compileOrNil 编译可选正则，空串返回 nil（由引擎使用内置默认）
func compileOrNil(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

// GetTaskStatus 获取任务状态
func (s *CollectorService) GetTaskStatus(taskID string) (*TaskContext, error) {
	s.mutex.RLock()
	taskCtx := s.tasks[taskID]
	s.mutex.RUnlock()

	if taskCtx == nil {
		return nil, fmt.Errorf("task not found: %s", taskID)
	}
	return taskCtx, nil
}

// CancelTask 取消任务
func (s *CollectorService) CancelTask(taskID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	taskCtx := s.tasks[taskID]
	if taskCtx == nil {
		return fmt.Errorf("task not found: %s", taskID)
	}
	if taskCtx.Cancel != nil {
		taskCtx.Cancel()
		taskCtx.Status = "cancelled"
	}
	return nil
}

// GetStats 获取采集器统计信息
func (s *CollectorService) GetStats() map[string]interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats := map[string]interface{}{
		"running":       s.running,
		"active_tasks":  len(s.tasks),
		"max_workers":   cap(s.workers),
		"busy_workers":  len(s.workers),
		"tasks_success": s.tasksSuccess.Load(),
		"tasks_failure": s.tasksFailure.Load(),
	}
	if s.sshPool != nil {
		stats["ssh_pool"] = s.sshPool.Stats()
	}

	return stats
}

func (s *CollectorService) addTaskContext(taskID string, taskCtx *TaskContext) {
	s.mutex.Lock()
	s.tasks[taskID] = taskCtx
	s.mutex.Unlock()
}

func (s *CollectorService) removeTaskContext(taskID string) {
	s.mutex.Lock()
	delete(s.tasks, taskID)
	s.mutex.Unlock()
}

// cleanupTasks 周期清理滞留的任务上下文
func (s *CollectorService) cleanupTasks(ctx context.Context) {
	ticker := time.NewTicker(taskSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupExpiredTasks()
		}
	}
}

// cleanupExpiredTasks 移除超过保留时长的任务上下文
func (s *CollectorService) cleanupExpiredTasks() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cutoff := time.Now().Add(-taskRetention)
	for taskID, taskCtx := range s.tasks {
		if taskCtx.StartTime.Before(cutoff) {
			delete(s.tasks, taskID)
		}
	}
}

// saveTask 保存任务到数据库
// 主键已存在时走 upsert，重试任务不会因重复ID插入失败
func (s *CollectorService) saveTask(task *model.Task) error {
	return database.WithRetry(func(db *gorm.DB) error {
		return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(task).Error
	}, taskDBRetries, taskDBRetryDelay)
}

// updateTask 更新任务状态
func (s *CollectorService) updateTask(task *model.Task) error {
	return database.WithRetry(func(db *gorm.DB) error {
		return db.Save(task).Error
	}, taskDBRetries, taskDBRetryDelay)
}

// logTaskInfo 任务过程日志，同时写应用日志与任务日志表
func (s *CollectorService) logTaskInfo(taskID, message string) {
	logger.Info("Task info", "task_id", taskID, "message", message)
	s.saveTaskLog(taskID, "INFO", message)
}

func (s *CollectorService) logTaskError(taskID, message string) {
	logger.Error("Task error", "task_id", taskID, "message", message)
	s.saveTaskLog(taskID, "ERROR", message)
}

func (s *CollectorService) logTaskWarn(taskID, message string) {
	logger.Warn("Task warn", "task_id", taskID, "message", message)
	s.saveTaskLog(taskID, "WARN", message)
}

// saveTaskLog 保存任务日志，数据库未初始化时丢弃
func (s *CollectorService) saveTaskLog(taskID, level, message string) {
	db := database.GetDB()
	if db == nil {
		return
	}
	taskLog := &model.TaskLog{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Level:     level,
		Message:   message,
		CreatedAt: time.Now(),
	}

	if err := db.Create(taskLog).Error; err != nil {
		logger.Error("Failed to save task log", "task_id", taskID, "error", err)
	}
}
