package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/telnetcollectorpro/telnetcollectorpro/internal/config"
)

// DeployService 提供设备配置快速下发与前后状态采集能力。
// 下发与状态采集均复用 CollectorService 的会话执行链路。
type DeployService struct {
	cfg       *config.Config
	collector *CollectorService
}

func NewDeployService(cfg *config.Config, collector *CollectorService) *DeployService {
	return &DeployService{cfg: cfg, collector: collector}
}

func (s *DeployService) Start(ctx context.Context) error { return nil }
func (s *DeployService) Stop() error                     { return nil }

// DeployFastRequest 快速下发请求
type DeployFastRequest struct {
	TaskID            string         `json:"task_id"`
	TaskName          string         `json:"task_name"`
	RetryFlag         int            `json:"retry_flag"`
	TaskType          string         `json:"task_type"` // exec/dry_run
	Timeout           int            `json:"timeout"`
	StatusCheckEnable int            `json:"status_check_enable"` // 1 开启/0 关闭
	Devices           []DeployDevice `json:"devices"`
}

// DeployDevice 单设备下发参数
type DeployDevice struct {
	DeviceIP        string   `json:"device_ip"`
	DevicePort      int      `json:"device_port"`
	DeviceName      string   `json:"device_name"`
	DevicePlatform  string   `json:"device_platform"`
	CollectProtocol string   `json:"collect_protocol"`
	UserName        string   `json:"user_name"`
	Password        string   `json:"password"`
	StatusCheckList []string `json:"status_check_list"`
	ConfigDeploy    string   `json:"config_deploy"`
}

// DeployFastResponse 返回每台设备的状态与下发结果
type DeployFastResponse struct {
	TaskID   string               `json:"task_id"`
	TaskName string               `json:"task_name"`
	Results  []DeployDeviceResult `json:"results"`
	Duration string               `json:"duration"`
}

// DeployDeviceResult 单设备结果
type DeployDeviceResult struct {
	DeviceIP             string            `json:"device_ip"`
	DeviceName           string            `json:"device_name"`
	DevicePlatform       string            `json:"device_platform"`
	DeviceStatusBefore   map[string]string `json:"device_status_before,omitempty"`
	DeviceStatusAfter    map[string]string `json:"device_status_after,omitempty"`
	DeployLogExec        []CommandResult   `json:"deploy_log_exec"`
	DeployLogsAggregated []CommandResult   `json:"deploy_logs_aggregated,omitempty"`
	Error                string            `json:"error,omitempty"`
}

// CommandResult 记录每条命令执行的输出
type CommandResult struct {
	Command  string `json:"command"`
	Output   string `json:"output"`
	Error    string `json:"error"`
	Elapsed  string `json:"elapsed"`
	ExitCode int    `json:"exit_code"`
}

// 规范化字符串：trim + toLower
func canonical(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// ExecuteFast 逐台下发配置。顺序执行而非并发，避免批量配置推送互相踩踏。
func (s *DeployService) ExecuteFast(ctx context.Context, req *DeployFastRequest) (*DeployFastResponse, error) {
	start := time.Now()
	resp := &DeployFastResponse{Results: []DeployDeviceResult{}}
	if req != nil {
		resp.TaskID = req.TaskID
		resp.TaskName = req.TaskName
	}
	if req == nil || len(req.Devices) == 0 {
		resp.Duration = time.Since(start).String()
		return resp, nil
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 15
	}

	for _, d := range req.Devices {
		r := DeployDeviceResult{
			DeviceIP:             d.DeviceIP,
			DeviceName:           d.DeviceName,
			DevicePlatform:       d.DevicePlatform,
			DeviceStatusBefore:   map[string]string{},
			DeviceStatusAfter:    map[string]string{},
			DeployLogExec:        []CommandResult{},
			DeployLogsAggregated: []CommandResult{},
		}

		// 下发前状态
		if req.StatusCheckEnable == 1 && len(d.StatusCheckList) > 0 {
			s.collectStatus(ctx, req, &d, timeout, "pre", r.DeviceStatusBefore)
			s.deployWait()
		}

		// 下发配置（支持 dry_run）
		if strings.TrimSpace(req.TaskType) != "dry_run" {
			userCmds := s.buildDeploySequence(d.DevicePlatform, d.ConfigDeploy)
			if len(userCmds) > 0 {
				logs, err := s.pushConfig(ctx, req, &d, timeout, userCmds)
				if err != nil {
					r.Error = err.Error()
				}
				r.DeployLogExec = logs
				r.DeployLogsAggregated = []CommandResult{aggregateDeployLogs(userCmds, logs)}
				s.deployWait()
			}
		}

		// 下发后状态
		if req.StatusCheckEnable == 1 && len(d.StatusCheckList) > 0 {
			s.collectStatus(ctx, req, &d, timeout, "post", r.DeviceStatusAfter)
		}

		resp.Results = append(resp.Results, r)
	}

	resp.Duration = time.Since(start).String()
	return resp, nil
}

// deployWait 下发/采集之间的静默等待
func (s *DeployService) deployWait() {
	wait := s.cfg.Deploy.DeployWaitMS
	if wait <= 0 {
		wait = 2000
	}
	time.Sleep(time.Duration(wait) * time.Millisecond)
}

// collectStatus 通过 CollectorService 采集状态命令，结果按命令写入 dst
func (s *DeployService) collectStatus(ctx context.Context, req *DeployFastRequest, d *DeployDevice, timeout int, phase string, dst map[string]string) {
	if s.collector == nil {
		return
	}
	rf := req.RetryFlag
	t := timeout
	creq := &CollectRequest{
		TaskID:          fmt.Sprintf("%s-%s-%s", req.TaskID, phase, d.DeviceIP),
		TaskName:        req.TaskName,
		CollectOrigin:   "customer",
		DeviceIP:        d.DeviceIP,
		DeviceName:      d.DeviceName,
		DevicePlatform:  d.DevicePlatform,
		CollectProtocol: d.CollectProtocol,
		Port:            d.DevicePort,
		UserName:        d.UserName,
		Password:        d.Password,
		CliList:         d.StatusCheckList,
		RetryFlag:       &rf,
		Timeout:         &t,
		Metadata:        map[string]interface{}{"collect_mode": "customer"},
	}
	cresp, err := s.collector.ExecuteTask(ctx, creq)
	if err != nil {
		// 记录错误但不中断下发流程
		dst["__error__"] = err.Error()
		logrus.WithFields(logrus.Fields{
			"device_ip": d.DeviceIP,
			"phase":     phase,
		}).Warnf("Deploy status collection failed: %v", err)
		return
	}
	for _, v := range cresp.Results {
		if v == nil {
			continue
		}
		dst[strings.TrimSpace(v.Command)] = v.RawOutput
	}
}

// pushConfig 在同一会话中执行 进入配置模式 + 用户命令 + 退出配置模式，
// 返回仅含用户命令回显的日志。
func (s *DeployService) pushConfig(ctx context.Context, req *DeployFastRequest, d *DeployDevice, timeout int, userCmds []string) ([]CommandResult, error) {
	dd, _ := s.getDefaults(d.DevicePlatform)

	combined := make([]string, 0, len(dd.ConfigModeCLIs)+len(userCmds)+1)
	for _, c := range dd.ConfigModeCLIs {
		if t := strings.TrimSpace(c); t != "" {
			combined = append(combined, t)
		}
	}
	combined = append(combined, userCmds...)
	if exit := strings.TrimSpace(dd.ConfigExitCLI); exit != "" {
		combined = append(combined, exit)
	}

	rf := req.RetryFlag
	t := timeout
	creq := &CollectRequest{
		TaskID:          fmt.Sprintf("%s-deploy-%s", req.TaskID, d.DeviceIP),
		TaskName:        req.TaskName,
		CollectOrigin:   "customer",
		DeviceIP:        d.DeviceIP,
		DeviceName:      d.DeviceName,
		DevicePlatform:  d.DevicePlatform,
		CollectProtocol: d.CollectProtocol,
		Port:            d.DevicePort,
		UserName:        d.UserName,
		Password:        d.Password,
		CliList:         combined,
		RetryFlag:       &rf,
		Timeout:         &t,
		Metadata:        map[string]interface{}{"collect_mode": "customer"},
	}
	cresp, err := s.collector.ExecuteTask(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("config deploy failed: %w", err)
	}

	include := map[string]struct{}{}
	for _, c := range userCmds {
		include[canonical(c)] = struct{}{}
	}
	logs := make([]CommandResult, 0, len(userCmds))
	var firstErr string
	for _, v := range cresp.Results {
		if v == nil {
			continue
		}
		cr := CommandResult{
			Command:  strings.TrimSpace(v.Command),
			Output:   v.RawOutput,
			Error:    v.Error,
			Elapsed:  (time.Duration(v.DurationMS) * time.Millisecond).String(),
			ExitCode: v.ExitCode,
		}
		if firstErr == "" && strings.TrimSpace(v.Error) != "" {
			firstErr = fmt.Sprintf("%s: %s", cr.Command, strings.TrimSpace(v.Error))
		}
		if _, ok := include[canonical(cr.Command)]; ok {
			logs = append(logs, cr)
		}
	}
	if firstErr != "" {
		return logs, fmt.Errorf("config deploy failed: %s", firstErr)
	}
	return logs, nil
}

// 平台默认检索（统一入口）
func (s *DeployService) getDefaults(platform string) (config.PlatformDefaultsConfig, bool) {
	if s == nil || s.cfg == nil || s.cfg.Collector.DeviceDefaults == nil {
		return config.PlatformDefaultsConfig{}, false
	}
	if def, ok := lookupDeviceDefaults(s.cfg, platform); ok {
		return def, true
	}
	return config.PlatformDefaultsConfig{}, false
}

// buildDeploySequence 拆分配置文本为命令行，并过滤与平台 config_mode_clis 重复的命令
func (s *DeployService) buildDeploySequence(platform string, cfgText string) []string {
	lines := []string{}
	for _, ln := range strings.Split(cfgText, "\n") {
		if t := strings.TrimSpace(ln); t != "" {
			lines = append(lines, t)
		}
	}
	dd, ok := s.getDefaults(platform)
	if !ok || len(dd.ConfigModeCLIs) == 0 {
		return lines
	}
	idx := map[string]struct{}{}
	for _, c := range dd.ConfigModeCLIs {
		idx[canonical(c)] = struct{}{}
	}
	if exit := canonical(dd.ConfigExitCLI); exit != "" {
		idx[exit] = struct{}{}
	}
	filtered := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, exists := idx[canonical(l)]; exists {
			continue
		}
		filtered = append(filtered, l)
	}
	return filtered
}

// aggregateDeployLogs 根据逐条日志聚合为粘贴式整体回显（不重复执行命令）
func aggregateDeployLogs(cmds []string, logs []CommandResult) CommandResult {
	agg := CommandResult{}
	if len(cmds) > 0 {
		agg.Command = strings.Join(cmds, "\n") + "\n"
	}
	var dur time.Duration
	var outSB, errSB strings.Builder
	for _, cr := range logs {
		if strings.TrimSpace(cr.Output) != "" {
			outSB.WriteString(cr.Output)
			if !strings.HasSuffix(cr.Output, "\n") {
				outSB.WriteString("\n")
			}
		}
		if strings.TrimSpace(cr.Error) != "" {
			errSB.WriteString(cr.Error)
			if !strings.HasSuffix(cr.Error, "\n") {
				errSB.WriteString("\n")
			}
		}
		if d, e := time.ParseDuration(cr.Elapsed); e == nil {
			dur += d
		}
	}
	agg.Output = outSB.String()
	if errSB.Len() > 0 {
		agg.Error = strings.TrimSuffix(errSB.String(), "\n")
	}
	if dur > 0 {
		agg.Elapsed = dur.String()
	}
	return agg
}
