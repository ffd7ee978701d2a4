package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// 批量采集命令行工具：向采集服务提交批量任务并格式化输出结果
//
// 示例：
//   cli -server http://127.0.0.1:8080 -mode custom \
//       -devices 192.168.1.10:23,192.168.1.11 \
//       -user admin -password secret -platform huawei_s \
//       -cmds "display version;display current-configuration"

type collectRequest struct {
	TaskID          string   `json:"task_id"`
	TaskName        string   `json:"task_name,omitempty"`
	DeviceIP        string   `json:"device_ip"`
	DeviceName      string   `json:"device_name,omitempty"`
	DevicePlatform  string   `json:"device_platform,omitempty"`
	CollectProtocol string   `json:"collect_protocol,omitempty"`
	Port            int      `json:"port,omitempty"`
	UserName        string   `json:"user_name"`
	Password        string   `json:"password"`
	CliList         []string `json:"cli_list,omitempty"`
	RetryFlag       *int     `json:"retry_flag,omitempty"`
	Timeout         *int     `json:"timeout,omitempty"`
}

type commandResultView struct {
	Command    string `json:"command"`
	RawOutput  string `json:"raw_output"`
	Error      string `json:"error"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
}

type collectResponse struct {
	TaskID     string              `json:"task_id"`
	Success    bool                `json:"success"`
	Results    []commandResultView `json:"results"`
	Error      string              `json:"error"`
	DurationMS int64               `json:"duration_ms"`
}

type batchResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Data    []collectResponse `json:"data"`
	Total   int               `json:"total"`
}

func main() {
	var (
		server   = flag.String("server", "http://127.0.0.1:8080", "采集服务地址")
		mode     = flag.String("mode", "custom", "批量模式: custom | system")
		devices  = flag.String("devices", "", "设备列表，逗号分隔，每项 ip[:port]")
		user     = flag.String("user", "", "登录用户名")
		password = flag.String("password", "", "登录密码")
		platform = flag.String("platform", "", "设备平台（如 huawei_s / cisco_ios）")
		protocol = flag.String("protocol", "telnet", "采集协议: telnet | ssh")
		cmds     = flag.String("cmds", "", "命令清单，分号分隔；system 模式可留空")
		timeout  = flag.Int("timeout", 0, "单任务超时（秒），0 使用平台默认")
		retry    = flag.Int("retry", -1, "登录重试次数，-1 使用平台默认")
		taskName = flag.String("task-name", "", "任务名称")
		rawLimit = flag.Int("raw-limit", 400, "回显截断长度，0 不截断")
	)
	flag.Parse()

	if strings.TrimSpace(*devices) == "" || strings.TrimSpace(*user) == "" || strings.TrimSpace(*password) == "" {
		fmt.Fprintln(os.Stderr, "missing required flags: -devices, -user, -password")
		flag.Usage()
		os.Exit(2)
	}
	if *mode != "custom" && *mode != "system" {
		fmt.Fprintln(os.Stderr, "invalid -mode, expected custom or system")
		os.Exit(2)
	}
	if *mode == "system" && strings.TrimSpace(*platform) == "" {
		fmt.Fprintln(os.Stderr, "system mode requires -platform")
		os.Exit(2)
	}

	cliList := splitCmds(*cmds)
	requests := make([]collectRequest, 0)
	for _, spec := range strings.Split(*devices, ",") {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		ip, port := parseDeviceSpec(spec)
		req := collectRequest{
			TaskID:          uuid.NewString(),
			TaskName:        *taskName,
			DeviceIP:        ip,
			Port:            port,
			DevicePlatform:  *platform,
			CollectProtocol: *protocol,
			UserName:        *user,
			Password:        *password,
			CliList:         cliList,
		}
		if *timeout > 0 {
			t := *timeout
			req.Timeout = &t
		}
		if *retry >= 0 {
			r := *retry
			req.RetryFlag = &r
		}
		requests = append(requests, req)
	}
	if len(requests) == 0 {
		fmt.Fprintln(os.Stderr, "no valid devices")
		os.Exit(2)
	}

	url := strings.TrimRight(*server, "/") + "/api/v1/collector/batch/" + *mode
	body, _ := json.Marshal(requests)

	httpClient := &http.Client{Timeout: 10 * time.Minute}
	resp, err := httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "server returned %d: %s\n", resp.StatusCode, string(data))
		os.Exit(1)
	}

	var br batchResponse
	if err := json.Unmarshal(data, &br); err != nil {
		fmt.Fprintf(os.Stderr, "invalid response: %v\n%s\n", err, string(data))
		os.Exit(1)
	}

	failed := 0
	for i, r := range br.Data {
		status := "OK"
		if !r.Success {
			status = "FAILED"
			failed++
		}
		fmt.Printf("[%d/%d] task=%s %s (%dms)\n", i+1, br.Total, r.TaskID, status, r.DurationMS)
		if r.Error != "" {
			fmt.Printf("  error: %s\n", r.Error)
		}
		for _, cr := range r.Results {
			fmt.Printf("  $ %s (%dms)\n", cr.Command, cr.DurationMS)
			if cr.Error != "" {
				fmt.Printf("    error: %s\n", cr.Error)
			}
			out := cr.RawOutput
			if *rawLimit > 0 && len(out) > *rawLimit {
				out = out[:*rawLimit] + "... (" + strconv.Itoa(len(cr.RawOutput)) + " bytes)"
			}
			for _, ln := range strings.Split(strings.TrimRight(out, "\r\n"), "\n") {
				fmt.Printf("    %s\n", strings.TrimRight(ln, "\r"))
			}
		}
	}
	fmt.Printf("done: %d tasks, %d failed\n", br.Total, failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func splitCmds(s string) []string {
	out := make([]string, 0)
	for _, c := range strings.Split(s, ";") {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func parseDeviceSpec(spec string) (string, int) {
	if idx := strings.LastIndex(spec, ":"); idx > 0 {
		if p, err := strconv.Atoi(spec[idx+1:]); err == nil && p > 0 && p < 65536 {
			return spec[:idx], p
		}
	}
	return spec, 0
}
