package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/telnetcollectorpro/telnetcollectorpro/internal/config"
	"github.com/telnetcollectorpro/telnetcollectorpro/pkg/logger"
)

// BackupBatchRequest 批量备份请求
type BackupBatchRequest struct {
	TaskID         string         `json:"task_id"`
	TaskName       string         `json:"task_name,omitempty"`
	TaskBatch      int            `json:"task_batch,omitempty"`
	SaveDir        string         `json:"save_dir,omitempty"`
	StorageBackend string         `json:"storage_backend,omitempty"` // local | minio（默认读取配置）
	RetryFlag      *int           `json:"retry_flag,omitempty"`
	Timeout        *int           `json:"timeout,omitempty"`
	Devices        []BackupDevice `json:"devices"`
}

// BackupDevice 备份的设备信息与命令
type BackupDevice struct {
	DeviceIP        string   `json:"device_ip"`
	Port            int      `json:"port,omitempty"`
	DeviceName      string   `json:"device_name,omitempty"`
	DevicePlatform  string   `json:"device_platform,omitempty"`
	CollectProtocol string   `json:"collect_protocol,omitempty"` // telnet | ssh
	UserName        string   `json:"user_name"`
	Password        string   `json:"password"`
	CliList         []string `json:"cli_list"`
}

// CommandBackupResult 命令备份结果
type CommandBackupResult struct {
	Command       string         `json:"command"`
	RawOutput     string         `json:"raw_output"`
	StoredObjects []StoredObject `json:"stored_objects"`
	ExitCode      int            `json:"exit_code"`
	DurationMS    int64          `json:"duration_ms"`
	Error         string         `json:"error"`
}

// DeviceBackupResponse 设备备份响应
type DeviceBackupResponse struct {
	DeviceIP       string                `json:"device_ip"`
	Port           int                   `json:"port"`
	DeviceName     string                `json:"device_name,omitempty"`
	DevicePlatform string                `json:"device_platform,omitempty"`
	TaskID         string                `json:"task_id"`
	TaskBatch      int                   `json:"task_batch,omitempty"`
	Success        bool                  `json:"success"`
	Results        []CommandBackupResult `json:"results"`
	Error          string                `json:"error"`
	DurationMS     int64                 `json:"duration_ms"`
	Timestamp      time.Time             `json:"timestamp"`
}

// BackupBatchResponse 批量备份响应
type BackupBatchResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Data    []DeviceBackupResponse `json:"data"`
	Total   int                    `json:"total"`
}

// BackupService 配置备份服务
// 设备采集复用 CollectorService（含平台默认与重试），输出经 StorageWriter 落盘
type BackupService struct {
	cfg       *config.Config
	collector *CollectorService
	writer    StorageWriter
}

// NewBackupService 创建备份服务
func NewBackupService(cfg *config.Config, collector *CollectorService) *BackupService {
	return &BackupService{
		cfg:       cfg,
		collector: collector,
		writer:    NewStorageWriter(cfg),
	}
}

// ExecuteBatch 并发执行批量设备备份
// 每台设备独立登录执行，互不影响；并发上限取采集器并发配置
func (b *BackupService) ExecuteBatch(ctx context.Context, req *BackupBatchRequest) *BackupBatchResponse {
	if req == nil || len(req.Devices) == 0 {
		return &BackupBatchResponse{Code: "400", Message: "devices is empty"}
	}

	backend := strings.ToLower(strings.TrimSpace(req.StorageBackend))
	if backend == "" {
		backend = strings.ToLower(strings.TrimSpace(b.cfg.Backup.StorageBackend))
	}
	if backend == "" {
		backend = "local"
	}

	limit := b.cfg.Collector.Concurrent
	if limit <= 0 {
		limit = 8
	}

	responses := make([]DeviceBackupResponse, len(req.Devices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, dev := range req.Devices {
		i, dev := i, dev
		g.Go(func() error {
			responses[i] = b.backupDevice(gctx, req, &dev, i, backend)
			// 单设备失败不取消整批
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range responses {
		if !r.Success {
			failed++
		}
	}
	msg := "备份完成"
	if failed > 0 {
		msg = fmt.Sprintf("备份完成，%d/%d 台设备失败", failed, len(responses))
	}
	return &BackupBatchResponse{
		Code:    "200",
		Message: msg,
		Data:    responses,
		Total:   len(responses),
	}
}

// backupDevice 执行单台设备备份并写入存储
func (b *BackupService) backupDevice(ctx context.Context, req *BackupBatchRequest, dev *BackupDevice, index int, backend string) DeviceBackupResponse {
	start := time.Now()
	resp := DeviceBackupResponse{
		DeviceIP:       dev.DeviceIP,
		Port:           dev.Port,
		DeviceName:     dev.DeviceName,
		DevicePlatform: dev.DevicePlatform,
		TaskID:         req.TaskID,
		TaskBatch:      req.TaskBatch,
		Timestamp:      start,
	}

	// 设备级任务ID：批次任务ID + 序号，保证落库与目录均可区分
	taskID := fmt.Sprintf("%s-%d", strings.TrimSpace(req.TaskID), index)

	collectResp, err := b.collector.ExecuteTask(ctx, &CollectRequest{
		TaskID:          taskID,
		TaskName:        req.TaskName,
		DeviceIP:        dev.DeviceIP,
		DeviceName:      dev.DeviceName,
		DevicePlatform:  dev.DevicePlatform,
		CollectProtocol: dev.CollectProtocol,
		Port:            dev.Port,
		UserName:        dev.UserName,
		Password:        dev.Password,
		CliList:         dev.CliList,
		RetryFlag:       req.RetryFlag,
		Timeout:         req.Timeout,
	})
	if err != nil {
		resp.Error = err.Error()
		resp.DurationMS = time.Since(start).Milliseconds()
		logger.Error("Backup device failed", "device_ip", dev.DeviceIP, "error", err)
		return resp
	}
	if !collectResp.Success {
		resp.Error = collectResp.Error
		resp.DurationMS = time.Since(start).Milliseconds()
		return resp
	}

	meta := StorageMeta{
		SaveDir:      req.SaveDir,
		DateYYYYMMDD: start.Format("20060102"),
		TimeHHMMSS:   start.Format("150405"),
		TaskID:       taskID,
		DeviceName:   dev.DeviceName,
		DeviceIP:     dev.DeviceIP,
		Backend:      backend,
	}

	agg := b.cfg.Backup.Aggregate
	var aggBuf strings.Builder

	results := make([]CommandBackupResult, 0, len(collectResp.Results))
	for _, r := range collectResp.Results {
		cr := CommandBackupResult{
			Command:    r.Command,
			RawOutput:  r.RawOutput,
			ExitCode:   r.ExitCode,
			DurationMS: r.DurationMS,
			Error:      r.Error,
		}

		if agg.Enabled {
			aggBuf.WriteString(fmt.Sprintf("===== %s =====\n", r.Command))
			aggBuf.WriteString(r.RawOutput)
			if !strings.HasSuffix(r.RawOutput, "\n") {
				aggBuf.WriteString("\n")
			}
			aggBuf.WriteString("\n")
		}

		// 逐命令写入（聚合仅写入模式下跳过）
		if !(agg.Enabled && agg.AggregateOnly) {
			m := meta
			m.CommandSlug = r.Command
			obj, werr := b.writer.Write(ctx, m, r.RawOutput, "")
			if werr != nil {
				// 回退写入等预警不判失败，仅记录
				logger.Warn("Backup write warning", "device_ip", dev.DeviceIP, "command", r.Command, "warn", werr)
			}
			if obj.URI != "" {
				cr.StoredObjects = append(cr.StoredObjects, obj)
			}
		}
		results = append(results, cr)
	}

	// 聚合文件写入
	if agg.Enabled && aggBuf.Len() > 0 {
		filename := strings.TrimSpace(agg.Filename)
		if filename == "" {
			filename = "all_cli.txt"
		}
		m := meta
		m.CommandSlug = filename
		if obj, werr := b.writer.Write(ctx, m, aggBuf.String(), ""); werr != nil {
			logger.Warn("Backup aggregate write warning", "device_ip", dev.DeviceIP, "warn", werr)
		} else if obj.URI != "" && len(results) > 0 {
			results[len(results)-1].StoredObjects = append(results[len(results)-1].StoredObjects, obj)
		}
	}

	resp.Success = true
	resp.Results = results
	resp.DurationMS = time.Since(start).Milliseconds()
	return resp
}
