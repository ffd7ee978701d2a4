package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/telnetcollectorpro/telnetcollectorpro/internal/config"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/database"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/model"
	"github.com/telnetcollectorpro/telnetcollectorpro/pkg/logger"
)

// RegistryService 负责向控制器注册采集器并维持心跳。
// 未配置 controller.host 时仅在本地库登记信息，不发起注册。
type RegistryService struct {
	config     *config.Config
	collector  *CollectorService
	httpClient *http.Client
	info       *model.Collector
	status     *model.CollectorStatus
	mutex      sync.RWMutex
	running    bool
	stopChan   chan struct{}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Version    string            `json:"version"`
	Tags       []string          `json:"tags"`
	Protocols  []string          `json:"protocols"`
	ServerIP   string            `json:"server_ip"`
	ServerPort int               `json:"server_port"`
	Threads    int               `json:"threads"`
	Concurrent int               `json:"concurrent"`
	Metadata   map[string]string `json:"metadata"`
}

// RegisterResponse 注册响应
type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		CollectorID string `json:"collector_id"`
	} `json:"data"`
}

// HeartbeatRequest 心跳请求
type HeartbeatRequest struct {
	CollectorID   string  `json:"collector_id"`
	Status        string  `json:"status"`
	MemoryUsage   float64 `json:"memory_usage"`
	TasksRunning  int     `json:"tasks_running"`
	TasksSuccess  int64   `json:"tasks_success"`
	TasksFailure  int64   `json:"tasks_failure"`
	LastHeartbeat int64   `json:"last_heartbeat"`
}

// HeartbeatResponse 心跳响应
type HeartbeatResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewRegistryService 创建注册服务
func NewRegistryService(cfg *config.Config, collector *CollectorService) *RegistryService {
	return &RegistryService{
		config:     cfg,
		collector:  collector,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		stopChan:   make(chan struct{}),
	}
}

// Start 启动注册服务
func (s *RegistryService) Start(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.running {
		return fmt.Errorf("registry service is already running")
	}

	if err := s.initCollector(); err != nil {
		return fmt.Errorf("failed to initialize collector record: %w", err)
	}

	s.running = true

	if s.config.GetControllerAddr() == "" {
		logger.Info("Controller not configured, registry running in standalone mode")
		return nil
	}

	go s.controllerLoop(ctx)

	logger.WithFields(logrus.Fields{
		"collector_id": s.info.ID,
		"controller":   s.config.GetControllerAddr(),
	}).Info("Registry service started")
	return nil
}

// Stop 停止注册服务
func (s *RegistryService) Stop() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopChan)

	logger.Info("Registry service stopped")
	return nil
}

// initCollector 初始化采集器本地记录
func (s *RegistryService) initCollector() error {
	db := database.GetDB()
	if db == nil {
		return database.ErrNotInitialized
	}

	s.info = &model.Collector{
		ID:         s.config.Collector.ID,
		Type:       s.config.Collector.Type,
		Version:    s.config.Collector.Version,
		Tags:       strings.Join(s.config.Collector.Tags, ","),
		Protocols:  "telnet,ssh",
		ServerIP:   s.localIP(),
		ServerPort: s.config.Server.Port,
		Threads:    s.config.Collector.Threads,
		Concurrent: s.config.Collector.Concurrent,
		Status:     "starting",
	}

	var existing model.Collector
	if err := db.Where("id = ?", s.info.ID).First(&existing).Error; err == nil {
		if err := db.Model(&existing).Updates(s.info).Error; err != nil {
			return fmt.Errorf("failed to update collector: %w", err)
		}
	} else if err := db.Create(s.info).Error; err != nil {
		return fmt.Errorf("failed to create collector: %w", err)
	}

	s.status = &model.CollectorStatus{
		ID:            s.info.ID,
		LastHeartbeat: time.Now(),
	}
	var existingStatus model.CollectorStatus
	if err := db.Where("id = ?", s.status.ID).First(&existingStatus).Error; err == nil {
		s.status = &existingStatus
	} else if err := db.Create(s.status).Error; err != nil {
		return fmt.Errorf("failed to create collector status: %w", err)
	}

	return nil
}

// controllerLoop 维护与控制器的注册与心跳。
// 离线时按 register_retry 间隔重试注册，在线时按 heartbeat_interval 上报心跳。
func (s *RegistryService) controllerLoop(ctx context.Context) {
	s.tryRegister()

	retry := s.config.Controller.RegisterRetry
	if retry <= 0 {
		retry = 30 * time.Second
	}
	interval := s.config.Controller.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	regTicker := time.NewTicker(retry)
	defer regTicker.Stop()
	hbTicker := time.NewTicker(interval)
	defer hbTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-regTicker.C:
			if !s.IsOnline() {
				s.tryRegister()
			}
		case <-hbTicker.C:
			if s.IsOnline() {
				s.sendHeartbeat()
			}
		}
	}
}

// tryRegister 尝试向控制器注册
func (s *RegistryService) tryRegister() {
	logger.WithField("collector_id", s.info.ID).Info("Attempting to register collector")

	request := &RegisterRequest{
		ID:         s.info.ID,
		Type:       s.info.Type,
		Version:    s.info.Version,
		Tags:       strings.Split(s.info.Tags, ","),
		Protocols:  strings.Split(s.info.Protocols, ","),
		ServerIP:   s.info.ServerIP,
		ServerPort: s.info.ServerPort,
		Threads:    s.info.Threads,
		Concurrent: s.info.Concurrent,
		Metadata: map[string]string{
			"os":   runtime.GOOS,
			"arch": runtime.GOARCH,
		},
	}

	var resp RegisterResponse
	url := fmt.Sprintf("http://%s/api/v1/collectors/register", s.config.GetControllerAddr())
	if err := s.postJSON(url, request, &resp); err != nil {
		logger.Errorf("Failed to register collector: %v", err)
		s.setStatus("offline")
		return
	}
	if !resp.Success {
		logger.Errorf("Registration rejected: %s", resp.Message)
		s.setStatus("offline")
		return
	}
	logger.WithField("collector_id", s.info.ID).Info("Collector registered successfully")
	s.setStatus("online")
}

// sendHeartbeat 上报心跳与运行状态
func (s *RegistryService) sendHeartbeat() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	tasksRunning := 0
	if s.collector != nil {
		stats := s.collector.GetStats()
		if v, ok := stats["active_tasks"].(int); ok {
			tasksRunning = v
		}
		s.mutex.Lock()
		if v, ok := stats["tasks_success"].(int64); ok {
			s.status.TaskSuccessCount = v
		}
		if v, ok := stats["tasks_failure"].(int64); ok {
			s.status.TaskFailureCount = v
		}
		s.mutex.Unlock()
	}

	s.mutex.Lock()
	s.status.MemoryUsage = float64(m.Alloc) / 1024 / 1024
	s.mutex.Unlock()

	request := &HeartbeatRequest{
		CollectorID:   s.info.ID,
		Status:        s.info.Status,
		MemoryUsage:   s.status.MemoryUsage,
		TasksRunning:  tasksRunning,
		TasksSuccess:  s.status.TaskSuccessCount,
		TasksFailure:  s.status.TaskFailureCount,
		LastHeartbeat: time.Now().Unix(),
	}

	var resp HeartbeatResponse
	url := fmt.Sprintf("http://%s/api/v1/collectors/%s/heartbeat", s.config.GetControllerAddr(), s.info.ID)
	if err := s.postJSON(url, request, &resp); err != nil {
		logger.Errorf("Failed to send heartbeat: %v", err)
		s.setStatus("offline")
		return
	}
	if !resp.Success {
		logger.Errorf("Heartbeat rejected: %s", resp.Message)
		s.setStatus("offline")
		return
	}
	logger.Debug("Heartbeat sent successfully")
	s.mutex.Lock()
	s.status.LastHeartbeat = time.Now()
	s.mutex.Unlock()
	s.persistStatus()
}

// postJSON 发送 JSON 请求并解析响应到 out，非 2xx 状态视为错误
func (s *RegistryService) postJSON(url string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	resp, err := s.httpClient.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("controller returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// setStatus 更新采集器状态并落库
func (s *RegistryService) setStatus(status string) {
	s.mutex.Lock()
	s.info.Status = status
	s.mutex.Unlock()
	s.persistStatus()
}

// persistStatus 将当前状态写入数据库
func (s *RegistryService) persistStatus() {
	db := database.GetDB()
	if db == nil {
		return
	}
	if err := db.Model(s.info).Update("status", s.info.Status).Error; err != nil {
		logger.Errorf("Failed to update collector status: %v", err)
	}
	if err := db.Model(s.status).Updates(s.status).Error; err != nil {
		logger.Errorf("Failed to update collector heartbeat record: %v", err)
	}
}

// localIP 对外通告的地址，监听 0.0.0.0 时退回回环地址
func (s *RegistryService) localIP() string {
	if s.config.Server.Host != "" && s.config.Server.Host != "0.0.0.0" {
		return s.config.Server.Host
	}
	return "127.0.0.1"
}

// GetCollector 获取采集器信息
func (s *RegistryService) GetCollector() *model.Collector {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.info
}

// GetCollectorStatus 获取采集器状态
func (s *RegistryService) GetCollectorStatus() *model.CollectorStatus {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.status
}

// IsOnline 检查采集器是否在线
func (s *RegistryService) IsOnline() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.info != nil && s.info.Status == "online"
}
