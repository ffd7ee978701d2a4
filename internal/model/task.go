package model

import (
	"time"
)

// Task 采集任务
type Task struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	CollectorID string    `json:"collector_id" gorm:"type:varchar(64);not null;index"`
	Type        string    `json:"type" gorm:"type:varchar(32);not null"`
	Protocol    string    `json:"protocol" gorm:"type:varchar(16);not null;default:'telnet'"`
	DeviceIP    string    `json:"device_ip" gorm:"type:varchar(64);not null"`
	DevicePort  int       `json:"device_port" gorm:"not null;default:23"`
	Username    string    `json:"username" gorm:"type:varchar(64);not null"`
	Password    string    `json:"password" gorm:"type:varchar(256);not null"`
	Commands    string    `json:"commands" gorm:"type:text;not null"`
	Status      string    `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	Result      string    `json:"result" gorm:"type:text"`
	ErrorMsg    string    `json:"error_msg" gorm:"type:text"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Duration    int64     `json:"duration"` // 执行时长，毫秒
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (Task) TableName() string {
	return "tasks"
}

// Fail 标记任务失败并记录错误信息
func (t *Task) Fail(msg string) {
	t.Status = TaskStatusFailed
	t.ErrorMsg = msg
}

// Succeed 标记任务成功并记录序列化结果
func (t *Task) Succeed(result string) {
	t.Status = TaskStatusSuccess
	t.Result = result
}

// Finish 记录执行时长（毫秒）与结束时间
func (t *Task) Finish(d time.Duration) {
	now := time.Now()
	t.Duration = d.Milliseconds()
	t.EndTime = now
	t.UpdatedAt = now
}

// TaskStatus 任务状态枚举
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusSuccess   = "success"
	TaskStatusFailed    = "failed"
	TaskStatusTimeout   = "timeout"
	TaskStatusCancelled = "cancelled"
)

// TaskType 任务类型枚举
const (
	TaskTypeSimple = "simple"
)

// TaskLog 任务日志
type TaskLog struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	TaskID    string    `json:"task_id" gorm:"type:varchar(64);not null;index"`
	Level     string    `json:"level" gorm:"type:varchar(16);not null"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 表名
func (TaskLog) TableName() string {
	return "task_logs"
}

// DeviceInfo 设备信息
type DeviceInfo struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name       string    `json:"name" gorm:"type:varchar(128)"`
	IP         string    `json:"ip" gorm:"type:varchar(64);not null;uniqueIndex:uix_device_endpoint"`
	Port       int       `json:"port" gorm:"not null;default:23;uniqueIndex:uix_device_endpoint"`
	Protocol   string    `json:"protocol" gorm:"type:varchar(16);default:'telnet'"`
	DeviceType string    `json:"device_type" gorm:"type:varchar(32)"`
	Vendor     string    `json:"vendor" gorm:"type:varchar(64)"`
	Model      string    `json:"model" gorm:"type:varchar(64)"`
	Version    string    `json:"version" gorm:"type:varchar(64)"`
	Username   string    `json:"username" gorm:"type:varchar(64);uniqueIndex:uix_device_endpoint"`
	Password   string    `json:"password" gorm:"type:varchar(256)"`
	Enabled    bool      `json:"enabled" gorm:"default:true"`
	Status     string    `json:"status" gorm:"type:varchar(16);default:'unknown'"`
	LastCheck  time.Time `json:"last_check"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 表名
func (DeviceInfo) TableName() string {
	return "device_info"
}
