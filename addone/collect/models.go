package collect

import (
	"encoding/json"
)

// TaskStatus 任务状态（与系统主任务状态对齐）
const (
	TaskStatusSuccess = "success"
	TaskStatusFailed  = "failed"
)

// BaseRecord 所有格式化行必须包含的基础字段
type BaseRecord struct {
	TaskID       string `json:"task_id"`
	TaskStatus   string `json:"task_status"`
	RawStoreJSON string `json:"raw_store_path"` // 原始数据存储路径（JSON），key为命令，value为对象存储路径
}

// RawStorePaths 原始数据映射（命令 -> 对象路径）
type RawStorePaths map[string]string

func (r RawStorePaths) Marshal() string {
	if r == nil {
		return "{}"
	}
	b, _ := json.Marshal(r)
	return string(b)
}

// FormattedRow 格式化后的单行数据，包含目标表、基础字段和值
type FormattedRow struct {
	Table string                 `json:"table"`
	Base  BaseRecord             `json:"base"`
	Data  map[string]interface{} `json:"data"`
}
