package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/telnetcollectorpro/telnetcollectorpro/internal/service"
	"github.com/telnetcollectorpro/telnetcollectorpro/pkg/logger"
)

// CollectorHandler 采集器处理器
type CollectorHandler struct {
	collectorService *service.CollectorService
}

// NewCollectorHandler 创建采集器处理器
func NewCollectorHandler(collectorService *service.CollectorService) *CollectorHandler {
	return &CollectorHandler{
		collectorService: collectorService,
	}
}

// GetTaskStatus 获取任务状态
func (h *CollectorHandler) GetTaskStatus(c *gin.Context) {
	taskID := c.Param("task_id")
	if taskID == "" {
		fail(c, http.StatusBadRequest, "MISSING_TASK_ID", "任务ID不能为空")
		return
	}

	taskContext, err := h.collectorService.GetTaskStatus(taskID)
	if err != nil {
		fail(c, http.StatusNotFound, "TASK_NOT_FOUND", "任务不存在: "+taskID)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task_id":    taskID,
		"status":     taskContext.Status,
		"start_time": taskContext.StartTime,
		"duration":   time.Since(taskContext.StartTime).String(),
	})
}

// CancelTask 取消任务
func (h *CollectorHandler) CancelTask(c *gin.Context) {
	taskID := c.Param("task_id")
	if taskID == "" {
		fail(c, http.StatusBadRequest, "MISSING_TASK_ID", "任务ID不能为空")
		return
	}

	if err := h.collectorService.CancelTask(taskID); err != nil {
		logger.WithFields(logrus.Fields{"task_id": taskID}).Errorf("Failed to cancel task: %v", err)
		fail(c, http.StatusNotFound, "TASK_NOT_FOUND", "任务不存在: "+taskID)
		return
	}

	ok(c, "任务已取消", gin.H{"task_id": taskID})
}

// GetStats 获取采集器统计信息
func (h *CollectorHandler) GetStats(c *gin.Context) {
	stats := h.collectorService.GetStats()
	ok(c, "获取统计信息成功", stats)
}

// Health 健康检查
func (h *CollectorHandler) Health(c *gin.Context) {
	stats := h.collectorService.GetStats()

	if running, up := stats["running"].(bool); !up || !running {
		fail(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "采集器服务未运行")
		return
	}

	ok(c, "服务正常", stats)
}

// BatchExecute 批量执行任务（collect_origin 由请求自带）
func (h *CollectorHandler) BatchExecute(c *gin.Context) {
	h.batchExecute(c, "")
}

// BatchExecuteCustomer 批量执行用户侧任务：保留原始回显，不做错误提示识别
func (h *CollectorHandler) BatchExecuteCustomer(c *gin.Context) {
	h.batchExecute(c, "customer")
}

// BatchExecuteSystem 批量执行系统侧任务：要求 device_platform，结果过滤分页命令
func (h *CollectorHandler) BatchExecuteSystem(c *gin.Context) {
	h.batchExecute(c, "system")
}

func (h *CollectorHandler) batchExecute(c *gin.Context, origin string) {
	var requests []service.CollectRequest
	if err := c.ShouldBindJSON(&requests); err != nil {
		logger.Errorf("Invalid batch request parameters: %v", err)
		fail(c, http.StatusBadRequest, "INVALID_PARAMS", "批量请求参数无效: "+err.Error())
		return
	}

	if len(requests) == 0 {
		fail(c, http.StatusBadRequest, "EMPTY_REQUESTS", "请求列表不能为空")
		return
	}
	if len(requests) > 100 {
		fail(c, http.StatusBadRequest, "TOO_MANY_REQUESTS", "批量请求数量不能超过100个")
		return
	}

	responses := make([]*service.CollectResponse, 0, len(requests))

	// 顺序提交；并发度由服务层 worker 池控制
	for i, request := range requests {
		if origin != "" {
			request.CollectOrigin = origin
		}
		if err := h.validateCollectRequest(&request); err != nil {
			responses = append(responses, &service.CollectResponse{
				TaskID:    request.TaskID,
				Success:   false,
				Error:     "参数验证失败: " + err.Error(),
				Timestamp: time.Now(),
			})
			continue
		}

		// 同步执行；超时在服务层根据平台默认或传入参数处理
		response, err := h.collectorService.ExecuteTask(c.Request.Context(), &request)
		if err != nil {
			response = &service.CollectResponse{
				TaskID:    request.TaskID,
				Success:   false,
				Error:     err.Error(),
				Timestamp: time.Now(),
			}
		}
		responses = append(responses, response)

		logger.WithFields(logrus.Fields{
			"index":   i + 1,
			"task_id": request.TaskID,
			"success": response.Success,
		}).Info("Batch task completed")
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "SUCCESS",
		"message": "批量任务执行完成",
		"data":    responses,
		"total":   len(responses),
	})
}

// validateCollectRequest 验证采集请求参数
func (h *CollectorHandler) validateCollectRequest(request *service.CollectRequest) error {
	if strings.TrimSpace(request.TaskID) == "" {
		return fmt.Errorf("任务ID不能为空")
	}
	if strings.TrimSpace(request.DeviceIP) == "" {
		return fmt.Errorf("设备IP不能为空")
	}
	if strings.TrimSpace(request.UserName) == "" {
		return fmt.Errorf("用户名不能为空")
	}
	if strings.TrimSpace(request.Password) == "" {
		return fmt.Errorf("密码不能为空")
	}
	if p := strings.TrimSpace(strings.ToLower(request.CollectProtocol)); p != "" && p != "telnet" && p != "ssh" {
		return fmt.Errorf("不支持的采集协议: %s", request.CollectProtocol)
	}
	// system 模式需要平台
	if strings.TrimSpace(strings.ToLower(request.CollectOrigin)) == "system" {
		if strings.TrimSpace(request.DevicePlatform) == "" {
			return fmt.Errorf("system模式需要指定设备平台(device_platform)")
		}
	}
	if request.Port != 0 && (request.Port < 1 || request.Port > 65535) {
		return fmt.Errorf("端口号必须在1-65535之间")
	}
	if request.Timeout != nil && *request.Timeout > 300 {
		return fmt.Errorf("超时时间不能超过300秒")
	}
	if request.RetryFlag != nil && *request.RetryFlag < 0 {
		return fmt.Errorf("重试次数不能为负数")
	}
	return nil
}
