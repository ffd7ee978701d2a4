package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/service"
)

// 单次备份请求允许的最大设备数
const maxBackupDevices = 200

// BackupHandler 配置备份接口处理器
type BackupHandler struct {
	svc *service.BackupService
}

func NewBackupHandler(svc *service.BackupService) *BackupHandler { return &BackupHandler{svc: svc} }

// BatchBackup 批量采集设备配置并写入存储后端
// POST /backup/batch
func (h *BackupHandler) BatchBackup(c *gin.Context) {
	var req service.BackupBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "请求体解析失败: " + err.Error()})
		return
	}
	if req.TaskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PARAMS", "message": "task_id 不能为空"})
		return
	}
	if len(req.Devices) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_PARAMS", "message": "devices 不能为空"})
		return
	}
	if len(req.Devices) > maxBackupDevices {
		c.JSON(http.StatusBadRequest, gin.H{"code": "TOO_MANY_DEVICES", "message": "单次备份设备数超过上限"})
		return
	}

	resp := h.svc.ExecuteBatch(c.Request.Context(), &req)
	c.JSON(http.StatusOK, resp)
}
