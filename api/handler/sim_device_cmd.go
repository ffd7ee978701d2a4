package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/telnetcollectorpro/telnetcollectorpro/internal/database"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/model"
	"github.com/telnetcollectorpro/telnetcollectorpro/pkg/logger"
)

// SimDeviceCmdHandler 针对命名空间与设备的模拟命令处理器
// 支持：查询（按namespace、device_name、enabled）、创建、查看、更新、删除

type SimDeviceCmdHandler struct{}

func NewSimDeviceCmdHandler() *SimDeviceCmdHandler { return &SimDeviceCmdHandler{} }

const (
	simCmdRetries    = 6
	simCmdRetryDelay = 100 * time.Millisecond
)

func validPagingMode(mode string) bool {
	switch mode {
	case "", "none", "bell", "banner":
		return true
	}
	return false
}

// simCmdID 解析路径中的记录 ID，不合法时直接响应 400
func simCmdID(c *gin.Context) (int, bool) {
	id, _ := strconv.Atoi(c.Param("id"))
	if id <= 0 {
		fail(c, http.StatusBadRequest, "INVALID_ID", "ID不合法")
		return 0, false
	}
	return id, true
}

// CreateSimDeviceCmd 创建模拟命令
func (h *SimDeviceCmdHandler) CreateSimDeviceCmd(c *gin.Context) {
	var req model.SimDeviceCommand
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_PARAMS", "参数错误: "+err.Error())
		return
	}
	req.Namespace = strings.TrimSpace(req.Namespace)
	req.DeviceName = strings.TrimSpace(req.DeviceName)
	req.Command = strings.TrimSpace(req.Command)
	req.PagingMode = strings.TrimSpace(strings.ToLower(req.PagingMode))
	if req.Namespace == "" || req.DeviceName == "" || req.Command == "" {
		fail(c, http.StatusBadRequest, "MISSING_FIELDS", "namespace、device_name 与 command 不能为空")
		return
	}
	if !validPagingMode(req.PagingMode) {
		fail(c, http.StatusBadRequest, "INVALID_PAGING_MODE", "paging_mode 仅支持 none/bell/banner")
		return
	}
	if req.PagingMode == "" {
		req.PagingMode = "none"
	}
	// 默认启用
	if !req.Enabled {
		req.Enabled = true
	}

	// 并发保护：检测到 SQLite Busy 时进行短暂重试
	if err := database.WithRetry(func(d *gorm.DB) error { return d.Create(&req).Error }, simCmdRetries, simCmdRetryDelay); err != nil {
		logger.Errorf("Create sim device command failed: %v", err)
		fail(c, http.StatusInternalServerError, "CREATE_FAILED", "创建失败: "+err.Error())
		return
	}
	created(c, "创建成功", req)
}

// ListSimDeviceCmds 列出模拟命令（按命名空间与设备筛选）
func (h *SimDeviceCmdHandler) ListSimDeviceCmds(c *gin.Context) {
	ns := strings.TrimSpace(c.Query("namespace"))
	dev := strings.TrimSpace(c.Query("device_name"))
	enabledQ := strings.TrimSpace(c.Query("enabled"))

	q := database.GetDB().Model(&model.SimDeviceCommand{})
	for col, val := range map[string]string{"namespace": ns, "device_name": dev} {
		if val != "" {
			q = q.Where(col+" = ?", val)
		}
	}
	switch enabledQ {
	case "true", "1":
		q = q.Where("enabled = 1")
	case "false", "0":
		q = q.Where("enabled = 0")
	}

	var items []model.SimDeviceCommand
	if err := q.Order("updated_at DESC").Find(&items).Error; err != nil {
		logger.Errorf("List sim device commands failed: %v", err)
		fail(c, http.StatusInternalServerError, "LIST_FAILED", "查询失败: "+err.Error())
		return
	}
	ok(c, "查询成功", items)
}

// GetSimDeviceCmd 查看单条模拟命令
func (h *SimDeviceCmdHandler) GetSimDeviceCmd(c *gin.Context) {
	id, valid := simCmdID(c)
	if !valid {
		return
	}
	var item model.SimDeviceCommand
	if err := database.GetDB().First(&item, id).Error; err != nil {
		fail(c, http.StatusNotFound, "NOT_FOUND", "记录不存在")
		return
	}
	ok(c, "查询成功", item)
}

// UpdateSimDeviceCmd 更新模拟命令（支持禁用/启用、修改命令/回显/分页方式）
func (h *SimDeviceCmdHandler) UpdateSimDeviceCmd(c *gin.Context) {
	id, valid := simCmdID(c)
	if !valid {
		return
	}
	var req model.SimDeviceCommand
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_PARAMS", "参数错误: "+err.Error())
		return
	}

	db := database.GetDB()
	var item model.SimDeviceCommand
	if err := db.First(&item, id).Error; err != nil {
		fail(c, http.StatusNotFound, "NOT_FOUND", "记录不存在")
		return
	}

	update := map[string]interface{}{}
	if strings.TrimSpace(req.Command) != "" {
		update["command"] = strings.TrimSpace(req.Command)
	}
	if req.Output != "" {
		update["output"] = req.Output
	}
	if pm := strings.TrimSpace(strings.ToLower(req.PagingMode)); pm != "" {
		if !validPagingMode(pm) {
			fail(c, http.StatusBadRequest, "INVALID_PAGING_MODE", "paging_mode 仅支持 none/bell/banner")
			return
		}
		update["paging_mode"] = pm
	}
	// 允许切换启用状态
	update["enabled"] = req.Enabled
	if strings.TrimSpace(req.Namespace) != "" {
		update["namespace"] = strings.TrimSpace(req.Namespace)
	}
	if strings.TrimSpace(req.DeviceName) != "" {
		update["device_name"] = strings.TrimSpace(req.DeviceName)
	}

	if err := database.WithRetry(func(d *gorm.DB) error { return d.Model(&item).Updates(update).Error }, simCmdRetries, simCmdRetryDelay); err != nil {
		logger.Errorf("Update sim device command failed: %v", err)
		fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "更新失败: "+err.Error())
		return
	}
	ok(c, "更新成功", nil)
}

// DeleteSimDeviceCmd 删除模拟命令
func (h *SimDeviceCmdHandler) DeleteSimDeviceCmd(c *gin.Context) {
	id, valid := simCmdID(c)
	if !valid {
		return
	}
	if err := database.WithRetry(func(d *gorm.DB) error { return d.Delete(&model.SimDeviceCommand{}, id).Error }, simCmdRetries, simCmdRetryDelay); err != nil {
		logger.Errorf("Delete sim device command failed: %v", err)
		fail(c, http.StatusInternalServerError, "DELETE_FAILED", "删除失败: "+err.Error())
		return
	}
	ok(c, "删除成功", nil)
}
