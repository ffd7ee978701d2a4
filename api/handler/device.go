package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/telnetcollectorpro/telnetcollectorpro/internal/config"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/database"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/model"
	"github.com/telnetcollectorpro/telnetcollectorpro/pkg/logger"
	"github.com/telnetcollectorpro/telnetcollectorpro/pkg/telnet"
)

// DeviceHandler 设备处理器
type DeviceHandler struct{}

// NewDeviceHandler 创建设备处理器
func NewDeviceHandler() *DeviceHandler {
	return &DeviceHandler{}
}

// updatedOrCurrent 更新值非空白时取更新值，否则保留当前值
func updatedOrCurrent(next, current string) string {
	if s := strings.TrimSpace(next); s != "" {
		return s
	}
	return current
}

// findDevice 按字符串ID查找，失败后兼容 ip:port:username 与旧格式 ip:port
func findDevice(db *gorm.DB, idStr string) (*model.DeviceInfo, bool) {
	var device model.DeviceInfo
	if err := db.Where("id = ?", idStr).First(&device).Error; err == nil {
		return &device, true
	}
	parts := strings.Split(idStr, ":")
	if len(parts) == 3 {
		if port, err := strconv.Atoi(parts[1]); err == nil {
			if err := db.Where("ip = ? AND port = ? AND username = ?", parts[0], port, parts[2]).First(&device).Error; err == nil {
				return &device, true
			}
		}
	} else if len(parts) == 2 {
		if port, err := strconv.Atoi(parts[1]); err == nil {
			if err := db.Where("ip = ? AND port = ?", parts[0], port).First(&device).Error; err == nil {
				return &device, true
			}
		}
	}
	return nil, false
}

// CreateDevice 创建设备
func (h *DeviceHandler) CreateDevice(c *gin.Context) {
	var device model.DeviceInfo
	if err := c.ShouldBindJSON(&device); err != nil {
		logger.Errorf("Invalid device parameters: %v", err)
		fail(c, http.StatusBadRequest, "INVALID_PARAMS", "设备参数无效: "+err.Error())
		return
	}

	if device.IP == "" {
		fail(c, http.StatusBadRequest, "MISSING_IP", "设备IP不能为空")
		return
	}
	if device.Port <= 0 {
		device.Port = 23
	}
	if device.Port > 65535 {
		fail(c, http.StatusBadRequest, "INVALID_PORT", "端口号必须在1-65535之间")
		return
	}
	if device.Protocol == "" {
		device.Protocol = "telnet"
	}

	db := database.GetDB()
	var existing model.DeviceInfo
	if err := db.Where("ip = ? AND port = ? AND username = ?", device.IP, device.Port, device.Username).First(&existing).Error; err == nil {
		fail(c, http.StatusBadRequest, "DEVICE_EXISTS", "设备已存在（IP/端口/用户名相同）")
		return
	}

	if device.Status == "" {
		device.Status = "unknown"
	}
	if device.ID == "" {
		device.ID = uuid.NewString()
	}

	if err := db.Create(&device).Error; err != nil {
		logger.Errorf("Failed to create device: %v", err)
		fail(c, http.StatusInternalServerError, "CREATE_FAILED", "创建设备失败: "+err.Error())
		return
	}

	logger.WithFields(logrus.Fields{"device_id": device.ID, "ip": device.IP}).Info("Device created")
	created(c, "设备创建成功", device)
}

// GetDevice 获取设备信息
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	device, found := findDevice(database.GetDB(), c.Param("id"))
	if !found {
		fail(c, http.StatusNotFound, "DEVICE_NOT_FOUND", "设备不存在")
		return
	}
	ok(c, "获取设备信息成功", device)
}

// UpdateDevice 更新设备信息
func (h *DeviceHandler) UpdateDevice(c *gin.Context) {
	var updateData model.DeviceInfo
	if err := c.ShouldBindJSON(&updateData); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_PARAMS", "更新参数无效: "+err.Error())
		return
	}

	db := database.GetDB()
	device, found := findDevice(db, c.Param("id"))
	if !found {
		fail(c, http.StatusNotFound, "DEVICE_NOT_FOUND", "设备不存在")
		return
	}

	// 组合唯一冲突校验：以更新后的 ip/port/username 为准
	candidateIP := updatedOrCurrent(updateData.IP, device.IP)
	candidateUsername := updatedOrCurrent(updateData.Username, device.Username)
	candidatePort := device.Port
	if updateData.Port > 0 {
		candidatePort = updateData.Port
	}
	var conflict model.DeviceInfo
	if err := db.Where("ip = ? AND port = ? AND username = ? AND id <> ?", candidateIP, candidatePort, candidateUsername, device.ID).First(&conflict).Error; err == nil {
		fail(c, http.StatusBadRequest, "DEVICE_EXISTS", "设备已存在（IP/端口/用户名相同）")
		return
	}

	if err := db.Model(device).Updates(&updateData).Error; err != nil {
		logger.Errorf("Failed to update device %s: %v", device.ID, err)
		fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "更新设备失败: "+err.Error())
		return
	}
	ok(c, "设备更新成功", device)
}

// DeleteDevice 删除设备
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	db := database.GetDB()
	device, found := findDevice(db, c.Param("id"))
	if !found {
		fail(c, http.StatusNotFound, "DEVICE_NOT_FOUND", "设备不存在")
		return
	}
	if err := db.Delete(device).Error; err != nil {
		logger.Errorf("Failed to delete device %s: %v", device.ID, err)
		fail(c, http.StatusInternalServerError, "DELETE_FAILED", "删除设备失败: "+err.Error())
		return
	}
	logger.WithField("device_id", device.ID).Info("Device deleted")
	ok(c, "设备删除成功", gin.H{"id": device.ID})
}

// ListDevices 获取设备列表
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	status := c.Query("status")
	deviceType := c.Query("type")
	enabledParam := c.Query("enabled")
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 10
	}

	db := database.GetDB()
	query := db.Model(&model.DeviceInfo{})

	if status != "" {
		query = query.Where("status = ?", status)
	}
	if deviceType != "" {
		query = query.Where("device_type = ?", deviceType)
	}
	switch enabledParam {
	case "true", "1":
		query = query.Where("enabled = ?", true)
	case "false", "0":
		query = query.Where("enabled = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		fail(c, http.StatusInternalServerError, "COUNT_FAILED", "获取设备总数失败: "+err.Error())
		return
	}

	var devices []model.DeviceInfo
	offset := (page - 1) * size
	if err := query.Offset(offset).Limit(size).Order("name ASC").Find(&devices).Error; err != nil {
		fail(c, http.StatusInternalServerError, "LIST_FAILED", "获取设备列表失败: "+err.Error())
		return
	}
	ok(c, "获取设备列表成功", gin.H{
		"devices": devices,
		"pagination": gin.H{
			"page":  page,
			"size":  size,
			"total": total,
			"pages": (total + int64(size) - 1) / int64(size),
		},
	})
}

// TestConnection 测试设备连接：建立 TELNET 会话并完成登录认证
func (h *DeviceHandler) TestConnection(c *gin.Context) {
	db := database.GetDB()
	device, found := findDevice(db, c.Param("id"))
	if !found {
		fail(c, http.StatusNotFound, "DEVICE_NOT_FOUND", "设备不存在")
		return
	}

	cfg := config.Get()
	connectTimeout := 5 * time.Second
	authTimeout := 10 * time.Second
	if cfg != nil {
		if cfg.Telnet.ConnectTimeout > 0 {
			connectTimeout = cfg.Telnet.ConnectTimeout
		}
		if cfg.Telnet.AuthTimeout > 0 {
			authTimeout = cfg.Telnet.AuthTimeout
		}
	}

	success := true
	message := "连接测试成功"

	session := telnet.NewSession(telnet.Config{
		Host:           device.IP,
		Port:           device.Port,
		ConnectTimeout: connectTimeout,
	})
	if err := session.Connect(); err != nil {
		success = false
		message = "连接测试失败: " + err.Error()
	} else if device.Username != "" || device.Password != "" {
		err := session.Auth(&telnet.AuthConfig{
			Login:       device.Username,
			Password:    device.Password,
			AuthTimeout: authTimeout,
		})
		if err != nil {
			success = false
			message = "登录认证失败: " + err.Error()
		}
	}
	session.Disconnect()

	newStatus := "online"
	if !success {
		newStatus = "offline"
	}
	updates := map[string]interface{}{"status": newStatus, "last_check": time.Now()}
	if err := db.Model(device).Updates(updates).Error; err != nil {
		logger.Errorf("Failed to update device status %s: %v", device.ID, err)
	}

	logger.WithFields(logrus.Fields{"device_id": device.ID, "success": success}).Info("Connection test completed")
	ok(c, message, gin.H{
		"device_id": device.ID,
		"success":   success,
		"status":    newStatus,
	})
}

// 设置设备启用/禁用状态
type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *DeviceHandler) SetEnabled(c *gin.Context) {
	var req setEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_PARAMS", "参数无效: "+err.Error())
		return
	}

	db := database.GetDB()
	device, found := findDevice(db, c.Param("id"))
	if !found {
		fail(c, http.StatusNotFound, "DEVICE_NOT_FOUND", "设备不存在")
		return
	}

	if err := db.Model(device).Update("enabled", req.Enabled).Error; err != nil {
		fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "更新设备启用状态失败: "+err.Error())
		return
	}

	ok(c, "设备启用状态已更新", gin.H{"id": device.ID, "enabled": req.Enabled})
}
