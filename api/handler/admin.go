package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/telnetcollectorpro/telnetcollectorpro/internal/config"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/database"
	"github.com/telnetcollectorpro/telnetcollectorpro/pkg/logger"
)

// AdminHandler 管理相关处理器
type AdminHandler struct{}

func NewAdminHandler() *AdminHandler { return &AdminHandler{} }

// DeviceDefaultsUpdate 可更新的设备平台默认参数，nil 字段保持原值
type DeviceDefaultsUpdate struct {
	PromptPattern     *string  `json:"prompt_pattern"`
	LoginPrompt       *string  `json:"login_prompt"`
	PasswordPrompt    *string  `json:"password_prompt"`
	FailurePattern    *string  `json:"failure_pattern"`
	DisablePagingCmds []string `json:"disable_paging_cmds"`
	PageHeight        *int     `json:"page_height"`
	ConfigModeCLIs    []string `json:"config_mode_clis"`
	ConfigExitCLI     *string  `json:"config_exit_cli"`
}

// apply 将非 nil 字段合并到平台默认配置
func (u *DeviceDefaultsUpdate) apply(dd *config.PlatformDefaultsConfig) {
	for dst, src := range map[*string]*string{
		&dd.PromptPattern:  u.PromptPattern,
		&dd.LoginPrompt:    u.LoginPrompt,
		&dd.PasswordPrompt: u.PasswordPrompt,
		&dd.FailurePattern: u.FailurePattern,
		&dd.ConfigExitCLI:  u.ConfigExitCLI,
	} {
		if src != nil {
			*dst = *src
		}
	}
	if u.DisablePagingCmds != nil {
		dd.DisablePagingCmds = u.DisablePagingCmds
	}
	if u.ConfigModeCLIs != nil {
		dd.ConfigModeCLIs = u.ConfigModeCLIs
	}
	if u.PageHeight != nil {
		dd.PageHeight = *u.PageHeight
	}
}

// GetDeviceDefaults 获取设备平台默认适配参数
func (h *AdminHandler) GetDeviceDefaults(c *gin.Context) {
	cfg := config.Get()
	if cfg == nil {
		fail(c, http.StatusInternalServerError, "CONFIG_MISSING", "配置未初始化")
		return
	}
	ok(c, "获取设备平台默认参数成功", cfg.Collector.DeviceDefaults)
}

// UpdateDeviceDefaults 更新指定平台的默认适配参数（内存生效，暂不持久化）
func (h *AdminHandler) UpdateDeviceDefaults(c *gin.Context) {
	platform := strings.TrimSpace(c.Param("platform"))
	if platform == "" {
		fail(c, http.StatusBadRequest, "INVALID_PLATFORM", "平台名不能为空")
		return
	}

	var req DeviceDefaultsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Errorf("Invalid device defaults update: %v", err)
		fail(c, http.StatusBadRequest, "INVALID_PARAMS", "参数解析失败: "+err.Error())
		return
	}

	cfg := config.Get()
	if cfg == nil {
		fail(c, http.StatusInternalServerError, "CONFIG_MISSING", "配置未初始化")
		return
	}
	if cfg.Collector.DeviceDefaults == nil {
		cfg.Collector.DeviceDefaults = map[string]config.PlatformDefaultsConfig{}
	}

	// 配置文件热更新重载会覆盖运行时修改
	dd := cfg.Collector.DeviceDefaults[platform]
	req.apply(&dd)
	cfg.Collector.DeviceDefaults[platform] = dd

	logger.Infof("Device defaults updated: platform=%s", platform)
	ok(c, "更新成功（仅运行时生效）", dd)
}

// GetDatabaseStatus 查询数据库连通性与连接池状态
func (h *AdminHandler) GetDatabaseStatus(c *gin.Context) {
	if err := database.Health(); err != nil {
		fail(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "数据库不可用: "+err.Error())
		return
	}
	ok(c, "数据库正常", database.GetStats())
}

// GetLogLevel 查询当前日志级别
func (h *AdminHandler) GetLogLevel(c *gin.Context) {
	ok(c, "获取日志级别成功", gin.H{"level": logger.GetLevel()})
}

// SetLogLevel 运行时调整日志级别
func (h *AdminHandler) SetLogLevel(c *gin.Context) {
	var req struct {
		Level string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_PARAMS", "参数解析失败: "+err.Error())
		return
	}
	if err := logger.SetLevel(req.Level); err != nil {
		fail(c, http.StatusBadRequest, "INVALID_LEVEL", "无效的日志级别: "+req.Level)
		return
	}
	logger.Infof("Log level changed to %s", req.Level)
	ok(c, "日志级别已更新", gin.H{"level": logger.GetLevel()})
}
