package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/telnetcollectorpro/telnetcollectorpro/internal/database"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/model"
	"github.com/telnetcollectorpro/telnetcollectorpro/pkg/logger"
)

// PlatformHandler TELNET平台适配参数处理器
type PlatformHandler struct{}

func NewPlatformHandler() *PlatformHandler { return &PlatformHandler{} }

// CreatePlatformRequest 新增平台请求
type CreatePlatformRequest struct {
	TelnetType string `json:"telnet_type" binding:"required"`
	Vendor     string `json:"vendor"`
	System     string `json:"system"`
	Remark     string `json:"remark"`
}

// UpdatePlatformRequest 更新平台请求：元信息与可选的参数对象
type UpdatePlatformRequest struct {
	Vendor string                 `json:"vendor"`
	System string                 `json:"system"`
	Remark string                 `json:"remark"`
	Params map[string]interface{} `json:"params"`
}

// ListPlatforms 列出所有平台
func (h *PlatformHandler) ListPlatforms(c *gin.Context) {
	db := database.GetDB()
	var list []model.TelnetPlatform
	if err := db.Order("id asc").Find(&list).Error; err != nil {
		logger.Errorf("List telnet platforms failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "DB_ERROR", Message: "查询平台列表失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "OK", Data: list})
}

// CreatePlatform 新增平台，默认填充该类型的参数模板
func (h *PlatformHandler) CreatePlatform(c *gin.Context) {
	var req CreatePlatformRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.TelnetType) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_PARAMS", Message: "参数错误或缺少telnet_type"})
		return
	}
	telnetType := strings.TrimSpace(req.TelnetType)

	db := database.GetDB()
	var exists model.TelnetPlatform
	if err := db.Where("telnet_type = ?", telnetType).First(&exists).Error; err == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "DUPLICATE", Message: "该telnet_type已存在"})
		return
	}

	paramsJSON, _ := json.Marshal(defaultParamsFor(telnetType))
	p := model.TelnetPlatform{
		Type:   telnetType,
		Vendor: req.Vendor,
		System: req.System,
		Remark: req.Remark,
		Params: string(paramsJSON),
	}
	if err := database.WithRetry(func(d *gorm.DB) error { return d.Create(&p).Error }, 6, 100*time.Millisecond); err != nil {
		logger.Errorf("Create telnet platform failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "DB_ERROR", Message: "创建平台失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{Code: "SUCCESS", Message: "创建成功", Data: p})
}

// GetPlatform 获取单个平台详情（params 展开为对象）
func (h *PlatformHandler) GetPlatform(c *gin.Context) {
	db := database.GetDB()
	var p model.TelnetPlatform
	if err := db.First(&p, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: "平台不存在"})
		return
	}
	var params map[string]interface{}
	if p.Params != "" {
		_ = json.Unmarshal([]byte(p.Params), &params)
	}
	if params == nil {
		params = defaultParamsFor(p.Type)
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "OK", Data: gin.H{
		"platform": p,
		"params":   params,
	}})
}

// UpdatePlatform 更新平台元信息与参数（telnet_type 不可修改）
func (h *PlatformHandler) UpdatePlatform(c *gin.Context) {
	var req UpdatePlatformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_PARAMS", Message: "参数错误"})
		return
	}

	db := database.GetDB()
	var p model.TelnetPlatform
	if err := db.First(&p, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: "平台不存在"})
		return
	}

	p.Vendor = req.Vendor
	p.System = req.System
	p.Remark = req.Remark
	if req.Params != nil {
		paramsJSON, err := json.Marshal(req.Params)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_JSON", Message: "参数序列化失败: " + err.Error()})
			return
		}
		p.Params = string(paramsJSON)
	}
	if err := database.WithRetry(func(d *gorm.DB) error { return d.Save(&p).Error }, 6, 100*time.Millisecond); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "DB_ERROR", Message: "更新失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "更新成功", Data: p})
}

// DeletePlatform 删除平台（default 不允许删除）
func (h *PlatformHandler) DeletePlatform(c *gin.Context) {
	db := database.GetDB()
	var p model.TelnetPlatform
	if err := db.First(&p, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Code: "NOT_FOUND", Message: "平台不存在"})
		return
	}
	if p.Type == "default" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "FORBIDDEN", Message: "default 类型不允许删除"})
		return
	}
	if err := database.WithRetry(func(d *gorm.DB) error { return d.Delete(&p).Error }, 6, 100*time.Millisecond); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "DB_ERROR", Message: "删除失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "删除成功", Data: gin.H{"id": p.ID}})
}

// ExportPlatformsYAML 根据数据库内容生成 configs/auto-telnet.yaml
func (h *PlatformHandler) ExportPlatformsYAML(c *gin.Context) {
	db := database.GetDB()
	var list []model.TelnetPlatform
	if err := db.Order("telnet_type asc").Find(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "DB_ERROR", Message: "查询失败: " + err.Error()})
		return
	}
	if len(list) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "EMPTY", Message: "尚未创建任何平台"})
		return
	}

	entries := make([]platformYAMLEntry, 0, len(list))
	for _, p := range list {
		var params map[string]interface{}
		if p.Params != "" {
			_ = json.Unmarshal([]byte(p.Params), &params)
		}
		if params == nil {
			params = defaultParamsFor(p.Type)
		}
		yamlBytes, err := yaml.Marshal(params)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "YAML_ERROR", Message: "序列化失败: " + err.Error()})
			return
		}
		entries = append(entries, platformYAMLEntry{
			Type:   p.Type,
			Vendor: p.Vendor,
			System: p.System,
			Remark: p.Remark,
			YAML:   string(yamlBytes),
		})
	}

	// default 优先，其余按名称排序
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Type == "default" && entries[j].Type != "default" {
			return true
		}
		if entries[i].Type != "default" && entries[j].Type == "default" {
			return false
		}
		return entries[i].Type < entries[j].Type
	})

	outPath := filepath.Join("configs", "auto-telnet.yaml")
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "IO_ERROR", Message: "创建目录失败: " + err.Error()})
		return
	}
	if err := os.WriteFile(outPath, []byte(composeCollectorYAML(entries)), 0644); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "IO_ERROR", Message: "写入文件失败: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "YAML生成成功", Data: gin.H{"path": outPath, "count": len(entries)}})
}

// ImportPlatformsYAML 从YAML文本导入平台参数（collector.device_defaults 结构）
// 已存在条目整体覆盖 params，不存在则创建
func (h *PlatformHandler) ImportPlatformsYAML(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil || len(data) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_BODY", Message: "请求体必须为YAML文本"})
		return
	}

	entries, err := parseDeviceDefaultsEntries(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: "YAML_ERROR", Message: "解析YAML失败: " + err.Error()})
		return
	}

	db := database.GetDB()
	imported := make([]string, 0, len(entries))
	for _, e := range entries {
		var obj map[string]interface{}
		if err := yaml.Unmarshal([]byte(e.YAML), &obj); err != nil {
			logger.Errorf("Parse YAML platform entry failed: type=%s err=%v", e.Type, err)
			continue
		}
		paramsJSON, _ := json.Marshal(obj)

		var p model.TelnetPlatform
		if err := db.Where("telnet_type = ?", e.Type).First(&p).Error; err == nil {
			p.Params = string(paramsJSON)
			if e.Vendor != "" {
				p.Vendor = e.Vendor
			}
			if e.System != "" {
				p.System = e.System
			}
			if e.Remark != "" {
				p.Remark = e.Remark
			}
			if err := database.WithRetry(func(d *gorm.DB) error { return d.Save(&p).Error }, 6, 100*time.Millisecond); err != nil {
				logger.Errorf("Update platform from YAML failed: type=%s err=%v", e.Type, err)
				continue
			}
		} else {
			p = model.TelnetPlatform{Type: e.Type, Vendor: e.Vendor, System: e.System, Remark: e.Remark, Params: string(paramsJSON)}
			if err := database.WithRetry(func(d *gorm.DB) error { return d.Create(&p).Error }, 6, 100*time.Millisecond); err != nil {
				logger.Errorf("Import platform from YAML failed: type=%s err=%v", e.Type, err)
				continue
			}
		}
		imported = append(imported, e.Type)
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "导入完成", Data: gin.H{"imported": imported, "total": len(imported)}})
}

// ======= YAML 拼接辅助 =======

type platformYAMLEntry struct {
	Type   string
	Vendor string
	System string
	Remark string
	YAML   string // 不含顶层键，纯对象块
}

// composeCollectorYAML 生成 collector 包裹的 device_defaults 全量YAML
func composeCollectorYAML(entries []platformYAMLEntry) string {
	var b strings.Builder
	b.WriteString("collector:\n")
	b.WriteString("  device_defaults:\n")
	for _, e := range entries {
		if e.Vendor != "" {
			b.WriteString(fmt.Sprintf("    # vendor: %s\n", e.Vendor))
		}
		if e.System != "" {
			b.WriteString(fmt.Sprintf("    # system: %s\n", e.System))
		}
		if e.Remark != "" {
			b.WriteString(fmt.Sprintf("    # remark: %s\n", e.Remark))
		}
		b.WriteString(fmt.Sprintf("    %s:\n", e.Type))
		b.WriteString(indent("      ", e.YAML))
	}
	return b.String()
}

func indent(prefix, s string) string {
	var b strings.Builder
	for _, line := range strings.SplitAfter(s, "\n") {
		if line == "" {
			continue
		}
		b.WriteString(prefix)
		b.WriteString(line)
	}
	return b.String()
}

// parseDeviceDefaultsEntries 解析 collector.device_defaults（或顶层 device_defaults）结构，
// 保留块前注释中的 vendor/system/remark
func parseDeviceDefaultsEntries(data []byte) ([]platformYAMLEntry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("invalid yaml root")
	}
	root := doc.Content[0]

	dd := findMapValue(root, "collector")
	if dd != nil {
		dd = findMapValue(dd, "device_defaults")
	}
	if dd == nil {
		dd = findMapValue(root, "device_defaults")
	}
	if dd == nil || dd.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("device_defaults not found")
	}

	entries := make([]platformYAMLEntry, 0, len(dd.Content)/2)
	for i := 0; i < len(dd.Content)-1; i += 2 {
		keyNode := dd.Content[i]
		valNode := dd.Content[i+1]

		// 提取注释中的 vendor/system/remark（注释位于块前面）
		vendor, system, remark := "", "", ""
		if hc := strings.TrimSpace(keyNode.HeadComment); hc != "" {
			for _, line := range strings.Split(hc, "\n") {
				l := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "#"))
				low := strings.ToLower(l)
				switch {
				case strings.HasPrefix(low, "vendor:"):
					vendor = strings.TrimSpace(l[len("vendor:"):])
				case strings.HasPrefix(low, "system:"):
					system = strings.TrimSpace(l[len("system:"):])
				case strings.HasPrefix(low, "remark:"):
					remark = strings.TrimSpace(l[len("remark:"):])
				}
			}
		}

		yb, err := yaml.Marshal(valNode)
		if err != nil {
			return nil, err
		}
		entries = append(entries, platformYAMLEntry{Type: keyNode.Value, Vendor: vendor, System: system, Remark: remark, YAML: string(yb)})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Type == "default" && entries[j].Type != "default" {
			return true
		}
		if entries[i].Type != "default" && entries[j].Type == "default" {
			return false
		}
		return entries[i].Type < entries[j].Type
	})
	return entries, nil
}

// findMapValue 在映射节点中按键查找子节点
func findMapValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i < len(m.Content)-1; i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// ======= 默认参数模板（JSON结构） =======

func defaultParamsFor(telnetType string) map[string]interface{} {
	base := map[string]interface{}{
		"prompt_pattern":  `[>#\]]\s*$`,
		"login_prompt":    `(?i)(login|username)[: ]*$`,
		"password_prompt": `(?i)password[: ]*$`,
		"failure_pattern": `(?i)(incorrect|fail)`,
		"page_height":     512,
		"output_filter": map[string]interface{}{
			"prefixes":         []string{"---- More ----", "--More--"},
			"contains":         []string{"ctrl+c esc quit"},
			"case_insensitive": true,
			"trim_space":       true,
		},
		"interact": map[string]interface{}{
			"error_hints":      []string{"error", "invalid input", "unknown command"},
			"case_insensitive": true,
			"trim_space":       true,
		},
	}
	switch telnetType {
	case "cisco_ios":
		base["prompt_pattern"] = `[>#]\s*$`
		base["disable_paging_cmds"] = []string{"terminal length 0"}
		base["config_mode_clis"] = []string{"configure terminal"}
		base["config_exit_cli"] = "end"
		base["timeout"] = map[string]interface{}{"timeout_all": 60, "dial_timeout": 2, "auth_timeout": 5}
		base["interact"] = map[string]interface{}{
			"error_hints":      []string{"% invalid input detected", "% incomplete command", "% unknown command"},
			"case_insensitive": true,
			"trim_space":       true,
		}
	case "huawei", "huawei_s", "huawei_ce":
		base["prompt_pattern"] = `[>\]]\s*$`
		base["disable_paging_cmds"] = []string{"screen-length 0 temporary"}
		base["config_mode_clis"] = []string{"system-view"}
		base["config_exit_cli"] = "quit"
		base["timeout"] = map[string]interface{}{"timeout_all": 45, "dial_timeout": 2, "auth_timeout": 5}
		base["interact"] = map[string]interface{}{
			"error_hints":      []string{"error:", "unrecognized command"},
			"case_insensitive": true,
			"trim_space":       true,
		}
	case "h3c_s", "h3c_sr", "h3c_msr":
		base["prompt_pattern"] = `[>\]]\s*$`
		base["disable_paging_cmds"] = []string{"screen-length disable"}
		base["config_mode_clis"] = []string{"system-view"}
		base["config_exit_cli"] = "quit"
		base["timeout"] = map[string]interface{}{"timeout_all": 45, "dial_timeout": 2, "auth_timeout": 5}
	}
	return base
}
