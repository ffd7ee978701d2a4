package handler

import (
	"bufio"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/config"
)

// LogsHandler 运行日志查询处理器
type LogsHandler struct{}

func NewLogsHandler() *LogsHandler { return &LogsHandler{} }

// tailDefaultLimit / tailMaxLimit 返回行数的默认值与上限
const (
	tailDefaultLimit = 200
	tailMaxLimit     = 1000
)

// TailLogs 返回日志文件末尾 N 行，支持关键字与级别过滤
// GET /logs/tail?limit=200&q=keyword&level=error
func (h *LogsHandler) TailLogs(c *gin.Context) {
	cfg := config.Get()
	if cfg == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "CONFIG_MISSING", "message": "配置未初始化"})
		return
	}
	path := strings.TrimSpace(cfg.Log.FilePath)
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "LOG_PATH_EMPTY", "message": "日志路径未配置"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(tailDefaultLimit)))
	if limit <= 0 || limit > tailMaxLimit {
		limit = tailDefaultLimit
	}
	keyword := strings.ToLower(strings.TrimSpace(c.Query("q")))
	level := strings.ToLower(strings.TrimSpace(c.Query("level")))

	tail, err := tailLogFile(path, limit, func(line string) bool {
		lc := strings.ToLower(line)
		if keyword != "" && !strings.Contains(lc, keyword) {
			return false
		}
		if level != "" {
			// 同时兼容 json（"level":"x"）与 text 两种日志格式
			if !strings.Contains(lc, `"level":"`+level+`"`) && !strings.Contains(lc, level) {
				return false
			}
		}
		return true
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "READ_FAILED", "message": "读取日志失败: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "SUCCESS",
		"message": "获取日志成功",
		"data": gin.H{
			"path":  path,
			"count": len(tail),
			"lines": tail,
		},
	})
}

// tailLogFile 扫描整个日志文件，保留通过过滤器的末尾 limit 行
// 环形缓冲避免把整个文件留在内存里
func tailLogFile(path string, limit int, keep func(string) bool) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ring := make([]string, 0, limit)
	next := 0
	wrapped := false

	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for s.Scan() {
		line := s.Text()
		if !keep(line) {
			continue
		}
		if len(ring) < limit {
			ring = append(ring, line)
		} else {
			ring[next] = line
			next = (next + 1) % limit
			wrapped = true
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	if !wrapped {
		return ring, nil
	}
	ordered := make([]string, 0, limit)
	ordered = append(ordered, ring[next:]...)
	ordered = append(ordered, ring[:next]...)
	return ordered, nil
}
