package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/telnetcollectorpro/telnetcollectorpro/internal/config"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/service"
)

// DeployHandler 配置下发处理器
type DeployHandler struct {
	svc *service.DeployService
}

func NewDeployHandler(svc *service.DeployService) *DeployHandler {
	return &DeployHandler{svc: svc}
}

// FastDeploy 处理 api/v1/deploy/fast
func (h *DeployHandler) FastDeploy(c *gin.Context) {
	var req service.DeployFastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "message": err.Error()})
		return
	}

	if strings.TrimSpace(req.TaskType) == "" {
		req.TaskType = "exec"
	}

	// 默认超时：优先全局 telnet.timeout.timeout_all，否则回退 15s
	if req.Timeout <= 0 {
		if cfg := config.Get(); cfg != nil && cfg.Telnet.Timeout > 0 {
			req.Timeout = int(cfg.Telnet.Timeout.Seconds())
		} else {
			req.Timeout = 15
		}
	}

	resp, err := h.svc.ExecuteFast(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "DEPLOY_FAILED", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}
