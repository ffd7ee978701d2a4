package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/telnetcollectorpro/telnetcollectorpro/api/handler"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/service"
	"github.com/telnetcollectorpro/telnetcollectorpro/pkg/logger"
)

// SetupRouter 设置路由
func SetupRouter(collectorService *service.CollectorService, backupService *service.BackupService, deployService *service.DeployService) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORSMiddleware())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware())

	collectorHandler := handler.NewCollectorHandler(collectorService)
	deviceHandler := handler.NewDeviceHandler()
	backupHandler := handler.NewBackupHandler(backupService)
	deployHandler := handler.NewDeployHandler(deployService)
	platformHandler := handler.NewPlatformHandler()
	simCmdHandler := handler.NewSimDeviceCmdHandler()
	logsHandler := handler.NewLogsHandler()
	adminHandler := handler.NewAdminHandler()

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":    "Telnet Collector Pro",
			"version": "1.0.0",
			"status":  "running",
		})
	})

	// API v1 路由组
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", collectorHandler.Health)

		// 采集器相关路由
		collector := v1.Group("/collector")
		{
			collector.POST("/batch", collectorHandler.BatchExecute)
			collector.POST("/batch/custom", collectorHandler.BatchExecuteCustomer)
			collector.POST("/batch/system", collectorHandler.BatchExecuteSystem)
			collector.GET("/task/:task_id/status", collectorHandler.GetTaskStatus)
			collector.POST("/task/:task_id/cancel", collectorHandler.CancelTask)
			collector.GET("/stats", collectorHandler.GetStats)
		}

		// 设备管理路由
		devices := v1.Group("/devices")
		{
			devices.POST("", deviceHandler.CreateDevice)
			devices.GET("", deviceHandler.ListDevices)
			devices.GET("/:id", deviceHandler.GetDevice)
			devices.PUT("/:id", deviceHandler.UpdateDevice)
			devices.DELETE("/:id", deviceHandler.DeleteDevice)
			devices.POST("/:id/test", deviceHandler.TestConnection)
			devices.PUT("/:id/enabled", deviceHandler.SetEnabled)
		}

		// 备份与部署
		v1.POST("/backup/batch", backupHandler.BatchBackup)
		v1.POST("/deploy/fast", deployHandler.FastDeploy)

		// 平台参数管理
		platforms := v1.Group("/platforms")
		{
			platforms.POST("", platformHandler.CreatePlatform)
			platforms.GET("", platformHandler.ListPlatforms)
			platforms.GET("/export", platformHandler.ExportPlatformsYAML)
			platforms.POST("/import", platformHandler.ImportPlatformsYAML)
			platforms.GET("/:id", platformHandler.GetPlatform)
			platforms.PUT("/:id", platformHandler.UpdatePlatform)
			platforms.DELETE("/:id", platformHandler.DeletePlatform)
		}

		// 模拟器命令管理
		simcmds := v1.Group("/sim-device-commands")
		{
			simcmds.POST("", simCmdHandler.CreateSimDeviceCmd)
			simcmds.GET("", simCmdHandler.ListSimDeviceCmds)
			simcmds.GET("/:id", simCmdHandler.GetSimDeviceCmd)
			simcmds.PUT("/:id", simCmdHandler.UpdateSimDeviceCmd)
			simcmds.DELETE("/:id", simCmdHandler.DeleteSimDeviceCmd)
		}

		// 运行管理
		admin := v1.Group("/admin")
		{
			admin.GET("/device-defaults", adminHandler.GetDeviceDefaults)
			admin.PUT("/device-defaults/:platform", adminHandler.UpdateDeviceDefaults)
			admin.GET("/log-level", adminHandler.GetLogLevel)
			admin.PUT("/log-level", adminHandler.SetLogLevel)
			admin.GET("/database", adminHandler.GetDatabaseStatus)
		}

		v1.GET("/logs/tail", logsHandler.TailLogs)
	}

	// 404处理
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
			"path":    c.Request.URL.Path,
		})
	})

	return r
}

// corsHeaders 跨域响应头
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":      "*",
	"Access-Control-Allow-Credentials": "true",
	"Access-Control-Allow-Headers":     "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID",
	"Access-Control-Allow-Methods":     "POST, OPTIONS, GET, PUT, DELETE",
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		for k, v := range corsHeaders {
			c.Header(k, v)
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// RequestIDMiddleware 请求ID中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// LoggingMiddleware 日志中间件
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
			"client_ip":  c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusBadRequest {
			entry.Error("HTTP request failed")
			return
		}
		entry.Info("HTTP request")
	}
}
