package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/telnetcollectorpro/telnetcollectorpro/api/router"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/config"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/database"
	"github.com/telnetcollectorpro/telnetcollectorpro/internal/service"
	"github.com/telnetcollectorpro/telnetcollectorpro/pkg/logger"
	"github.com/telnetcollectorpro/telnetcollectorpro/simulate"
)

const (
	configPath     = "configs/config.yaml"
	simulatePath   = "simulate/simulate.yaml"
	reloadDebounce = 300 * time.Millisecond
	shutdownGrace  = 30 * time.Second
)

// loggerConfig 由全局配置构造日志配置，启动与热更新共用。
func loggerConfig(cfg *config.Config) logger.Config {
	return logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}
}

// simController 统一管理模拟服务的启停与热更新，
// 两个热更新协程会并发访问，需要加锁。
type simController struct {
	mu  sync.Mutex
	mgr *simulate.Manager
}

// ensureStarted 未运行时按配置文件启动模拟服务，reason 标记触发来源。
func (s *simController) ensureStarted(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mgr != nil {
		return
	}
	if _, err := os.Stat(simulatePath); err != nil {
		logger.Warn("Simulate: simulate.yaml missing, skip starting simulate servers", "path", simulatePath, "error", err)
		return
	}
	sc, err := simulate.LoadConfig(simulatePath)
	if err != nil {
		logger.Warn("Simulate: failed to load simulate.yaml", "reason", reason, "error", err)
		return
	}
	mgr, err := simulate.Start(sc)
	if err != nil {
		logger.Warn("Simulate: failed to start", "reason", reason, "error", err)
		return
	}
	s.mgr = mgr
	logger.Info("Simulate: started", "reason", reason, "namespaces", len(sc.Namespace))
	// 汇总输出所有命名空间端口，便于快速确认
	ports := make([]string, 0, len(sc.Namespace))
	for ns, nsCfg := range sc.Namespace {
		ports = append(ports, fmt.Sprintf("%s:%d", ns, nsCfg.Port))
	}
	logger.Info("Simulate: ports enabled", "ports", strings.Join(ports, ", "))
}

func (s *simController) stop(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mgr == nil {
		return
	}
	s.mgr.Stop()
	s.mgr = nil
	logger.Info("Simulate: stopped", "reason", reason)
}

// reload 处理 simulate.yaml 变化：已运行则热更新，未运行且开关打开则启动。
func (s *simController) reload(sc *simulate.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mgr == nil {
		mgr, err := simulate.Start(sc)
		if err != nil {
			logger.Warn("Simulate: start failed on simulate reload", "error", err)
			return
		}
		s.mgr = mgr
		logger.Info("Simulate: started by simulate reload")
		return
	}
	if err := s.mgr.Reload(sc); err != nil {
		logger.Warn("Simulate: hot reload failed", "error", err)
	} else {
		logger.Info("Simulate: hot reload success")
	}
}

// watchFile 监听单个文件变化并在去抖后回调，name 仅用于日志标识。
func watchFile(name, path string, onChange func()) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("File watch init failed", "file", name, "error", err)
		return
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		logger.Warn("File watch add failed", "file", name, "path", path, "error", err)
		return
	}
	var debounce *time.Timer
	for {
		select {
		case ev := <-watcher.Events:
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, onChange)
		case err := <-watcher.Errors:
			logger.Warn("File watch error", "file", name, "error", err)
		}
	}
}

func main() {
	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := logger.Init(loggerConfig(cfg)); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Starting Telnet Collector Pro Server", "version", "1.0.0")

	// 打印并发档位应用情况（按实际 workers 与 threads 输出）
	if prof := strings.TrimSpace(cfg.Collector.ConcurrencyProfile); prof != "" {
		logger.Info("Concurrency profile applied", "profile", prof, "workers", cfg.Collector.Concurrent, "threads", cfg.Collector.Threads)
	} else {
		logger.Info("Concurrency set by numeric value", "workers", cfg.Collector.Concurrent, "threads", cfg.Collector.Threads)
	}

	// 初始化数据库
	if err := database.InitSQLite(cfg.Database.SQLite); err != nil {
		logger.Fatal("Failed to initialize database", "error", err)
	}
	defer database.Close()

	// 创建采集器服务
	collectorService := service.NewCollectorService(cfg)
	ctx := context.Background()
	if err := collectorService.Start(ctx); err != nil {
		logger.Fatal("Failed to start collector service", "error", err)
	}
	defer collectorService.Stop()

	// 创建备份服务
	backupService := service.NewBackupService(cfg, collectorService)

	// 创建部署服务（注入 CollectorService 以便编排前后采集）
	deployService := service.NewDeployService(cfg, collectorService)
	if err := deployService.Start(ctx); err != nil {
		logger.Fatal("Failed to start deploy service", "error", err)
	}
	defer deployService.Stop()

	// 创建注册服务（控制器未配置时进入本地独立模式）
	registryService := service.NewRegistryService(cfg, collectorService)
	if err := registryService.Start(ctx); err != nil {
		logger.Fatal("Failed to start registry service", "error", err)
	}
	defer registryService.Stop()

	// 启动模拟服务（可选）
	sim := &simController{}
	if cfg.Server.SimulateEnable {
		sim.ensureStarted("startup")
	}
	defer sim.stop("shutdown")

	// 设置路由
	r := router.SetupRouter(collectorService, backupService, deployService)

	// 创建HTTP服务器
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	// 启动服务器
	go func() {
		logger.Info("Server starting", "port", cfg.Server.Port, "mode", cfg.Server.Mode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// 配置文件监听与热更新
	go watchFile("config", configPath, func() {
		newCfg, err := config.Load(configPath)
		if err != nil {
			logger.Warn("Config reload failed", "error", err)
			return
		}
		// 原地覆盖，保持指针不变
		*cfg = *newCfg
		// 刷新日志配置
		_ = logger.Init(loggerConfig(cfg))
		logger.Info("Config reloaded")
		// 模拟开关变化时动态启停
		if cfg.Server.SimulateEnable {
			sim.ensureStarted("config reload")
		} else {
			sim.stop("config reload")
		}
	})

	// simulate.yaml 监听与热更新
	if _, err := os.Stat(simulatePath); err != nil {
		logger.Warn("Simulate: simulate.yaml not found, skip watch", "error", err)
	} else {
		go watchFile("simulate", simulatePath, func() {
			sc, err := simulate.LoadConfig(simulatePath)
			if err != nil {
				logger.Warn("Simulate: reload simulate.yaml failed", "error", err)
				return
			}
			if !cfg.Server.SimulateEnable {
				logger.Info("Simulate: reload ignored, simulate disabled")
				return
			}
			sim.reload(sc)
		})
	}

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")

	// 优雅关闭服务器
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	} else {
		logger.Info("Server shutdown complete")
	}
}
