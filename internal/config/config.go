package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局应用配置
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Collector  CollectorConfig  `mapstructure:"collector"`
	Controller ControllerConfig `mapstructure:"controller"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Telnet     TelnetConfig     `mapstructure:"telnet"`
	SSH        SSHConfig        `mapstructure:"ssh"`
	Log        LogConfig        `mapstructure:"log"`
	Backup     BackupConfig     `mapstructure:"backup"`
	Deploy     DeployConfig     `mapstructure:"deploy"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	SimulateEnable bool          `mapstructure:"simulate_enable"`
}

// ControllerConfig 控制器注册配置，host 为空时采集器以独立模式运行
type ControllerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	RegisterRetry     time.Duration `mapstructure:"register_retry"`
}

// CollectorConfig 采集器主体配置
type CollectorConfig struct {
	ID         string   `mapstructure:"id"`
	Type       string   `mapstructure:"type"`
	Version    string   `mapstructure:"version"`
	Tags       []string `mapstructure:"tags"`
	Threads    int      `mapstructure:"threads"`
	Concurrent int      `mapstructure:"concurrent"`
	// RetryFlags 接口未指定重试次数时的默认值
	RetryFlags int `mapstructure:"retry_flags"`
	// ConcurrencyProfile 并发档位 S/M/L/XL，设置后覆盖 concurrent 数值
	ConcurrencyProfile string `mapstructure:"concurrency_profile"`
	// ConcurrencyProfiles 档位到并发/线程数的映射
	ConcurrencyProfiles map[string]ConcurrencyProfileConfig `mapstructure:"concurrency_profiles"`
	// OutputFilter 原始输出的行级过滤，用于剔除分页提示
	OutputFilter OutputFilterConfig `mapstructure:"output_filter"`
	// Interact 命令错误提示匹配
	Interact InteractConfig `mapstructure:"interact"`
	// DeviceDefaults 按设备平台覆盖的交互参数（提示符、分页、认证提示）
	DeviceDefaults map[string]PlatformDefaultsConfig `mapstructure:"device_defaults"`
}

// ConcurrencyProfileConfig 单个并发档位
type ConcurrencyProfileConfig struct {
	Concurrent int `mapstructure:"concurrent"`
	Threads    int `mapstructure:"threads"`
}

// OutputFilterConfig 输出过滤规则
type OutputFilterConfig struct {
	// Prefixes 行前缀匹配，命中的整行被移除（如 "---- More ----"）
	Prefixes []string `mapstructure:"prefixes"`
	// Contains 行内子串匹配（如 Cisco 的 "--more--"）
	Contains        []string `mapstructure:"contains"`
	CaseInsensitive bool     `mapstructure:"case_insensitive"`
	// TrimSpace 匹配前先去除行首尾空格
	TrimSpace bool `mapstructure:"trim_space"`
}

// InteractConfig 命令回显中的错误提示匹配规则
type InteractConfig struct {
	// ErrorHints 判定命令失败的提示前缀
	ErrorHints      []string `mapstructure:"error_hints"`
	CaseInsensitive bool     `mapstructure:"case_insensitive"`
	TrimSpace       bool     `mapstructure:"trim_space"`
}

// PlatformTimeoutConfig 平台层 timeout 嵌套块，结构与全局 telnet.timeout 一致
type PlatformTimeoutConfig struct {
	TimeoutAll     time.Duration `mapstructure:"timeout_all"`
	DialTimeoutSec int           `mapstructure:"dial_timeout"`
	AuthTimeoutSec int           `mapstructure:"auth_timeout"`
}

// PlatformDefaultsConfig 设备平台级交互参数，覆盖插件内置默认值
type PlatformDefaultsConfig struct {
	// PromptPattern 命令回显结束的提示符正则，为空时使用引擎内置
	PromptPattern string `mapstructure:"prompt_pattern"`
	// LoginPrompt/PasswordPrompt 登录阶段提示匹配正则
	LoginPrompt    string `mapstructure:"login_prompt"`
	PasswordPrompt string `mapstructure:"password_prompt"`
	// FailurePattern 认证失败提示正则
	FailurePattern string `mapstructure:"failure_pattern"`
	// DisablePagingCmds 登录成功后按序注入的关闭分页命令
	DisablePagingCmds []string `mapstructure:"disable_paging_cmds"`
	// PageHeight 长输出命令执行期间通告的终端高度，0 表示不调整
	PageHeight int `mapstructure:"page_height"`
	// ErrorHints 平台级错误提示前缀
	ErrorHints []string `mapstructure:"error_hints"`
	// OutputFilter 平台级输出过滤，与全局 collector.output_filter 合并
	OutputFilter OutputFilterConfig `mapstructure:"output_filter"`
	// Interact 平台级错误提示匹配
	Interact InteractConfig `mapstructure:"interact"`
	// ConfigModeCLIs 进入配置模式命令，按序尝试
	ConfigModeCLIs []string `mapstructure:"config_mode_clis"`
	// ConfigExitCLI 退出配置模式命令
	ConfigExitCLI string                `mapstructure:"config_exit_cli"`
	Timeout       PlatformTimeoutConfig `mapstructure:"timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	SQLite SQLiteConfig `mapstructure:"sqlite"`
}

// SQLiteConfig SQLite 连接参数
type SQLiteConfig struct {
	Path            string        `mapstructure:"path"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig 原始采集数据的对象存储配置
type StorageConfig struct {
	Minio MinioConfig `mapstructure:"minio"`
}

// MinioConfig 对象存储连接参数，host 为空时不写对象存储
type MinioConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
}

// TelnetConfig TELNET 采集引擎配置
type TelnetConfig struct {
	// Timeout 整体执行窗口；不直接映射 telnet.timeout（与嵌套块冲突），由 Load 手动填充
	Timeout time.Duration `mapstructure:"-"`
	// ConnectTimeout TCP 拨号超时
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// AuthTimeout 登录握手（用户名/密码到首个提示符）的总预算
	AuthTimeout time.Duration `mapstructure:"auth_timeout"`
	// ReadTimeout 单次读取的默认截止时间
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WindowWidth/WindowHeight 连接建立后通告的默认终端尺寸
	WindowWidth  int `mapstructure:"window_width"`
	WindowHeight int `mapstructure:"window_height"`
	// Debug 输出原始读写数据的调试日志
	Debug bool `mapstructure:"debug"`
}

// SSHConfig SSH 兼容协议配置，collect_protocol=ssh 时使用
type SSHConfig struct {
	Timeout           time.Duration `mapstructure:"-"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	KeepAliveInterval time.Duration `mapstructure:"keep_alive_interval"`
	MaxSessions       int           `mapstructure:"max_sessions"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// BackupConfig 备份服务配置
type BackupConfig struct {
	// StorageBackend 默认存储后端 local|minio
	StorageBackend string `mapstructure:"storage_backend"`
	// Prefix 顶层保存目录前缀，与请求中的 save_dir 组合
	Prefix string            `mapstructure:"prefix"`
	Local  LocalBackupConfig `mapstructure:"local"`
	// Aggregate 是否将全部 CLI 输出汇总到单一文件
	Aggregate AggregateConfig `mapstructure:"aggregate"`
}

// LocalBackupConfig 本地备份存储参数
type LocalBackupConfig struct {
	BaseDir        string `mapstructure:"base_dir"`
	Prefix         string `mapstructure:"prefix"`
	MkdirIfMissing bool   `mapstructure:"mkdir_if_missing"`
	Compress       bool   `mapstructure:"compress"`
}

// AggregateConfig 聚合写入参数
type AggregateConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Filename string `mapstructure:"filename"` // 可带扩展名，如 all_cli.txt
	// AggregateOnly 仅生成聚合文件，跳过逐命令写入
	AggregateOnly bool `mapstructure:"aggregate_only"`
}

// DeployConfig 配置下发参数
type DeployConfig struct {
	// 下发前后等待时间（毫秒），控制前后状态采集节奏
	DeployWaitMS int `mapstructure:"deploy_wait_ms"`
}

var globalConfig *Config

// Load 读取并解析配置文件，path 为空时在 configs 目录下搜索
func Load(configPath string) (*Config, error) {
	viper.SetConfigType("yaml")
	setDefaults()

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		for _, dir := range []string{"./configs", "../configs", "../../configs"} {
			viper.AddConfigPath(dir)
		}
	}

	// 环境变量覆盖：TELNET_COLLECTOR_SERVER_PORT 等
	viper.SetEnvPrefix("TELNET_COLLECTOR")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyCompatKeys(&config)
	applyTimeoutKeys(&config)

	// 采集器 ID 支持 ${ENV} 引用
	config.Collector.ID = expandEnvRef(config.Collector.ID)

	applyConcurrencyProfile(&config)

	globalConfig = &config
	return &config, nil
}

// applyCompatKeys 兼容历史配置键名
func applyCompatKeys(cfg *Config) {
	// backup.backup_backend -> backup.storage_backend
	if strings.TrimSpace(cfg.Backup.StorageBackend) == "" && viper.IsSet("backup.backup_backend") {
		if bb := strings.TrimSpace(viper.GetString("backup.backup_backend")); bb != "" {
			cfg.Backup.StorageBackend = bb
		}
	}
	// 顶层 deploy_wait_ms -> deploy.deploy_wait_ms
	if cfg.Deploy.DeployWaitMS <= 0 && viper.IsSet("deploy_wait_ms") {
		if val := viper.GetInt("deploy_wait_ms"); val > 0 {
			cfg.Deploy.DeployWaitMS = val
		}
	}
}

// applyTimeoutKeys 填充不经 Unmarshal 的 timeout 字段
// telnet.timeout 既可以是时长直出键，也可以是嵌套块，嵌套块优先
func applyTimeoutKeys(cfg *Config) {
	if viper.IsSet("telnet.timeout.timeout_all") {
		if to := viper.GetDuration("telnet.timeout.timeout_all"); to > 0 {
			cfg.Telnet.Timeout = to
		}
	}
	if cfg.Telnet.Timeout <= 0 {
		if to := viper.GetDuration("telnet.timeout"); to > 0 {
			cfg.Telnet.Timeout = to
		}
	}
	// 握手阶段拆分超时（秒），dial 覆盖 ConnectTimeout，auth 覆盖 AuthTimeout
	if viper.IsSet("telnet.timeout.dial_timeout") {
		if sec := viper.GetInt("telnet.timeout.dial_timeout"); sec > 0 {
			cfg.Telnet.ConnectTimeout = time.Duration(sec) * time.Second
		}
	}
	if viper.IsSet("telnet.timeout.auth_timeout") {
		if sec := viper.GetInt("telnet.timeout.auth_timeout"); sec > 0 {
			cfg.Telnet.AuthTimeout = time.Duration(sec) * time.Second
		}
	}
	if cfg.SSH.Timeout <= 0 {
		if to := viper.GetDuration("ssh.timeout"); to > 0 {
			cfg.SSH.Timeout = to
		}
	}
}

func setDefaults() {
	// 输出过滤：默认剔除 H3C/Huawei 分页提示行与 Cisco --more-- 行
	viper.SetDefault("collector.output_filter.case_insensitive", true)
	viper.SetDefault("collector.output_filter.trim_space", true)
	// 前缀必须是完整的分页提示串，裸 "more" 会误伤正文行
	viper.SetDefault("collector.output_filter.prefixes", []string{"---- More ----", "--More--"})
	viper.SetDefault("collector.output_filter.contains", []string{"--more--"})

	// 错误提示匹配
	viper.SetDefault("collector.interact.case_insensitive", true)
	viper.SetDefault("collector.interact.trim_space", true)
	viper.SetDefault("collector.interact.error_hints", []string{"ERROR:", "invalid parameters detect", "% Invalid input"})

	// 设备平台默认项完全由配置文件控制，兜底项可配置 collector.device_defaults.default

	// 并发档位：S=2c4g M=4c8g L=8c16g XL=16c32g
	viper.SetDefault("collector.concurrency_profile", "S")
	viper.SetDefault("collector.concurrency_profiles", map[string]map[string]int{
		"S":  {"concurrent": 8, "threads": 32},
		"M":  {"concurrent": 16, "threads": 64},
		"L":  {"concurrent": 32, "threads": 128},
		"XL": {"concurrent": 64, "threads": 256},
	})
	viper.SetDefault("collector.retry_flags", 1)

	// 备份服务
	viper.SetDefault("backup.storage_backend", "local")
	viper.SetDefault("backup.prefix", "configs")
	viper.SetDefault("backup.local.base_dir", "./data/backups")
	viper.SetDefault("backup.local.prefix", "")
	viper.SetDefault("backup.local.mkdir_if_missing", true)
	viper.SetDefault("backup.local.compress", false)
	viper.SetDefault("backup.aggregate.enabled", true)
	viper.SetDefault("backup.aggregate.filename", "all_cli.txt")
	viper.SetDefault("backup.aggregate.aggregate_only", false)

	// TELNET 超时：整体窗口与握手阶段拆分
	viper.SetDefault("telnet.timeout.timeout_all", 60*time.Second)
	viper.SetDefault("telnet.timeout.dial_timeout", 5)
	viper.SetDefault("telnet.timeout.auth_timeout", 10)
	viper.SetDefault("telnet.read_timeout", 10*time.Second)
	// 默认通告 80x24 终端
	viper.SetDefault("telnet.window_width", 80)
	viper.SetDefault("telnet.window_height", 24)

	// SSH 兼容协议
	viper.SetDefault("ssh.timeout", 60*time.Second)
	viper.SetDefault("ssh.connect_timeout", 10*time.Second)

	// 控制器心跳
	viper.SetDefault("controller.heartbeat_interval", 30*time.Second)
	viper.SetDefault("controller.register_retry", 10*time.Second)

	viper.SetDefault("server.simulate_enable", false)
	viper.SetDefault("log.level", "info")
}

// Get 获取全局配置，Load 之前返回 nil
func Get() *Config {
	return globalConfig
}

// expandEnvRef 解析 ${ENV} 形式的引用，环境变量缺失时保留原值
func expandEnvRef(s string) string {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return s
	}
	name := strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}")
	if value := os.Getenv(name); value != "" {
		return value
	}
	return s
}

// applyConcurrencyProfile 按档位覆盖并发与线程数
func applyConcurrencyProfile(cfg *Config) {
	prof := strings.TrimSpace(cfg.Collector.ConcurrencyProfile)
	if prof == "" {
		return
	}
	// 兼容 "Concurrency-S" 这类带前缀的写法
	p := strings.ToUpper(prof)
	if after, ok := strings.CutPrefix(p, "CONCURRENCY-"); ok {
		p = after
	}

	profCfg, ok := profileTable(cfg)[p]
	if !ok {
		return
	}
	if profCfg.Concurrent > 0 {
		cfg.Collector.Concurrent = profCfg.Concurrent
	}
	if profCfg.Threads > 0 {
		cfg.Collector.Threads = profCfg.Threads
	}
}

// profileTable 归一化档位映射，键统一大写。
// 兼容旧格式（档位直接映射并发数）与新格式（concurrent+threads 子键）。
func profileTable(cfg *Config) map[string]ConcurrencyProfileConfig {
	mapping := make(map[string]ConcurrencyProfileConfig)
	if len(cfg.Collector.ConcurrencyProfiles) > 0 {
		for k, v := range cfg.Collector.ConcurrencyProfiles {
			mapping[strings.ToUpper(k)] = v
		}
		return mapping
	}
	raw, ok := viper.Get("collector.concurrency_profiles").(map[string]interface{})
	if !ok {
		return mapping
	}
	for k, v := range raw {
		key := strings.ToUpper(k)
		if sub, ok := v.(map[string]interface{}); ok {
			var cp ConcurrencyProfileConfig
			if c, ok := sub["concurrent"]; ok {
				cp.Concurrent = asInt(c)
			}
			if t, ok := sub["threads"]; ok {
				cp.Threads = asInt(t)
			}
			mapping[key] = cp
			continue
		}
		if n := asInt(v); n > 0 {
			mapping[key] = ConcurrencyProfileConfig{Concurrent: n}
		}
	}
	return mapping
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return i
		}
	}
	return 0
}

// GetServerAddr 获取服务监听地址
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetControllerAddr 获取控制器地址，未配置时返回空串
func (c *Config) GetControllerAddr() string {
	if strings.TrimSpace(c.Controller.Host) == "" || c.Controller.Port <= 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Controller.Host, c.Controller.Port)
}

// GetTimeoutAll 获取平台的整体执行窗口（秒）
// 平台级 timeout.timeout_all 优先，其次全局 telnet 超时
func (c *Config) GetTimeoutAll(platform string) int {
	if pd, ok := c.Collector.DeviceDefaults[platform]; ok {
		if pd.Timeout.TimeoutAll > 0 {
			if pd.Timeout.TimeoutAll < time.Second {
				// 兼容直接写秒数的配置（viper 将裸数字解析为纳秒）
				return int(pd.Timeout.TimeoutAll)
			}
			return int(pd.Timeout.TimeoutAll / time.Second)
		}
	}
	if c.Telnet.Timeout > 0 {
		return int(c.Telnet.Timeout / time.Second)
	}
	return 60
}
