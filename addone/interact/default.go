package interact

// InteractDefaults 定义平台的TELNET交互默认参数。
// 空字段表示使用会话引擎内置的通用模式。
type InteractDefaults struct {
	Timeout           int // 任务总预算，秒
	Retries           int // 登录重试次数
	PromptPattern     string
	LoginPrompt       string
	PasswordPrompt    string
	FailurePattern    string
	DisablePagingCmds []string
	PageHeight        int // NAWS 通告的窗口高度，0 表示不调整
	ErrorHints        []string
	CommandIntervalMS int
}

// InteractPlugin 交互插件接口
type InteractPlugin interface {
	// Name 插件名称（如：default、cisco_ios、huawei_s）
	Name() string
	// Defaults 返回该平台的交互默认参数
	Defaults() InteractDefaults
}

// DefaultPlugin 系统默认交互插件
type DefaultPlugin struct{}

func (p *DefaultPlugin) Name() string { return "default" }

func (p *DefaultPlugin) Defaults() InteractDefaults {
	return InteractDefaults{
		Timeout:           30,
		Retries:           1,
		ErrorHints:        []string{"error", "invalid", "unrecognized", "incomplete", "ambiguous"},
		CommandIntervalMS: 150,
	}
}
