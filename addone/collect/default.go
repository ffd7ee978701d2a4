package collect

// ParseContext 解析上下文
type ParseContext struct {
	Platform string
	Command  string
	// 以下信息用于落库与关联
	TaskID   string
	Status   string        // 任务状态（success/failed）
	RawPaths RawStorePaths // 原始数据映射（命令->对象路径）
}

// ParseOutput 解析输出（用于格式化入库）
type ParseOutput struct {
	Platform string
	Command  string
	Raw      string
	Rows     []FormattedRow
}

// CollectPlugin 采集插件接口
type CollectPlugin interface {
	Name() string
	// SystemCommands 返回该平台系统内置采集命令（用于 collect_origin=system）
	SystemCommands() []string
	// Parse 将原始命令输出解析为结构化数据
	Parse(ctx ParseContext, raw string) (ParseOutput, error)
}

// DefaultPlugin 系统默认采集插件
type DefaultPlugin struct{}

func (p *DefaultPlugin) Name() string { return "default" }

// SystemCommands 默认平台不提供内置命令
func (p *DefaultPlugin) SystemCommands() []string { return nil }

func (p *DefaultPlugin) Parse(ctx ParseContext, raw string) (ParseOutput, error) {
	// 默认不解析，直接返回原始数据包裹
	return ParseOutput{
		Platform: ctx.Platform,
		Command:  ctx.Command,
		Raw:      raw,
		Rows:     nil,
	}, nil
}
