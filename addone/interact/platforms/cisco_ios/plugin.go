package cisco_ios

import "github.com/telnetcollectorpro/telnetcollectorpro/addone/interact"

// Plugin 为 cisco_ios 平台交互插件
type Plugin struct{}

func (p *Plugin) Name() string { return "cisco_ios" }

func (p *Plugin) Defaults() interact.InteractDefaults {
	return interact.InteractDefaults{
		Timeout:           60,
		Retries:           2,
		PromptPattern:     `[>#]\s*$`,
		DisablePagingCmds: []string{"terminal length 0"},
		ErrorHints:        []string{"% invalid input detected", "% incomplete command", "% ambiguous command", "unknown command"},
		CommandIntervalMS: 200,
	}
}

func init() {
	// 注册到交互插件中心
	interact.Register("cisco_ios", &Plugin{})
}
