package h3c_s

import "github.com/telnetcollectorpro/telnetcollectorpro/addone/interact"

// Plugin 为 h3c_s 平台交互插件（S 系列交换机）
type Plugin struct{}

func (p *Plugin) Name() string { return "h3c_s" }

func (p *Plugin) Defaults() interact.InteractDefaults {
	return interact.InteractDefaults{
		Timeout:           75,
		Retries:           2,
		PromptPattern:     `[>\]#]\s*$`,
		DisablePagingCmds: []string{"screen-length disable"},
		ErrorHints:        []string{"error:", "unrecognized command"},
		CommandIntervalMS: 150,
	}
}

func init() {
	interact.Register("h3c_s", &Plugin{})
}
