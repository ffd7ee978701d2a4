package h3c_msr

import "github.com/telnetcollectorpro/telnetcollectorpro/addone/interact"

// Plugin 为 h3c_msr 平台交互插件（MSR 系列路由器）
type Plugin struct{}

func (p *Plugin) Name() string { return "h3c_msr" }

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
	interact.Register("h3c_msr", &Plugin{})
}
