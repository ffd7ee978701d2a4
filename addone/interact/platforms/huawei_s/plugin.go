package huawei_s

import "github.com/telnetcollectorpro/telnetcollectorpro/addone/interact"

// Plugin 为 huawei_s 平台交互插件（S 系列交换机）
type Plugin struct{}

func (p *Plugin) Name() string { return "huawei_s" }

func (p *Plugin) Defaults() interact.InteractDefaults {
	return interact.InteractDefaults{
		Timeout:           60,
		Retries:           2,
		PromptPattern:     `[>\]#]\s*$`,
		DisablePagingCmds: []string{"screen-length 0 temporary"},
		ErrorHints:        []string{"error:", "unrecognized command"},
		CommandIntervalMS: 300,
	}
}

func init() {
	interact.Register("huawei_s", &Plugin{})
}
