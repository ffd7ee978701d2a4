package huawei_ce

import "github.com/telnetcollectorpro/telnetcollectorpro/addone/interact"

// Plugin 为 huawei_ce 平台交互插件（CE 系列数据中心交换机）
type Plugin struct{}

func (p *Plugin) Name() string { return "huawei_ce" }

func (p *Plugin) Defaults() interact.InteractDefaults {
	// 数据中心设备命令回显较重，适当增加超时
	return interact.InteractDefaults{
		Timeout:           75,
		Retries:           2,
		PromptPattern:     `[>\]#]\s*$`,
		DisablePagingCmds: []string{"screen-length 0 temporary"},
		ErrorHints:        []string{"error:", "unrecognized command", "incomplete"},
		CommandIntervalMS: 180,
	}
}

func init() {
	interact.Register("huawei_ce", &Plugin{})
}
