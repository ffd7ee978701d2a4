package huawei_ce

import (
	"strings"

	"github.com/telnetcollectorpro/telnetcollectorpro/addone/collect"
)

// Plugin 为 huawei_ce 平台采集插件（华为 CE 数据中心交换机）
type Plugin struct{}

func (p *Plugin) Name() string { return "huawei_ce" }

// SystemCommands 返回系统内置的华为 CE 采集命令
func (p *Plugin) SystemCommands() []string {
	return []string{
		"display version",
		"display current-configuration",
	}
}

func (p *Plugin) Parse(ctx collect.ParseContext, raw string) (collect.ParseOutput, error) {
	cmd := strings.ToLower(strings.TrimSpace(ctx.Command))
	switch {
	case cmd == "display version" || strings.HasPrefix(cmd, "display ver"):
		row := parseDisplayVersionRow(ctx, raw)
		return collect.ParseOutput{Platform: ctx.Platform, Command: ctx.Command, Raw: raw, Rows: []collect.FormattedRow{row}}, nil
	case strings.HasPrefix(cmd, "display current"):
		row := parseDisplayCurrentRow(ctx, raw)
		return collect.ParseOutput{Platform: ctx.Platform, Command: ctx.Command, Raw: raw, Rows: []collect.FormattedRow{row}}, nil
	default:
		return collect.ParseOutput{Platform: ctx.Platform, Command: ctx.Command, Raw: raw, Rows: nil}, nil
	}
}

func init() {
	collect.Register("huawei_ce", &Plugin{})
}
