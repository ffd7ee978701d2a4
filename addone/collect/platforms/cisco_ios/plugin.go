package cisco_ios

import (
	"strings"

	"github.com/telnetcollectorpro/telnetcollectorpro/addone/collect"
)

// Plugin 为 cisco_ios 平台采集插件
type Plugin struct{}

func (p *Plugin) Name() string { return "cisco_ios" }

// SystemCommands 返回系统内置的 Cisco IOS 采集命令
func (p *Plugin) SystemCommands() []string {
	return []string{
		"show version",
		"show running-config",
		"show ip interface brief",
	}
}

// Parse 根据命令路由解析
func (p *Plugin) Parse(ctx collect.ParseContext, raw string) (collect.ParseOutput, error) {
	cmd := strings.ToLower(strings.TrimSpace(ctx.Command))
	switch {
	case cmd == "show version" || strings.HasPrefix(cmd, "show ver"):
		row := parseShowVersionRow(ctx, raw)
		return collect.ParseOutput{Platform: ctx.Platform, Command: ctx.Command, Raw: raw, Rows: []collect.FormattedRow{row}}, nil
	case cmd == "show running-config" || cmd == "show run":
		row := parseShowRunRow(ctx, raw)
		return collect.ParseOutput{Platform: ctx.Platform, Command: ctx.Command, Raw: raw, Rows: []collect.FormattedRow{row}}, nil
	case cmd == "show ip interface brief" || strings.HasPrefix(cmd, "show ip int"):
		rows := parseInterfaceBriefRows(ctx, raw)
		return collect.ParseOutput{Platform: ctx.Platform, Command: ctx.Command, Raw: raw, Rows: rows}, nil
	default:
		return collect.ParseOutput{Platform: ctx.Platform, Command: ctx.Command, Raw: raw, Rows: nil}, nil
	}
}

func init() {
	collect.Register("cisco_ios", &Plugin{})
}
