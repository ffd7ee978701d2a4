package h3c_sr

import (
	"regexp"
	"strings"

	"github.com/telnetcollectorpro/telnetcollectorpro/addone/collect"
)

// Plugin 为 h3c_sr 平台采集插件（H3C SR 路由器）
type Plugin struct{}

func (p *Plugin) Name() string { return "h3c_sr" }

// SystemCommands 返回系统内置的 H3C SR 采集命令
func (p *Plugin) SystemCommands() []string {
	return []string{
		"display version",
		"display current-configuration",
		"display ip routing-table",
	}
}

// Parse 根据命令路由解析
func (p *Plugin) Parse(ctx collect.ParseContext, raw string) (collect.ParseOutput, error) {
	cmd := strings.ToLower(strings.TrimSpace(ctx.Command))
	switch {
	case cmd == "display version" || strings.HasPrefix(cmd, "display ver"):
		row := parseVersionRow(ctx, raw)
		return collect.ParseOutput{Platform: ctx.Platform, Command: ctx.Command, Raw: raw, Rows: []collect.FormattedRow{row}}, nil
	case strings.HasPrefix(cmd, "display current"):
		row := parseCurrentConfigRow(ctx, raw)
		return collect.ParseOutput{Platform: ctx.Platform, Command: ctx.Command, Raw: raw, Rows: []collect.FormattedRow{row}}, nil
	case strings.HasPrefix(cmd, "display ip routing"):
		rows := parseRoutingTableRows(ctx, raw)
		return collect.ParseOutput{Platform: ctx.Platform, Command: ctx.Command, Raw: raw, Rows: rows}, nil
	default:
		return collect.ParseOutput{Platform: ctx.Platform, Command: ctx.Command, Raw: raw, Rows: nil}, nil
	}
}

var (
	srVersionRe = regexp.MustCompile(`(?i)Comware Software,?\s+Version\s+([\w.,\s]+?)\s*$`)
	srModelRe   = regexp.MustCompile(`(?i)^H3C\s+(SR\S+)\s+uptime is\s+(.+)`)
	srRouteRe   = regexp.MustCompile(`^(\d+\.\d+\.\d+\.\d+/\d+)\s+(\S+)\s+(\d+)\s+(\d+)\s+(\d+\.\d+\.\d+\.\d+)\s+(\S+)`)
)

func parseVersionRow(ctx collect.ParseContext, raw string) collect.FormattedRow {
	data := map[string]interface{}{
		"type":    "version",
		"version": "",
		"model":   "",
		"uptime":  "",
	}
	for _, ln := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		t := strings.TrimSpace(ln)
		if t == "" {
			continue
		}
		if data["version"] == "" {
			if m := srVersionRe.FindStringSubmatch(t); len(m) > 1 {
				data["version"] = strings.TrimSpace(m[1])
				continue
			}
		}
		if data["model"] == "" {
			if m := srModelRe.FindStringSubmatch(t); len(m) > 2 {
				data["model"] = m[1]
				data["uptime"] = strings.TrimSpace(m[2])
			}
		}
	}
	return collect.FormattedRow{
		Table: "version_info",
		Base: collect.BaseRecord{
			TaskID:       ctx.TaskID,
			TaskStatus:   ctx.Status,
			RawStoreJSON: ctx.RawPaths.Marshal(),
		},
		Data: data,
	}
}

func parseCurrentConfigRow(ctx collect.ParseContext, raw string) collect.FormattedRow {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	sysname := ""
	interfaceCount := 0
	configLines := 0
	for _, ln := range lines {
		t := strings.TrimSpace(ln)
		if t == "" || t == "#" {
			continue
		}
		configLines++
		switch {
		case strings.HasPrefix(t, "sysname "):
			sysname = strings.TrimSpace(strings.TrimPrefix(t, "sysname "))
		case strings.HasPrefix(t, "interface "):
			interfaceCount++
		}
	}
	return collect.FormattedRow{
		Table: "device_config",
		Base: collect.BaseRecord{
			TaskID:       ctx.TaskID,
			TaskStatus:   ctx.Status,
			RawStoreJSON: ctx.RawPaths.Marshal(),
		},
		Data: map[string]interface{}{
			"type":            "config",
			"sysname":         sysname,
			"config_lines":    configLines,
			"interface_count": interfaceCount,
		},
	}
}

// parseRoutingTableRows 解析 display ip routing-table 表格回显
// 列格式: Destination/Mask Proto Pre Cost NextHop Interface
func parseRoutingTableRows(ctx collect.ParseContext, raw string) []collect.FormattedRow {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	rows := make([]collect.FormattedRow, 0)
	for _, ln := range lines {
		m := srRouteRe.FindStringSubmatch(strings.TrimSpace(ln))
		if len(m) == 0 {
			continue
		}
		rows = append(rows, collect.FormattedRow{
			Table: "routes",
			Base: collect.BaseRecord{
				TaskID:       ctx.TaskID,
				TaskStatus:   ctx.Status,
				RawStoreJSON: ctx.RawPaths.Marshal(),
			},
			Data: map[string]interface{}{
				"destination": m[1],
				"protocol":    m[2],
				"preference":  m[3],
				"cost":        m[4],
				"next_hop":    m[5],
				"interface":   m[6],
			},
		})
	}
	return rows
}

func init() { collect.Register("h3c_sr", &Plugin{}) }
