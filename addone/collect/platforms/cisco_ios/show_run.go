package cisco_ios

import (
	"strings"

	"github.com/telnetcollectorpro/telnetcollectorpro/addone/collect"
)

// parseShowRunRow 解析 show running-config 回显，提取主机名与配置段统计
func parseShowRunRow(ctx collect.ParseContext, raw string) collect.FormattedRow {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	hostname := ""
	interfaceCount := 0
	vlanCount := 0
	configLines := 0
	for _, ln := range lines {
		t := strings.TrimSpace(ln)
		if t == "" || t == "!" {
			continue
		}
		configLines++
		switch {
		case strings.HasPrefix(t, "hostname "):
			hostname = strings.TrimSpace(strings.TrimPrefix(t, "hostname "))
		case strings.HasPrefix(t, "interface "):
			interfaceCount++
		case strings.HasPrefix(t, "vlan "):
			vlanCount++
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
			"hostname":        hostname,
			"config_lines":    configLines,
			"interface_count": interfaceCount,
			"vlan_count":      vlanCount,
		},
	}
}
