package huawei_ce

import (
	"strings"

	"github.com/telnetcollectorpro/telnetcollectorpro/addone/collect"
)

// parseDisplayCurrentRow 解析 display current-configuration 回显
func parseDisplayCurrentRow(ctx collect.ParseContext, raw string) collect.FormattedRow {
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
