package cisco_ios

import (
	"strings"

	"github.com/telnetcollectorpro/telnetcollectorpro/addone/collect"
)

// parseInterfaceBriefRows 解析 show ip interface brief 表格回显
// 列格式: Interface IP-Address OK? Method Status Protocol
func parseInterfaceBriefRows(ctx collect.ParseContext, raw string) []collect.FormattedRow {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	rows := make([]collect.FormattedRow, 0)
	for _, ln := range lines {
		t := strings.TrimSpace(ln)
		if t == "" || strings.HasPrefix(t, "Interface") {
			continue
		}
		parts := strings.Fields(t)
		if len(parts) < 6 {
			continue
		}
		ip := parts[1]
		if strings.EqualFold(ip, "unassigned") {
			ip = ""
		}
		// Status 可能是 "administratively down" 两个字段
		status := parts[4]
		protocol := parts[len(parts)-1]
		if len(parts) >= 7 && parts[4] == "administratively" {
			status = "administratively down"
		}
		rows = append(rows, collect.FormattedRow{
			Table: "interfaces",
			Base: collect.BaseRecord{
				TaskID:       ctx.TaskID,
				TaskStatus:   ctx.Status,
				RawStoreJSON: ctx.RawPaths.Marshal(),
			},
			Data: map[string]interface{}{
				"int_name":     parts[0],
				"int_ip":       ip,
				"int_status":   status,
				"int_protocol": protocol,
			},
		})
	}
	return rows
}
