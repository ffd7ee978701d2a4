package cisco_ios

import (
	"regexp"
	"strings"

	"github.com/telnetcollectorpro/telnetcollectorpro/addone/collect"
)

var (
	iosVersionRe = regexp.MustCompile(`(?i)Version\s+([\w.()]+)`)
	iosUptimeRe  = regexp.MustCompile(`(?i)uptime is\s+(.+)`)
	iosModelRe   = regexp.MustCompile(`(?i)^cisco\s+(\S+)\s+.*processor`)
	iosSerialRe  = regexp.MustCompile(`(?i)Processor board ID\s+(\S+)`)
)

// parseShowVersionRow 解析 show version 回显，提取版本、型号、序列号与运行时间
func parseShowVersionRow(ctx collect.ParseContext, raw string) collect.FormattedRow {
	data := map[string]interface{}{
		"type":      "version",
		"version":   "",
		"model":     "",
		"serial_no": "",
		"uptime":    "",
	}
	if m := iosVersionRe.FindStringSubmatch(raw); len(m) > 1 {
		data["version"] = strings.TrimSpace(m[1])
	}
	if m := iosUptimeRe.FindStringSubmatch(raw); len(m) > 1 {
		data["uptime"] = strings.TrimSpace(m[1])
	}
	if m := iosSerialRe.FindStringSubmatch(raw); len(m) > 1 {
		data["serial_no"] = strings.TrimSpace(m[1])
	}
	for _, ln := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if m := iosModelRe.FindStringSubmatch(strings.TrimSpace(ln)); len(m) > 1 {
			data["model"] = m[1]
			break
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
