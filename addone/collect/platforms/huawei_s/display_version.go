package huawei_s

import (
	"regexp"
	"strings"

	"github.com/telnetcollectorpro/telnetcollectorpro/addone/collect"
)

var (
	vrpVersionRe = regexp.MustCompile(`(?i)VRP.*software.*Version\s+([\w.()\s]+?)\s*$`)
	vrpModelRe   = regexp.MustCompile(`(?i)^(?:HUAWEI\s+)?(\S+)\s+uptime is\s+(.+)`)
)

// parseDisplayVersionRow 解析 display version 回显，提取 VRP 版本、型号与运行时间
func parseDisplayVersionRow(ctx collect.ParseContext, raw string) collect.FormattedRow {
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
			if m := vrpVersionRe.FindStringSubmatch(t); len(m) > 1 {
				data["version"] = strings.TrimSpace(m[1])
				continue
			}
		}
		if data["model"] == "" {
			if m := vrpModelRe.FindStringSubmatch(t); len(m) > 2 {
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
