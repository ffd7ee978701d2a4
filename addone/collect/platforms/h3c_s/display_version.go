package h3c_s

import (
	"regexp"
	"strings"

	"github.com/telnetcollectorpro/telnetcollectorpro/addone/collect"
)

var (
	comwareVersionRe = regexp.MustCompile(`(?i)Comware Software,?\s+Version\s+([\w.,\s]+?)\s*$`)
	h3cModelRe       = regexp.MustCompile(`(?i)^H3C\s+(\S+)\s+uptime is\s+(.+)`)
)

// parseDisplayVersionRow 解析 display version 回显，提取 Comware 版本与型号
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
			if m := comwareVersionRe.FindStringSubmatch(t); len(m) > 1 {
				data["version"] = strings.TrimSpace(m[1])
				continue
			}
		}
		if data["model"] == "" {
			if m := h3cModelRe.FindStringSubmatch(t); len(m) > 2 {
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
