package logger

import (
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

const defaultEchoLines = 5

// OutputLines 命令回显的头部与尾部行摘要
type OutputLines struct {
	HeadLines []string `json:"head_lines"`
	TailLines []string `json:"tail_lines"`
}

// ParseOutputLines 提取命令回显的 head/tail 摘要，maxLines 为各自的最大行数。
// 总行数不足 maxLines 时 head 与 tail 内容一致。
func ParseOutputLines(output string, maxLines int) OutputLines {
	if maxLines <= 0 {
		maxLines = defaultEchoLines
	}

	lines := splitLines(output)
	total := len(lines)
	if total == 0 {
		return OutputLines{}
	}

	if total <= maxLines {
		return OutputLines{
			HeadLines: slices.Clone(lines),
			TailLines: slices.Clone(lines),
		}
	}
	return OutputLines{
		HeadLines: slices.Clone(lines[:maxLines]),
		TailLines: slices.Clone(lines[total-maxLines:]),
	}
}

// splitLines 统一 CRLF/CR 换行符后按行切分
func splitLines(output string) []string {
	output = strings.ReplaceAll(output, "\r\n", "\n")
	output = strings.ReplaceAll(output, "\r", "\n")
	return strings.Split(output, "\n")
}

// FormatOutputLines 将摘要格式化为单行日志片段，head 与 tail 相同时只输出一次
func FormatOutputLines(lines OutputLines) string {
	var parts []string
	if len(lines.HeadLines) > 0 {
		parts = append(parts, "head-lines: ["+strings.Join(lines.HeadLines, " ⟩ ")+"]")
	}
	if len(lines.TailLines) > 0 && !slices.Equal(lines.HeadLines, lines.TailLines) {
		parts = append(parts, "tail-lines: ["+strings.Join(lines.TailLines, " ⟩ ")+"]")
	}
	return strings.Join(parts, ", ")
}

// DebugCommandOutput 在 debug 级别记录命令回显摘要
func DebugCommandOutput(command string, output string, maxLines int) {
	if GetLogger().Level < logrus.DebugLevel {
		return
	}

	lines := ParseOutputLines(output, maxLines)
	if len(lines.HeadLines) == 0 && len(lines.TailLines) == 0 {
		return
	}

	Debugf("Command echo [%s]: %s", command, FormatOutputLines(lines))
}
