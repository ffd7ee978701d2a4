package telnet

import (
	"regexp"
	"strings"
	"time"
)

// ExecOptions 单条命令的执行选项，零值字段取默认
type ExecOptions struct {
	// Pattern 完成模式，默认 DefaultPromptPattern
	Pattern *regexp.Regexp
	// Timeout 读取预算，默认 7.5s；超时以部分输出解析，不算错误
	Timeout time.Duration
	// PageHeight 大于 0 时在发送命令前协商 80x<PageHeight> 终端高度，
	// 读取结束后无论成败都恢复 80x24 基线
	PageHeight int
}

// Execute 以默认选项执行命令并返回去除尾部空行的输出
func (s *Session) Execute(command string) (string, error) {
	return s.ExecuteWithOptions(command, nil)
}

// ExecuteWithOptions 执行单条命令
// 未连接时惰性建连；读取阶段的错误在几何恢复之后带着部分输出一并返回
func (s *Session) ExecuteWithOptions(command string, opts *ExecOptions) (string, error) {
	pattern := DefaultPromptPattern
	timeout := DefaultExecTimeout
	pageHeight := 0
	if opts != nil {
		if opts.Pattern != nil {
			pattern = opts.Pattern
		}
		if opts.Timeout > 0 {
			timeout = opts.Timeout
		}
		if opts.PageHeight > 0 {
			pageHeight = opts.PageHeight
		}
	}

	if err := s.Connect(); err != nil {
		return "", err
	}

	if pageHeight > 0 {
		s.negotiateWindowSize(defaultWidth, pageHeight)
		defer s.negotiateWindowSize(defaultWidth, defaultHeight)
	}

	if err := s.writeLine(command); err != nil {
		return "", err
	}

	text, _, err := s.readUntil(pattern, timeout)
	return TrimEmptyLines(text), err
}

// TrimEmptyLines 去除文本尾部的空白行，中间与行内空白保持原样
func TrimEmptyLines(s string) string {
	lines := strings.Split(s, "\n")
	end := len(lines)
	for end > 0 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[:end], "\n")
}
